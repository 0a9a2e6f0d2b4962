package geo

import (
	"math"
	"testing"
)

func TestGeohashEncodeKnownValues(t *testing.T) {
	tests := []struct {
		name      string
		lat, lng  float64
		precision int
		want      string
	}{
		{"Jutland reference point", 57.64911, 10.40744, 5, "u4pru"},
		{"Jutland full precision", 57.64911, 10.40744, 11, "u4pruydqqvj"},
		{"Origin", 0, 0, 5, "s0000"},
		{"Tokyo", 35.6762, 139.6503, 5, "xn76c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GeohashEncode(tt.lat, tt.lng, tt.precision); got != tt.want {
				t.Errorf("GeohashEncode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGeohashDecodeCenterReencodes(t *testing.T) {
	for _, hash := range []string{"u4pru", "xn76c", "9q8yy", "s0000"} {
		lat, lng := GeohashDecode(hash)
		if got := GeohashEncode(lat, lng, len(hash)); got != hash {
			t.Errorf("decode(%q) center re-encodes to %q", hash, got)
		}
	}
}

func TestGeohashDecodeAccuracy(t *testing.T) {
	lat, lng := GeohashDecode("u4pru")
	// A 5-char cell is ~5 km; the center must be within one cell of the input.
	if math.Abs(lat-57.64911) > 0.05 || math.Abs(lng-10.40744) > 0.05 {
		t.Errorf("decoded center (%v, %v) too far from encoded point", lat, lng)
	}
}

func TestGeohashNeighbors(t *testing.T) {
	neighbors := GeohashNeighbors("xn76c")
	if len(neighbors) != 9 {
		t.Fatalf("expected 9 cells, got %d", len(neighbors))
	}
	if neighbors[0] != "xn76c" {
		t.Errorf("first cell should be the center, got %q", neighbors[0])
	}
	seen := make(map[string]bool)
	for _, n := range neighbors {
		if seen[n] {
			t.Errorf("duplicate neighbor %q", n)
		}
		seen[n] = true
		if len(n) != 5 {
			t.Errorf("neighbor %q has wrong precision", n)
		}
	}
}

func TestGeohashNeighborsPolarEdge(t *testing.T) {
	// A cell touching the pole has no northern neighbors.
	polar := GeohashEncode(89.99, 0, 5)
	neighbors := GeohashNeighbors(polar)
	if len(neighbors) >= 9 {
		t.Errorf("polar cell should drop out-of-range neighbors, got %d", len(neighbors))
	}
	for _, n := range neighbors {
		lat, _ := GeohashDecode(n)
		if lat > 90 {
			t.Errorf("neighbor %q decodes beyond the pole", n)
		}
	}
}

func TestGeohashNeighborsAntimeridianWrap(t *testing.T) {
	edge := GeohashEncode(0, 179.99, 5)
	neighbors := GeohashNeighbors(edge)
	if len(neighbors) != 9 {
		t.Fatalf("expected 9 cells across the antimeridian, got %d", len(neighbors))
	}
	wrapped := false
	for _, n := range neighbors {
		_, lng := GeohashDecode(n)
		if lng < 0 {
			wrapped = true
		}
	}
	if !wrapped {
		t.Error("expected at least one neighbor on the far side of the antimeridian")
	}
}
