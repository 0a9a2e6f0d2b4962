package spawn

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/titanbreach/breach-server/internal/ws"
	"github.com/titanbreach/breach-server/pkg/models"
)

// The hub must remain usable as the engine's announcement surface.
var _ Broadcaster = (*ws.Hub)(nil)

func TestTimeMultiplier(t *testing.T) {
	tests := []struct {
		hour int
		want float64
	}{
		{6, 1.2}, {9, 1.2},
		{12, 1.3}, {14, 1.3},
		{17, 1.5}, {20, 1.5},
		{22, 0.3}, {23, 0.3}, {0, 0.3}, {5, 0.3},
		{10, 1.0}, {15, 1.0}, {21, 1.0},
	}
	for _, tt := range tests {
		if got := TimeMultiplier(tt.hour); got != tt.want {
			t.Errorf("TimeMultiplier(%d) = %v, want %v", tt.hour, got, tt.want)
		}
	}
}

func TestSpawnProbabilityEveningWeekend(t *testing.T) {
	// Saturday 18:00 at a weight-3 POI: 0.30 * (3/3) * 1.5 * 1.3 = 0.585.
	at := time.Date(2026, 8, 22, 18, 0, 0, 0, time.UTC) // a Saturday
	if got := SpawnProbability(3.0, at); math.Abs(got-0.585) > 1e-9 {
		t.Errorf("SpawnProbability = %v, want 0.585", got)
	}

	// Tuesday 03:00 at a weight-1 POI: 0.30 * (1/3) * 0.3 * 1.0 = 0.03.
	at = time.Date(2026, 8, 25, 3, 0, 0, 0, time.UTC)
	if got := SpawnProbability(1.0, at); math.Abs(got-0.03) > 1e-9 {
		t.Errorf("SpawnProbability = %v, want 0.03", got)
	}
}

func TestRollElement(t *testing.T) {
	tests := []struct {
		terrain string
		roll    float64
		want    models.Element
	}{
		{"water", 0, models.ElementAbyssal},
		{"water", 69.9, models.ElementAbyssal},
		{"water", 70, models.ElementStorm},
		{"water", 95, models.ElementParasitic},
		{"mountain", 50, models.ElementVolcanic},
		{"mountain", 90, models.ElementOssified},
		{"forest", 10, models.ElementParasitic},
		{"forest", 99, models.ElementAbyssal},
		{"desert", 99, models.ElementVoid},
		{"coastal", 50, models.ElementStorm},
		{"arctic", 30, models.ElementOssified},
		{"urban", 50, models.ElementVoid},
		{"parking_lot", 10, models.ElementStorm}, // unknown terrain uses urban bands
	}
	for _, tt := range tests {
		if got := RollElement(tt.terrain, tt.roll); got != tt.want {
			t.Errorf("RollElement(%q, %v) = %v, want %v", tt.terrain, tt.roll, got, tt.want)
		}
	}
}

func TestClassWeights(t *testing.T) {
	base := ClassWeights(1.0)
	if base != [5]float64{60, 25, 10, 4, 1} {
		t.Errorf("base weights = %v", base)
	}
	heavy := ClassWeights(4.5)
	if heavy != [5]float64{60, 25, 20, 12, 5} {
		t.Errorf("heavy weights = %v", heavy)
	}
	mid := ClassWeights(3.0)
	if mid != [5]float64{60, 25, 15, 8, 1} {
		t.Errorf("mid weights = %v", mid)
	}
}

func TestRollThreatClassBoundaries(t *testing.T) {
	// Base distribution sums to 100; class 1 occupies the first 60%.
	if got := RollThreatClass(1.0, 0.0); got != 1 {
		t.Errorf("roll 0 = class %d, want 1", got)
	}
	if got := RollThreatClass(1.0, 0.599); got != 1 {
		t.Errorf("roll 0.599 = class %d, want 1", got)
	}
	if got := RollThreatClass(1.0, 0.60); got != 2 {
		t.Errorf("roll 0.60 = class %d, want 2", got)
	}
	if got := RollThreatClass(1.0, 0.9999); got != 5 {
		t.Errorf("roll 0.9999 = class %d, want 5", got)
	}
}

func TestGenerateAttributes(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	at := time.Date(2026, 8, 22, 18, 0, 0, 0, time.UTC)
	engine := NewEngineAt(nil, nil, rng, func() time.Time { return at })

	poi := &models.POI{
		ID:          7,
		Lat:         35.6762,
		Lng:         139.6503,
		RadiusM:     120,
		SpawnWeight: 3.0,
		TerrainType: "urban",
	}

	for i := 0; i < 200; i++ {
		titan := engine.Generate(poi, at)

		if titan.POIID != poi.ID {
			t.Fatalf("POI id = %d", titan.POIID)
		}
		if titan.ThreatClass < 1 || titan.ThreatClass > 5 {
			t.Fatalf("threat class %d out of range", titan.ThreatClass)
		}
		if len(titan.Genes) != 6 {
			t.Fatalf("genes length = %d", len(titan.Genes))
		}

		// species = element*1000 + (class-1)*100 + 1..10
		variant := titan.SpeciesID - int(titan.Element)*1000 - (titan.ThreatClass-1)*100
		if variant < 1 || variant > 10 {
			t.Fatalf("species %d inconsistent with element %d class %d",
				titan.SpeciesID, titan.Element, titan.ThreatClass)
		}

		wantLifetime := classLifetimes[titan.ThreatClass]
		if titan.ExpiresAt.Sub(titan.SpawnedAt) != wantLifetime {
			t.Fatalf("class %d lifetime = %v, want %v",
				titan.ThreatClass, titan.ExpiresAt.Sub(titan.SpawnedAt), wantLifetime)
		}
		if titan.MaxCaptures != classMaxCaptures[titan.ThreatClass] {
			t.Fatalf("class %d max captures = %d", titan.ThreatClass, titan.MaxCaptures)
		}

		// Position stays inside the POI radius (flat-earth error is tiny here).
		dLat := (titan.Lat - poi.Lat) * 111320
		dLng := (titan.Lng - poi.Lng) * 111320 * math.Cos(poi.Lat*math.Pi/180)
		if dist := math.Hypot(dLat, dLng); dist > poi.RadiusM+1 {
			t.Fatalf("spawn %f m from POI center, radius %f", dist, poi.RadiusM)
		}
		if titan.Geohash == "" || len(titan.Geohash) != 5 {
			t.Fatalf("geohash %q", titan.Geohash)
		}
	}
}

func TestClassLifetimeTable(t *testing.T) {
	want := []time.Duration{4 * time.Hour, 3 * time.Hour, 2 * time.Hour, time.Hour, 30 * time.Minute}
	for class := 1; class <= 5; class++ {
		if classLifetimes[class] != want[class-1] {
			t.Errorf("class %d lifetime = %v, want %v", class, classLifetimes[class], want[class-1])
		}
	}
	wantCaptures := []int{10, 5, 3, 2, 1}
	for class := 1; class <= 5; class++ {
		if classMaxCaptures[class] != wantCaptures[class-1] {
			t.Errorf("class %d max captures = %d, want %d", class, classMaxCaptures[class], wantCaptures[class-1])
		}
	}
}
