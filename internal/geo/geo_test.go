package geo

import (
	"math"
	"math/rand"
	"testing"
)

func TestHaversineKnownDistances(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		wantM                  float64
		tolM                   float64
	}{
		{"Zero distance", 35.6762, 139.6503, 35.6762, 139.6503, 0, 0.001},
		{"Tokyo to Osaka", 35.6762, 139.6503, 34.6937, 135.5023, 397_000, 5_000},
		{"One degree of latitude", 0, 0, 1, 0, 111_195, 100},
		{"Equatorial degree of longitude", 0, 0, 0, 1, 111_195, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantM) > tt.tolM {
				t.Errorf("Haversine() = %.1f m, want %.1f ± %.1f", got, tt.wantM, tt.tolM)
			}
		})
	}
}

func TestHaversineSymmetry(t *testing.T) {
	d1 := Haversine(51.5074, -0.1278, 48.8566, 2.3522)
	d2 := Haversine(48.8566, 2.3522, 51.5074, -0.1278)
	if math.Abs(d1-d2) > 1e-6 {
		t.Errorf("distance not symmetric: %v vs %v", d1, d2)
	}
}

func TestDestinationRoundTrip(t *testing.T) {
	lat, lng := 40.7128, -74.0060
	for _, bearing := range []float64{0, 45, 90, 180, 270, 359} {
		lat2, lng2 := Destination(lat, lng, bearing, 5000)
		d := Haversine(lat, lng, lat2, lng2)
		if math.Abs(d-5000) > 1 {
			t.Errorf("bearing %v: travelled %.2f m, want 5000", bearing, d)
		}
	}
}

func TestCompassBearing(t *testing.T) {
	// Due east from the equator.
	b := CompassBearing(Bearing(0, 0, 0, 1))
	if math.Abs(b-90) > 0.01 {
		t.Errorf("eastward bearing = %v, want 90", b)
	}
	// Negative atan2 results normalize into [0, 360).
	if got := CompassBearing(-90); got != 270 {
		t.Errorf("CompassBearing(-90) = %v, want 270", got)
	}
}

func TestOffsetFlatMatchesHaversineAtShortRange(t *testing.T) {
	lat, lng := 35.6762, 139.6503
	lat2, lng2 := OffsetFlat(lat, lng, 60, 200)
	d := Haversine(lat, lng, lat2, lng2)
	// The flat-earth approximation drifts under a meter at this scale.
	if math.Abs(d-200) > 1 {
		t.Errorf("offset distance = %.3f m, want ~200", d)
	}
}

// Uniform-area sampling puts ~25% of points inside the half-radius disk
// (area ratio 1:4 against the full circle).
func TestRandomPointInCircleUniformity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const samples = 10_000
	const radius = 500.0
	centerLat, centerLng := 35.0, 139.0

	inner := 0
	for i := 0; i < samples; i++ {
		lat, lng := RandomPointInCircle(rng, centerLat, centerLng, radius)
		d := Haversine(centerLat, centerLng, lat, lng)
		if d > radius+1 {
			t.Fatalf("sample %d outside circle: %.2f m", i, d)
		}
		if d <= radius/2 {
			inner++
		}
	}
	ratio := float64(inner) / samples
	if ratio < 0.22 || ratio > 0.28 {
		t.Errorf("inner-disk ratio = %.3f, want ~0.25", ratio)
	}
}
