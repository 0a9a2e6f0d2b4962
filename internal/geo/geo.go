// Package geo provides the pure spherical-geometry primitives used by the
// spawn engine, location verifier and capture broker.
package geo

import (
	"math"
	"math/rand"
)

// EarthRadiusM is the mean Earth radius used for all great-circle math.
const EarthRadiusM = 6371000.0

// Haversine returns the great-circle distance in meters between two
// lat/lng points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusM * c
}

// Bearing returns the initial bearing in degrees from point a to point b,
// in the atan2 range (-180, 180].
func Bearing(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	return math.Atan2(y, x) * 180 / math.Pi
}

// CompassBearing normalizes a Bearing result to [0, 360).
func CompassBearing(deg float64) float64 {
	return math.Mod(deg+360, 360)
}

// Destination returns the point reached by travelling distanceM meters from
// (lat, lng) along the given bearing in degrees.
func Destination(lat, lng, bearingDeg, distanceM float64) (float64, float64) {
	phi1 := lat * math.Pi / 180
	lambda1 := lng * math.Pi / 180
	theta := bearingDeg * math.Pi / 180
	delta := distanceM / EarthRadiusM

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) +
		math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2))

	lat2 := phi2 * 180 / math.Pi
	lng2 := lambda2 * 180 / math.Pi
	// Wrap longitude to [-180, 180).
	lng2 = math.Mod(lng2+540, 360) - 180
	return lat2, lng2
}

// RandomPointInCircle picks a uniformly distributed point within radiusM
// meters of the center. Sampling distance as r*sqrt(U) gives uniform area
// density rather than clustering at the center.
func RandomPointInCircle(rng *rand.Rand, lat, lng, radiusM float64) (float64, float64) {
	dist := radiusM * math.Sqrt(rng.Float64())
	bearing := rng.Float64() * 360
	return Destination(lat, lng, bearing, dist)
}

// OffsetFlat converts a bearing/distance pair to a lat/lng using the
// local-flat-earth approximation the spawn engine uses for sub-kilometer
// offsets.
func OffsetFlat(lat, lng, bearingDeg, distanceM float64) (float64, float64) {
	theta := bearingDeg * math.Pi / 180
	dLat := distanceM * math.Cos(theta) / 111320.0
	dLng := distanceM * math.Sin(theta) / (111320.0 * math.Cos(lat*math.Pi/180))
	return lat + dLat, lng + dLng
}
