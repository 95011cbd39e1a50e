// Package geofence implements the great-circle distance check used to gate
// office check-ins against an authorized location.
package geofence

import "math"

// earthRadiusMeters is the mean spherical Earth radius.
const earthRadiusMeters = 6371000.0

// Coordinates is a WGS84 position in decimal degrees.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Distance returns the great-circle (haversine) distance between a and b in
// meters. Pure and deterministic; accuracy is whatever IEEE doubles give.
func Distance(a, b Coordinates) float64 {
	phi1 := a.Latitude * math.Pi / 180
	phi2 := b.Latitude * math.Pi / 180
	dPhi := (b.Latitude - a.Latitude) * math.Pi / 180
	dLambda := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// WithinRadius reports whether pos lies inside the circular zone centered at
// center with the given radius in meters. A zero radius admits only the
// exact center (distance 0).
func WithinRadius(pos, center Coordinates, radiusMeters float64) bool {
	return Distance(pos, center) <= radiusMeters
}
