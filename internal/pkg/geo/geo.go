package geo

import "math"

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000

// Point is a WGS84 coordinate pair.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Fence is a circular geofence around a center point.
type Fence struct {
	Center       Point
	RadiusMeters float64
}

// DistanceMeters menghitung jarak antara dua titik koordinat dalam Meter.
func DistanceMeters(a, b Point) float64 {
	// Konversi ke Radian
	dLat := (b.Latitude - a.Latitude) * (math.Pi / 180.0)
	dLon := (b.Longitude - a.Longitude) * (math.Pi / 180.0)

	lat1Rad := a.Latitude * (math.Pi / 180.0)
	lat2Rad := b.Latitude * (math.Pi / 180.0)

	// Rumus Haversine
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1Rad)*math.Cos(lat2Rad)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// Contains reports whether p falls inside the fence. A zero-radius fence
// only contains its exact center point.
func (f Fence) Contains(p Point) bool {
	return DistanceMeters(p, f.Center) <= f.RadiusMeters
}
