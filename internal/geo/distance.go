package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for great-circle distances.
const EarthRadiusMeters = 6371000.0

// DefaultRadiusMeters is the geofence radius used when none is configured.
const DefaultRadiusMeters = 250.0

type Point struct {
	Lat float64
	Lng float64
}

// DistanceMeters returns the haversine great-circle distance between a and b.
func DistanceMeters(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*sinLng*sinLng

	// clamp rounding drift before sqrt(1-h)
	if h > 1 {
		h = 1
	}

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// Fence is a circular boundary around a reference point.
type Fence struct {
	RadiusMeters float64
}

func NewFence(radiusMeters float64) Fence {
	return Fence{RadiusMeters: radiusMeters}
}

// Contains reports whether a distance lies within the fence. The boundary is inclusive.
func (f Fence) Contains(distanceMeters float64) bool {
	return distanceMeters <= f.RadiusMeters
}

// Valid reports whether p is a finite coordinate inside the WGS84 ranges.
func Valid(p Point) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
