// Package geo provides pure great-circle geometry helpers used by the
// distance filter.
package geo

import "math"

// earthRadiusKm is the mean Earth radius used for haversine distances.
const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance in kilometres between two
// WGS84 coordinates using the haversine formula. It has no error cases: NaN
// inputs propagate to a NaN result, which filters interpret as "distance
// unknown".
func DistanceKm(aLat, aLng, bLat, bLng float64) float64 {
	latA := radians(aLat)
	latB := radians(bLat)
	dLat := radians(bLat - aLat)
	dLng := radians(bLng - aLng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
