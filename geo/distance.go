package geo

import "math"

// Mean Earth radius in kilometers.
const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance in kilometers between two
// points given in decimal degrees, using the haversine formula. NaN or
// infinite coordinates propagate into the result; callers validate upstream.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
