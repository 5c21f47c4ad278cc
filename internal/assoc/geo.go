package assoc

import "math"

const earthRadiusKm = 6371.0

// EpicentralKm computes the great-circle distance in kilometers between two
// epicenters given in signed decimal degrees, using the haversine formula.
// Depths are deliberately ignored: the legacy catalogs' depth columns are far
// less trustworthy than their epicenters.
func EpicentralKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}
