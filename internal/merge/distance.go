package merge

import "math"

const earthRadiusFeet = 20902231.0

// DistanceFeet returns the great-circle distance between two coordinate
// pairs. When any coordinate is missing the distance is not computable and
// the result is nil, never zero.
func DistanceFeet(lat1, lon1, lat2, lon2 *float64) *float64 {
	if lat1 == nil || lon1 == nil || lat2 == nil || lon2 == nil {
		return nil
	}

	rlat1 := *lat1 * math.Pi / 180
	rlat2 := *lat2 * math.Pi / 180
	dlat := rlat2 - rlat1
	dlon := (*lon2 - *lon1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	d := earthRadiusFeet * c
	return &d
}
