package geo

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DistanceMeters returns the great-circle distance between two coordinates
// using the Haversine formula.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLon := degreesToRadians(lon2 - lon1)

	lat1R := degreesToRadians(lat1)
	lat2R := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1R)*math.Cos(lat2R)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// Distance is DistanceMeters for two points.
func Distance(a, b Point) float64 {
	return DistanceMeters(a.Lat, a.Lon, b.Lat, b.Lon)
}

// FormatDistance renders whole meters below one kilometer and kilometers with
// two decimals otherwise.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%d m", int64(math.Round(meters)))
	}
	return fmt.Sprintf("%.2f km", meters/1000)
}

func degreesToRadians(d float64) float64 {
	return d * math.Pi / 180
}
