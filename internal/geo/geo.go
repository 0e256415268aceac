// Package geo implements the pure distance/coordinate helpers that back the
// location check: Haversine distance, coordinate range validation, and the
// human-readable formatting used in validation failure reasons.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used for the Haversine formula,
// per spec: 6,371 km.
const EarthRadiusMeters = 6371.0 * 1000.0

// Coordinate is a decimal-degree WGS-84 point.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// HaversineDistance returns the great-circle distance between a and b, in meters.
func HaversineDistance(a, b Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// ValidateCoordinate rejects coordinates outside Earth's valid ranges and the
// suspect-missing sentinel (0,0).
func ValidateCoordinate(c Coordinate) error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude %v is out of valid range (-90 to 90)", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude %v is out of valid range (-180 to 180)", c.Longitude)
	}
	if c.Latitude == 0 && c.Longitude == 0 {
		return fmt.Errorf("coordinates (0,0) may indicate missing or invalid GPS data")
	}
	return nil
}

// WithinDistance reports whether actual lies within maxMeters of expected,
// after validating actual is a plausible coordinate.
func WithinDistance(actual, expected Coordinate, maxMeters float64) (bool, float64, error) {
	if err := ValidateCoordinate(actual); err != nil {
		return false, 0, err
	}
	d := HaversineDistance(actual, expected)
	return d <= maxMeters, d, nil
}

// CoordString renders a coordinate the way validation failure reasons quote
// it: "51.491079°N, 0.269590°W".
func CoordString(c Coordinate) string {
	latDir := "N"
	if c.Latitude < 0 {
		latDir = "S"
	}
	lonDir := "E"
	if c.Longitude < 0 {
		lonDir = "W"
	}
	return fmt.Sprintf("%.6f°%s, %.6f°%s", math.Abs(c.Latitude), latDir, math.Abs(c.Longitude), lonDir)
}

// FormatDistance renders a distance in meters, switching to kilometers at 1km and above.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.1fm", meters)
	}
	return fmt.Sprintf("%.2fkm", meters/1000)
}
