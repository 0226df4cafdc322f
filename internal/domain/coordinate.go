package domain

import (
	"fmt"
	"math/rand/v2"
)

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate lies inside [-90, 90] x [-180, 180].
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// RandomCoordinate samples a point uniformly over the latitude and longitude ranges.
// Sampling is uniform in degrees, not over the sphere's surface.
func RandomCoordinate(rng *rand.Rand) Coordinate {
	return Coordinate{
		Lat: -90 + rng.Float64()*180,
		Lon: -180 + rng.Float64()*360,
	}
}

// CoralRecord is one retained row of the coral archive.
type CoralRecord struct {
	Coordinate
	Fields map[string]string `json:"fields,omitempty"` // remaining CSV columns keyed by header
}
