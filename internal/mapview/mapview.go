// Package mapview builds the coral map model rendered by the web layer.
package mapview

import "github.com/couchcryptid/safesea/internal/domain"

// DefaultZoom is the initial map zoom level.
const DefaultZoom = 8

// Marker kinds.
const (
	KindSailor = "sailor"
	KindDiver  = "diver"
	KindRandom = "random"
)

// Options control map construction.
type Options struct {
	Cluster bool // group coral circles into a cluster layer
}

// Circle is a coral location drawn as a circle marker.
type Circle struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Radius    int     `json:"radius"`
	Color     string  `json:"color"`
	Fill      bool    `json:"fill"`
	FillColor string  `json:"fill_color"`
}

// Marker is a pin with a popup label. An empty Icon uses the default pin.
type Marker struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Kind  string  `json:"kind"`
	Label string  `json:"label"`
	Icon  string  `json:"icon,omitempty"`
}

// Model is everything needed to draw the map.
type Model struct {
	Center  domain.Coordinate `json:"center"`
	Zoom    int               `json:"zoom"`
	Cluster bool              `json:"cluster"`
	Corals  []Circle          `json:"corals"`
	Markers []Marker          `json:"markers"`
}

// Build assembles the map for a session. The center is the session's zoom
// coordinate when set, otherwise the mean of the coral coordinates.
func Build(corals []domain.CoralRecord, s *domain.Session, opts Options) Model {
	m := Model{
		Zoom:    DefaultZoom,
		Cluster: opts.Cluster,
		Corals:  make([]Circle, 0, len(corals)),
		Markers: make([]Marker, 0, len(s.SailorMarkers)+2),
	}

	if s.Zoom != nil {
		m.Center = *s.Zoom
	} else {
		m.Center = Mean(corals)
	}

	for _, c := range corals {
		m.Corals = append(m.Corals, Circle{
			Lat:       c.Lat,
			Lon:       c.Lon,
			Radius:    5,
			Color:     "red",
			Fill:      true,
			FillColor: "red",
		})
	}

	if s.SailorLocation != nil {
		m.Markers = append(m.Markers, Marker{
			Lat: s.SailorLocation.Lat, Lon: s.SailorLocation.Lon,
			Kind: KindSailor, Label: "Sailor Location", Icon: "green",
		})
	}
	for _, c := range s.SailorMarkers {
		m.Markers = append(m.Markers, Marker{
			Lat: c.Lat, Lon: c.Lon,
			Kind: KindRandom, Label: "Sailor Location",
		})
	}
	if s.DiverLocation != nil {
		m.Markers = append(m.Markers, Marker{
			Lat: s.DiverLocation.Lat, Lon: s.DiverLocation.Lon,
			Kind: KindDiver, Label: "Diver Location", Icon: "blue",
		})
	}
	return m
}

// Mean returns the average coordinate of records, or the zero coordinate
// when there are none.
func Mean(records []domain.CoralRecord) domain.Coordinate {
	if len(records) == 0 {
		return domain.Coordinate{}
	}
	var lat, lon float64
	for _, r := range records {
		lat += r.Lat
		lon += r.Lon
	}
	n := float64(len(records))
	return domain.Coordinate{Lat: lat / n, Lon: lon / n}
}
