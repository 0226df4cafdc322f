package domain

import (
	"context"
	"math/rand/v2"
	"time"
)

// MaxSailorMarkers caps the number of random markers a session carries.
const MaxSailorMarkers = 100

// Session is the per-visitor state retained across page renders.
type Session struct {
	ID              string       `json:"id"`
	Page            Page         `json:"page"`
	SailorLocation  *Coordinate  `json:"sailor_location,omitempty"`
	DiverLocation   *Coordinate  `json:"diver_location,omitempty"`
	SailorMarkers   []Coordinate `json:"sailor_markers,omitempty"`
	LastMarkerReset time.Time    `json:"last_marker_reset"`
	Zoom            *Coordinate  `json:"zoom,omitempty"`
	LastCheckin     *Checkin     `json:"last_checkin,omitempty"`
	Error           string       `json:"error,omitempty"` // inline message shown on the next render
	UpdatedAt       time.Time    `json:"updated_at"`
}

// SessionStore persists sessions between requests.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// NewSession returns a session on the home page.
func NewSession(id string) *Session {
	return &Session{
		ID:        id,
		Page:      PageHome,
		UpdatedAt: clock.Now(),
	}
}

// Apply moves the session along the transition table. On error the page is unchanged.
func (s *Session) Apply(e Event) error {
	next, err := Next(s.Page, e)
	if err != nil {
		return err
	}
	s.Page = next
	s.UpdatedAt = clock.Now()
	return nil
}

// RefreshMarkers regenerates the random sailor markers when the current
// clock hour differs from the hour of the last reset. It reports whether
// the markers were regenerated.
func (s *Session) RefreshMarkers(rng *rand.Rand, count int) bool {
	hour := clockHour(clock.Now())
	if !s.LastMarkerReset.IsZero() && s.LastMarkerReset.Equal(hour) {
		return false
	}
	count = min(max(count, 0), MaxSailorMarkers)
	markers := make([]Coordinate, count)
	for i := range markers {
		markers[i] = RandomCoordinate(rng)
	}
	s.SailorMarkers = markers
	s.LastMarkerReset = hour
	return true
}

// clockHour returns the start of t's wall-clock hour in t's location.
// time.Truncate works on absolute time and would split hours in zones with
// a fractional offset.
func clockHour(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), 0, 0, 0, t.Location())
}

// RecordCheckin stores the resolved location under the check-in's role.
func (s *Session) RecordCheckin(c Checkin) {
	loc := c.Location
	switch c.Role {
	case RoleSailor:
		s.SailorLocation = &loc
	case RoleDiver:
		s.DiverLocation = &loc
	}
	s.LastCheckin = &c
	s.UpdatedAt = clock.Now()
}

// SetZoom centers future map renders on c.
func (s *Session) SetZoom(c Coordinate) {
	s.Zoom = &c
}

// TakeError returns and clears the pending inline error.
func (s *Session) TakeError() string {
	msg := s.Error
	s.Error = ""
	return msg
}
