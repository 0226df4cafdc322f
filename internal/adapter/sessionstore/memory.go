// Package sessionstore persists visitor sessions in memory or Redis.
package sessionstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/safesea/internal/domain"
)

// Memory is an in-process session store. Sessions idle for longer than the
// TTL are treated as missing and removed by Sweep.
type Memory struct {
	ttl   time.Duration
	clock clockwork.Clock

	mu       sync.Mutex
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	session  domain.Session
	expireAt time.Time
}

// NewMemory creates an empty store. A nil clock uses the real clock.
func NewMemory(ttl time.Duration, clock clockwork.Clock) *Memory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{
		ttl:      ttl,
		clock:    clock,
		sessions: make(map[string]memoryEntry),
	}
}

// Get returns a copy of the stored session.
func (m *Memory) Get(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	if m.ttl > 0 && !m.clock.Now().Before(e.expireAt) {
		delete(m.sessions, id)
		return nil, fmt.Errorf("%w: %s expired", domain.ErrSessionNotFound, id)
	}
	s := cloneSession(e.session)
	return &s, nil
}

// Save stores a copy of s and restarts its TTL.
func (m *Memory) Save(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.ID] = memoryEntry{
		session:  cloneSession(*s),
		expireAt: m.clock.Now().Add(m.ttl),
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Sweep removes expired sessions and returns how many were dropped.
func (m *Memory) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	n := 0
	for id, e := range m.sessions {
		if !now.Before(e.expireAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of stored sessions, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run sweeps expired sessions every interval until ctx is canceled.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.Sweep()
		}
	}
}

// cloneSession copies the pointer and slice fields so callers never share
// state with the store.
func cloneSession(s domain.Session) domain.Session {
	if s.SailorLocation != nil {
		c := *s.SailorLocation
		s.SailorLocation = &c
	}
	if s.DiverLocation != nil {
		c := *s.DiverLocation
		s.DiverLocation = &c
	}
	if s.Zoom != nil {
		c := *s.Zoom
		s.Zoom = &c
	}
	if s.LastCheckin != nil {
		c := *s.LastCheckin
		s.LastCheckin = &c
	}
	if s.SailorMarkers != nil {
		s.SailorMarkers = append([]domain.Coordinate(nil), s.SailorMarkers...)
	}
	return s
}
