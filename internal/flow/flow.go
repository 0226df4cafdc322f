// Package flow drives visitor sessions through the check-in pages.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/couchcryptid/safesea/internal/domain"
	"github.com/couchcryptid/safesea/internal/mapview"
	"github.com/couchcryptid/safesea/internal/observability"
)

// CoralSource returns the coral records of an archive.
type CoralSource interface {
	Load(ctx context.Context, path string) ([]domain.CoralRecord, error)
}

// Recorder accepts completed check-ins for downstream delivery.
type Recorder interface {
	Enqueue(c domain.Checkin) bool
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the flow settings.
type Config struct {
	CoralArchive string
	MarkerCount  int
	Cluster      bool
}

// Form carries the fields of a page POST. Name and HullID are taken as
// entered.
type Form struct {
	Event  string `validate:"required,oneof=choose_sailor choose_diver submit_sailor submit_diver open_map"`
	Name   string
	HullID string
}

// View is what a page render needs.
type View struct {
	Session *domain.Session
	Error   string         // inline message, shown once
	Allowed []domain.Event // events valid on the current page
	Map     *mapview.Model // set on the map page
	MapErr  error          // coral load failure on the map page
}

// Service applies events to sessions and builds page views.
type Service struct {
	cfg      Config
	store    domain.SessionStore
	corals   CoralSource
	locator  domain.Locator
	recorder Recorder
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *observability.Metrics

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a Service. recorder may be nil when no sink is configured.
func New(cfg Config, store domain.SessionStore, corals CoralSource, locator domain.Locator, recorder Recorder, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if cfg.MarkerCount <= 0 {
		cfg.MarkerCount = domain.MaxSailorMarkers
	}
	now := uint64(time.Now().UnixNano())
	return &Service{
		cfg:      cfg,
		store:    store,
		corals:   corals,
		locator:  locator,
		recorder: recorder,
		validate: validator.New(),
		logger:   logger,
		metrics:  metrics,
		rng:      rand.New(rand.NewPCG(now, now>>1|1)),
	}
}

// Session loads the session for id, creating a fresh one when id is empty
// or unknown, and regenerates its random markers when the hour has changed.
func (s *Service) Session(ctx context.Context, id string) (*domain.Session, error) {
	var sess *domain.Session
	if id != "" {
		got, err := s.store.Get(ctx, id)
		switch {
		case err == nil:
			sess = got
		case errors.Is(err, domain.ErrSessionNotFound):
		default:
			return nil, fmt.Errorf("load session: %w", err)
		}
	}
	if sess == nil {
		sess = domain.NewSession(uuid.NewString())
		s.logger.DebugContext(ctx, "session created", "session_id", sess.ID)
	}

	s.rngMu.Lock()
	refreshed := sess.RefreshMarkers(s.rng, s.cfg.MarkerCount)
	s.rngMu.Unlock()
	if refreshed {
		s.metrics.MarkerRefreshes.Inc()
	}
	return sess, nil
}

// View loads the session, consumes its pending error, saves it and, on the
// map page, builds the map.
func (s *Service) View(ctx context.Context, id string) (*View, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	v := &View{
		Session: sess,
		Error:   sess.TakeError(),
		Allowed: domain.AllowedEvents(sess.Page),
	}
	if sess.Page == domain.PageMap {
		m, err := s.MapView(ctx, sess)
		if err != nil {
			v.MapErr = err
		} else {
			v.Map = &m
		}
	}
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return v, nil
}

// Handle applies the form's event to the session and saves it. A rejected
// event returns an error wrapping domain.ErrInvalidTransition and leaves the
// session unchanged. Lookup failures are reported through the session's
// inline error and keep the session on its page.
func (s *Service) Handle(ctx context.Context, sess *domain.Session, form Form, clientIP string) error {
	if err := s.validate.Struct(form); err != nil {
		s.metrics.Transitions.WithLabelValues("unknown", "rejected").Inc()
		return fmt.Errorf("%w: event %q: %w", domain.ErrInvalidTransition, form.Event, err)
	}
	e := domain.Event(form.Event)
	if _, err := domain.Next(sess.Page, e); err != nil {
		s.metrics.Transitions.WithLabelValues(string(e), "rejected").Inc()
		return err
	}

	if e.IsCheckin() {
		ok, err := s.checkin(ctx, sess, e.Role(), form, clientIP)
		if err != nil {
			return err
		}
		if !ok {
			return s.Save(ctx, sess)
		}
	}

	if err := sess.Apply(e); err != nil {
		return err
	}
	s.metrics.Transitions.WithLabelValues(string(e), "ok").Inc()
	return s.Save(ctx, sess)
}

// checkin resolves the location and records it. It reports false when the
// lookup failed and the session carries an inline error.
func (s *Service) checkin(ctx context.Context, sess *domain.Session, role domain.Role, form Form, clientIP string) (bool, error) {
	loc, source, err := domain.ResolveLocation(ctx, form.Name, clientIP, s.locator)
	if err != nil {
		s.logger.WarnContext(ctx, "location lookup failed",
			"session_id", sess.ID,
			"role", role,
			"error", err,
		)
		sess.Error = "Error getting user location: " + err.Error()
		return false, nil
	}

	c := domain.NewCheckin(role, form.Name, form.HullID, loc, source)
	sess.RecordCheckin(c)
	s.metrics.Checkins.WithLabelValues(string(role)).Inc()
	s.logger.InfoContext(ctx, "checkin complete",
		"session_id", sess.ID,
		"checkin_id", c.ID,
		"role", role,
		"source", source,
	)
	if s.recorder != nil {
		s.recorder.Enqueue(c)
	}
	return true, nil
}

// SetZoom centers the map on c. Out of range coordinates are rejected.
func (s *Service) SetZoom(ctx context.Context, sess *domain.Session, c domain.Coordinate) error {
	if !c.Valid() {
		return fmt.Errorf("zoom coordinate %s out of range", c)
	}
	sess.SetZoom(c)
	return s.Save(ctx, sess)
}

// Reset discards the session and returns a fresh one on the home page.
func (s *Service) Reset(ctx context.Context, id string) (*domain.Session, error) {
	if id != "" {
		if err := s.store.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("delete session: %w", err)
		}
	}
	sess, err := s.Session(ctx, "")
	if err != nil {
		return nil, err
	}
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// MapView builds the map for sess from the configured archive.
func (s *Service) MapView(ctx context.Context, sess *domain.Session) (mapview.Model, error) {
	corals, err := s.Corals(ctx)
	if err != nil {
		return mapview.Model{}, err
	}
	return mapview.Build(corals, sess, mapview.Options{Cluster: s.cfg.Cluster}), nil
}

// Corals returns the coral records of the configured archive.
func (s *Service) Corals(ctx context.Context) ([]domain.CoralRecord, error) {
	records, err := s.corals.Load(ctx, s.cfg.CoralArchive)
	if err != nil {
		return nil, fmt.Errorf("load corals: %w", err)
	}
	return records, nil
}

// Save persists sess.
func (s *Service) Save(ctx context.Context, sess *domain.Session) error {
	if err := s.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// CheckReadiness reports whether the coral archive loads and the session
// store is reachable.
func (s *Service) CheckReadiness(ctx context.Context) error {
	if _, err := s.Corals(ctx); err != nil {
		return err
	}
	if p, ok := s.store.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("session store: %w", err)
		}
	}
	return nil
}
