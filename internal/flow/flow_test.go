package flow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/safesea/internal/adapter/sessionstore"
	"github.com/couchcryptid/safesea/internal/coral"
	"github.com/couchcryptid/safesea/internal/domain"
	"github.com/couchcryptid/safesea/internal/observability"
)

// --- mocks ---

type stubCorals struct {
	records []domain.CoralRecord
	err     error
	paths   []string
}

func (s *stubCorals) Load(_ context.Context, path string) ([]domain.CoralRecord, error) {
	s.paths = append(s.paths, path)
	return s.records, s.err
}

type mockLocator struct {
	result domain.Coordinate
	err    error
	calls  int
	ips    []string
}

func (m *mockLocator) Locate(_ context.Context, ip string) (domain.Coordinate, error) {
	m.calls++
	m.ips = append(m.ips, ip)
	return m.result, m.err
}

func (m *mockLocator) Name() string { return "mock" }

type recorder struct {
	checkins []domain.Checkin
}

func (r *recorder) Enqueue(c domain.Checkin) bool {
	r.checkins = append(r.checkins, c)
	return true
}

type fixture struct {
	svc     *Service
	store   *sessionstore.Memory
	corals  *stubCorals
	locator *mockLocator
	rec     *recorder
	metrics *observability.Metrics
	clock   *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 12, 15, 0, 0, time.UTC))
	domain.SetClock(clock)
	t.Cleanup(func() { domain.SetClock(nil) })

	f := &fixture{
		store: sessionstore.NewMemory(time.Hour, clock),
		corals: &stubCorals{records: []domain.CoralRecord{
			{Coordinate: domain.Coordinate{Lat: 10, Lon: 20}},
			{Coordinate: domain.Coordinate{Lat: 20, Lon: 40}},
		}},
		locator: &mockLocator{result: domain.Coordinate{Lat: 40.7128, Lon: -74.006}},
		rec:     &recorder{},
		metrics: observability.NewMetricsForTesting(),
		clock:   clock,
	}
	f.svc = New(
		Config{CoralArchive: "Book3.zip", MarkerCount: 100, Cluster: true},
		f.store, f.corals, f.locator, f.rec,
		slog.New(slog.NewTextHandler(io.Discard, nil)), f.metrics,
	)
	return f
}

func (f *fixture) session(t *testing.T, id string) *domain.Session {
	t.Helper()
	sess, err := f.svc.Session(context.Background(), id)
	require.NoError(t, err)
	return sess
}

func (f *fixture) handle(t *testing.T, sess *domain.Session, form Form) error {
	t.Helper()
	return f.svc.Handle(context.Background(), sess, form, "203.0.113.7")
}

// --- tests ---

func TestSession_CreatesFreshSession(t *testing.T) {
	f := newFixture(t)

	sess := f.session(t, "")
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, domain.PageHome, sess.Page)
	assert.Len(t, sess.SailorMarkers, 100)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.MarkerRefreshes), 0)

	unknown := f.session(t, "does-not-exist")
	assert.NotEqual(t, "does-not-exist", unknown.ID)
}

func TestSession_MarkersRefreshOncePerHour(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess := f.session(t, "")
	require.NoError(t, f.svc.Save(ctx, sess))
	first := append([]domain.Coordinate(nil), sess.SailorMarkers...)

	f.clock.Advance(30 * time.Minute) // 12:45, same hour
	again := f.session(t, sess.ID)
	assert.Equal(t, first, again.SailorMarkers)
	require.NoError(t, f.svc.Save(ctx, again))

	f.clock.Advance(20 * time.Minute) // 13:05
	later := f.session(t, sess.ID)
	assert.NotEqual(t, first, later.SailorMarkers)
	assert.InDelta(t, 2, testutil.ToFloat64(f.metrics.MarkerRefreshes), 0)
}

func TestHandle_SailorFlowToMap(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t, "")

	require.NoError(t, f.handle(t, sess, Form{Event: "choose_sailor"}))
	assert.Equal(t, domain.PageSailorCheckin, sess.Page)

	require.NoError(t, f.handle(t, sess, Form{Event: "submit_sailor", Name: "Ada", HullID: "HIN-123"}))
	assert.Equal(t, domain.PageSailorConfirmation, sess.Page)
	require.NotNil(t, sess.SailorLocation)
	assert.Equal(t, domain.Coordinate{Lat: 40.7128, Lon: -74.006}, *sess.SailorLocation)
	assert.Nil(t, sess.DiverLocation)
	assert.Equal(t, []string{"203.0.113.7"}, f.locator.ips)

	require.Len(t, f.rec.checkins, 1)
	c := f.rec.checkins[0]
	assert.Equal(t, "Ada", c.Name)
	assert.Equal(t, "HIN-123", c.HullID)
	assert.Equal(t, "mock", c.Source)
	assert.Equal(t, c.ID, sess.LastCheckin.ID)

	require.NoError(t, f.handle(t, sess, Form{Event: "open_map"}))
	assert.Equal(t, domain.PageMap, sess.Page)

	stored, err := f.store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PageMap, stored.Page)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.Checkins.WithLabelValues("sailor")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.Transitions.WithLabelValues("open_map", "ok")), 0)
}

func TestHandle_DiverFixedName(t *testing.T) {
	f := newFixture(t)
	f.locator.err = errors.New("network unreachable")
	sess := f.session(t, "")

	require.NoError(t, f.handle(t, sess, Form{Event: "choose_diver"}))
	require.NoError(t, f.handle(t, sess, Form{Event: "submit_diver", Name: domain.FixedName, HullID: "ignored"}))

	assert.Equal(t, domain.PageDiverConfirmation, sess.Page)
	require.NotNil(t, sess.DiverLocation)
	assert.Equal(t, domain.FixedLocation, *sess.DiverLocation)
	assert.Equal(t, 0, f.locator.calls)
	require.Len(t, f.rec.checkins, 1)
	assert.Empty(t, f.rec.checkins[0].HullID)
	assert.Equal(t, domain.SourceFixed, f.rec.checkins[0].Source)
}

func TestHandle_EmptyNameAccepted(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t, "")

	require.NoError(t, f.handle(t, sess, Form{Event: "choose_sailor"}))
	require.NoError(t, f.handle(t, sess, Form{Event: "submit_sailor"}))
	assert.Equal(t, domain.PageSailorConfirmation, sess.Page)
}

func TestHandle_LookupFailureStaysOnPage(t *testing.T) {
	f := newFixture(t)
	f.locator.err = errors.New("ipinfo request: timeout")
	sess := f.session(t, "")

	require.NoError(t, f.handle(t, sess, Form{Event: "choose_sailor"}))
	require.NoError(t, f.handle(t, sess, Form{Event: "submit_sailor", Name: "Ada"}))

	assert.Equal(t, domain.PageSailorCheckin, sess.Page)
	assert.Nil(t, sess.SailorLocation, "no default coordinate")
	assert.Contains(t, sess.Error, "Error getting user location")
	assert.Contains(t, sess.Error, "timeout")
	assert.Empty(t, f.rec.checkins)
	assert.Equal(t, 1, f.locator.calls, "no retry")

	v, err := f.svc.View(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Contains(t, v.Error, "timeout")

	v, err = f.svc.View(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Empty(t, v.Error, "inline error is shown once")
}

func TestHandle_LongInputAccepted(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t, "")

	name := strings.Repeat("a", 101)
	hull := strings.Repeat("X", 65)
	require.NoError(t, f.handle(t, sess, Form{Event: "choose_sailor"}))
	require.NoError(t, f.handle(t, sess, Form{Event: "submit_sailor", Name: name, HullID: hull}))

	assert.Equal(t, domain.PageSailorConfirmation, sess.Page)
	assert.Empty(t, sess.Error)
	require.Len(t, f.rec.checkins, 1)
	assert.Equal(t, name, f.rec.checkins[0].Name)
	assert.Equal(t, hull, f.rec.checkins[0].HullID)
}

func TestHandle_PaddedFixedNameIsLookedUp(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t, "")

	require.NoError(t, f.handle(t, sess, Form{Event: "choose_diver"}))
	require.NoError(t, f.handle(t, sess, Form{Event: "submit_diver", Name: " " + domain.FixedName + " "}))

	assert.Equal(t, 1, f.locator.calls, "only the exact name skips the lookup")
	require.NotNil(t, sess.DiverLocation)
	assert.Equal(t, f.locator.result, *sess.DiverLocation)
	assert.Equal(t, " "+domain.FixedName+" ", f.rec.checkins[0].Name)
}

func TestForm_EventLabelsValidate(t *testing.T) {
	f := newFixture(t)
	for _, e := range []domain.Event{
		domain.EventChooseSailor, domain.EventChooseDiver,
		domain.EventSubmitSailor, domain.EventSubmitDiver, domain.EventOpenMap,
	} {
		assert.NoError(t, f.svc.validate.Struct(Form{Event: string(e)}), e)
	}
	assert.Error(t, f.svc.validate.Struct(Form{Event: "Choose_Sailor"}))
}

func TestHandle_InvalidTransitions(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t, "")

	for _, ev := range []string{"submit_sailor", "submit_diver", "open_map", "bogus", ""} {
		err := f.handle(t, sess, Form{Event: ev})
		require.ErrorIs(t, err, domain.ErrInvalidTransition, ev)
		assert.Equal(t, domain.PageHome, sess.Page)
	}
	assert.Equal(t, 0, f.locator.calls)
}

func TestHandle_MapIsTerminal(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t, "")
	sess.Page = domain.PageMap

	for _, ev := range []string{"choose_sailor", "choose_diver", "submit_sailor", "submit_diver", "open_map"} {
		require.ErrorIs(t, f.handle(t, sess, Form{Event: ev}), domain.ErrInvalidTransition)
	}
	assert.Equal(t, domain.PageMap, sess.Page)
}

func TestView_MapPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, "")
	sess.Page = domain.PageMap
	require.NoError(t, f.svc.Save(ctx, sess))

	v, err := f.svc.View(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, v.Map)
	assert.NoError(t, v.MapErr)
	assert.Equal(t, domain.Coordinate{Lat: 15, Lon: 30}, v.Map.Center)
	assert.True(t, v.Map.Cluster)
	assert.Len(t, v.Map.Corals, 2)
	assert.Len(t, v.Map.Markers, 100)
	assert.Empty(t, v.Allowed)
	assert.Equal(t, []string{"Book3.zip"}, f.corals.paths)
}

func TestView_MapPageCoralFailure(t *testing.T) {
	f := newFixture(t)
	f.corals.err = coral.ErrArchiveNotFound
	ctx := context.Background()
	sess := f.session(t, "")
	sess.Page = domain.PageMap
	require.NoError(t, f.svc.Save(ctx, sess))

	v, err := f.svc.View(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, v.Map)
	require.ErrorIs(t, v.MapErr, coral.ErrArchiveNotFound)
}

func TestView_HomeSkipsCorals(t *testing.T) {
	f := newFixture(t)
	v, err := f.svc.View(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, v.Map)
	assert.Equal(t, []domain.Event{domain.EventChooseSailor, domain.EventChooseDiver}, v.Allowed)
	assert.Empty(t, f.corals.paths)
}

func TestSetZoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, "")

	require.NoError(t, f.svc.SetZoom(ctx, sess, domain.Coordinate{Lat: 1, Lon: 2}))
	stored, err := f.store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinate{Lat: 1, Lon: 2}, *stored.Zoom)

	require.Error(t, f.svc.SetZoom(ctx, sess, domain.Coordinate{Lat: 100, Lon: 2}))
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, "")
	sess.Page = domain.PageMap
	require.NoError(t, f.svc.Save(ctx, sess))

	fresh, err := f.svc.Reset(ctx, sess.ID)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, fresh.ID)
	assert.Equal(t, domain.PageHome, fresh.Page)

	_, err = f.store.Get(ctx, sess.ID)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = f.store.Get(ctx, fresh.ID)
	require.NoError(t, err)
}

func TestCheckReadiness(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.CheckReadiness(context.Background()))

	f.corals.err = coral.ErrNoValidCoordinates
	err := f.svc.CheckReadiness(context.Background())
	require.ErrorIs(t, err, coral.ErrNoValidCoordinates)
}
