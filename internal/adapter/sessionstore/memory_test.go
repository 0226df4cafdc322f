package sessionstore

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/safesea/internal/domain"
)

func TestMemory_SaveGet(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMemory(time.Hour, clock)
	ctx := context.Background()

	s := domain.NewSession("abc")
	s.SailorLocation = &domain.Coordinate{Lat: 1, Lon: 2}
	s.SailorMarkers = []domain.Coordinate{{Lat: 3, Lon: 4}}
	require.NoError(t, m.Save(ctx, s))

	got, err := m.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, *s.SailorLocation, *got.SailorLocation)
	assert.Equal(t, s.SailorMarkers, got.SailorMarkers)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	m := NewMemory(time.Hour, clockwork.NewFakeClock())
	ctx := context.Background()

	s := domain.NewSession("abc")
	s.SailorMarkers = []domain.Coordinate{{Lat: 3, Lon: 4}}
	require.NoError(t, m.Save(ctx, s))
	s.SailorMarkers[0].Lat = 99

	got, err := m.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.SailorMarkers[0].Lat)

	got.Page = domain.PageMap
	again, err := m.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, domain.PageHome, again.Page)
}

func TestMemory_NotFound(t *testing.T) {
	m := NewMemory(time.Hour, nil)
	_, err := m.Get(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemory_Expiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMemory(time.Hour, clock)
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, domain.NewSession("abc")))

	clock.Advance(59 * time.Minute)
	_, err := m.Get(ctx, "abc")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = m.Get(ctx, "abc")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_SaveRestartsTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMemory(time.Hour, clock)
	ctx := context.Background()

	s := domain.NewSession("abc")
	require.NoError(t, m.Save(ctx, s))
	clock.Advance(50 * time.Minute)
	require.NoError(t, m.Save(ctx, s))
	clock.Advance(50 * time.Minute)

	_, err := m.Get(ctx, "abc")
	require.NoError(t, err)
}

func TestMemory_Delete(t *testing.T) {
	m := NewMemory(time.Hour, clockwork.NewFakeClock())
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, domain.NewSession("abc")))
	require.NoError(t, m.Delete(ctx, "abc"))
	require.NoError(t, m.Delete(ctx, "abc"), "deleting twice is fine")

	_, err := m.Get(ctx, "abc")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemory_Sweep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMemory(time.Hour, clock)
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, domain.NewSession("old")))
	clock.Advance(30 * time.Minute)
	require.NoError(t, m.Save(ctx, domain.NewSession("new")))
	clock.Advance(45 * time.Minute)

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())
}

func TestMemory_RunSweepsOnTick(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMemory(time.Minute, clock)
	require.NoError(t, m.Save(context.Background(), domain.NewSession("abc")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 5*time.Minute)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(5 * time.Minute)
	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
