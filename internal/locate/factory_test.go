package locate

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/safesea/internal/domain"
	"github.com/couchcryptid/safesea/internal/observability"
)

func testConfig(t ProviderType) ProviderConfig {
	return ProviderConfig{
		Type:      t,
		Timeout:   time.Second,
		CacheSize: 10,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:   observability.NewMetricsForTesting(),
	}
}

func TestNewProvider_IPInfo(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"ip":"198.51.100.1","loc":"12.5,45.25"}`))
	}))
	defer srv.Close()

	cfg := testConfig(ProviderTypeIPInfo)
	cfg.IPInfoURL = srv.URL
	p, err := NewProvider(cfg)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "ipinfo", p.Name())
	for range 2 {
		coord, err := p.Locate(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, domain.Coordinate{Lat: 12.5, Lon: 45.25}, coord)
	}
	assert.Equal(t, 1, calls, "second lookup served from cache")
	assert.InDelta(t, 1, testutil.ToFloat64(cfg.Metrics.LocateRequests.WithLabelValues("ipinfo", "success")), 0)
}

func TestNewProvider_NoCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"loc":"1,2"}`))
	}))
	defer srv.Close()

	cfg := testConfig(ProviderTypeIPInfo)
	cfg.IPInfoURL = srv.URL
	cfg.CacheSize = 0
	p, err := NewProvider(cfg)
	require.NoError(t, err)

	_, _ = p.Locate(context.Background(), "")
	_, _ = p.Locate(context.Background(), "")
	assert.Equal(t, 2, calls)
}

func TestNewProvider_GeoIPRequiresPath(t *testing.T) {
	_, err := NewProvider(testConfig(ProviderTypeGeoIP2))
	require.Error(t, err)

	cfg := testConfig(ProviderTypeGeoIP2)
	cfg.GeoIPDBPath = filepath.Join(t.TempDir(), "missing.mmdb")
	_, err = NewProvider(cfg)
	require.Error(t, err)
}

func TestNewProvider_Google(t *testing.T) {
	_, err := NewProvider(testConfig(ProviderTypeGoogle))
	require.Error(t, err, "API key required")

	cfg := testConfig(ProviderTypeGoogle)
	cfg.GoogleAPIKey = "AIza-test-key"
	p, err := NewProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())
	require.NoError(t, p.Close())
}

func TestNewProvider_Unsupported(t *testing.T) {
	_, err := NewProvider(testConfig("carrier-pigeon"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider type")
}

type slowLocator struct{}

func (slowLocator) Name() string { return "slow" }

func (slowLocator) Locate(ctx context.Context, _ string) (domain.Coordinate, error) {
	<-ctx.Done()
	return domain.Coordinate{}, ctx.Err()
}

func TestInstrumented_Timeout(t *testing.T) {
	m := observability.NewMetricsForTesting()
	l := NewInstrumented(slowLocator{}, 20*time.Millisecond, m)

	_, err := l.Locate(context.Background(), "")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LocateRequests.WithLabelValues("slow", "error")), 0)
	assert.Equal(t, "slow", l.Name())
}
