// Package locate builds the configured location provider and its decorators.
package locate

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/couchcryptid/safesea/internal/adapter/geoip"
	"github.com/couchcryptid/safesea/internal/adapter/googlemaps"
	"github.com/couchcryptid/safesea/internal/adapter/ipinfo"
	"github.com/couchcryptid/safesea/internal/domain"
	"github.com/couchcryptid/safesea/internal/observability"
)

// ProviderType names a location provider.
type ProviderType string

const (
	ProviderTypeIPInfo ProviderType = "ipinfo"
	ProviderTypeGeoIP2 ProviderType = "geoip2"
	ProviderTypeGoogle ProviderType = "google"
)

// ProviderConfig holds what is needed to build a provider.
type ProviderConfig struct {
	Type      ProviderType
	Timeout   time.Duration
	CacheSize int // 0 disables caching

	IPInfoURL   string
	IPInfoToken string

	GeoIPDBPath string

	GoogleAPIKey  string
	GoogleBaseURL string

	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Provider is a locator that may hold resources.
type Provider interface {
	domain.Locator
	io.Closer
}

// NewProvider creates the configured locator wrapped with metrics and, when
// CacheSize > 0, an LRU cache keyed by client address.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	var (
		inner  domain.Locator
		closer io.Closer
	)
	switch cfg.Type {
	case ProviderTypeIPInfo:
		inner = ipinfo.NewClient(cfg.IPInfoURL, cfg.IPInfoToken, cfg.Timeout, cfg.Logger)
	case ProviderTypeGeoIP2:
		if cfg.GeoIPDBPath == "" {
			return nil, errors.New("database path is required for geoip2 provider")
		}
		r, err := geoip.Open(cfg.GeoIPDBPath)
		if err != nil {
			return nil, err
		}
		inner, closer = r, r
	case ProviderTypeGoogle:
		client, err := googlemaps.NewClient(cfg.GoogleAPIKey, cfg.GoogleBaseURL)
		if err != nil {
			return nil, err
		}
		inner = googlemaps.NewLocator(client, cfg.Logger)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Type)
	}

	loc := NewInstrumented(inner, cfg.Timeout, cfg.Metrics)
	var outer domain.Locator = loc
	if cfg.CacheSize > 0 {
		cached, err := NewCachedLocator(loc, cfg.CacheSize, DefaultSelfTTL, cfg.Metrics)
		if err != nil {
			if closer != nil {
				_ = closer.Close()
			}
			return nil, err
		}
		outer = cached
	}
	return &provider{Locator: outer, closer: closer}, nil
}

type provider struct {
	domain.Locator
	closer io.Closer
}

func (p *provider) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}
