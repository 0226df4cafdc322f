// Package googlemaps resolves approximate coordinates with the Google Maps Geolocation API.
package googlemaps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"googlemaps.github.io/maps"

	"github.com/couchcryptid/safesea/internal/domain"
)

// GeolocationAPI is the subset of the Google Maps client the locator calls.
type GeolocationAPI interface {
	Geolocate(ctx context.Context, r *maps.GeolocationRequest) (*maps.GeolocationResult, error)
}

// Locator implements domain.Locator using IP-based Google geolocation.
type Locator struct {
	client GeolocationAPI
	logger *slog.Logger
}

// NewClient builds a Google Maps client. An empty baseURL uses the public API.
func NewClient(apiKey, baseURL string) (*maps.Client, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required for Google provider")
	}
	opts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, maps.WithBaseURL(baseURL))
	}
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}
	return client, nil
}

// NewLocator wraps a Geolocation API client.
func NewLocator(client GeolocationAPI, logger *slog.Logger) *Locator {
	return &Locator{client: client, logger: logger}
}

func (l *Locator) Name() string { return "google" }

// Locate asks Google to place the caller by IP. The API only considers the
// address the request originates from, so ip is used for logging only.
func (l *Locator) Locate(ctx context.Context, ip string) (domain.Coordinate, error) {
	l.logger.DebugContext(ctx, "geolocating using Google Maps", "client_ip", ip)

	res, err := l.client.Geolocate(ctx, &maps.GeolocationRequest{ConsiderIP: true})
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("google geolocate: %w", err)
	}
	if res == nil {
		return domain.Coordinate{}, fmt.Errorf("%w: empty response from Google Maps API", domain.ErrLocationUnavailable)
	}

	coord := domain.Coordinate{Lat: res.Location.Lat, Lon: res.Location.Lng}
	if !coord.Valid() {
		return domain.Coordinate{}, fmt.Errorf("%w: google returned %s", domain.ErrLocationUnavailable, coord)
	}
	return coord, nil
}
