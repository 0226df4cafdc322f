// Package ipinfo resolves approximate coordinates from an ipinfo-style JSON endpoint.
package ipinfo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/couchcryptid/safesea/internal/domain"
)

// DefaultBaseURL is the public ipinfo endpoint.
const DefaultBaseURL = "https://ipinfo.io"

// Client implements domain.Locator using the ipinfo JSON API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates an ipinfo client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

func (c *Client) Name() string { return "ipinfo" }

// Locate returns the coordinates of ip. A missing or non-public ip locates
// the address the request originates from.
func (c *Client) Locate(ctx context.Context, ip string) (domain.Coordinate, error) {
	u := c.baseURL + "/json"
	if addr, ok := domain.PublicAddr(ip); ok {
		u = fmt.Sprintf("%s/%s/json", c.baseURL, url.PathEscape(addr.String()))
	}
	if c.token != "" {
		u += "?" + url.Values{"token": {c.token}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("ipinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Coordinate{}, fmt.Errorf("ipinfo API error: status %d: %s", resp.StatusCode, body)
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return domain.Coordinate{}, fmt.Errorf("decode response: %w", err)
	}
	if r.Bogon {
		return domain.Coordinate{}, fmt.Errorf("%w: %s is a bogon address", domain.ErrLocationUnavailable, r.IP)
	}

	coord, err := parseLoc(r.Loc)
	if err != nil {
		return domain.Coordinate{}, err
	}
	c.logger.DebugContext(ctx, "ipinfo lookup", "ip", r.IP, "city", r.City, "loc", r.Loc)
	return coord, nil
}

// parseLoc splits the "lat,lon" string ipinfo returns.
func parseLoc(loc string) (domain.Coordinate, error) {
	latStr, lonStr, ok := strings.Cut(loc, ",")
	if !ok {
		return domain.Coordinate{}, fmt.Errorf("%w: malformed loc %q", domain.ErrLocationUnavailable, loc)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("%w: malformed loc %q", domain.ErrLocationUnavailable, loc)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("%w: malformed loc %q", domain.ErrLocationUnavailable, loc)
	}
	coord := domain.Coordinate{Lat: lat, Lon: lon}
	if !coord.Valid() {
		return domain.Coordinate{}, fmt.Errorf("%w: loc %q out of range", domain.ErrLocationUnavailable, loc)
	}
	return coord, nil
}

// ipinfo API response.

type response struct {
	IP      string `json:"ip"`
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
	Loc     string `json:"loc"` // "lat,lon"
	Bogon   bool   `json:"bogon"`
}
