package locate

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/couchcryptid/safesea/internal/domain"
	"github.com/couchcryptid/safesea/internal/observability"
)

// DefaultSelfTTL bounds how long the server's own location is reused for
// clients without a public address.
const DefaultSelfTTL = 10 * time.Minute

const selfKey = "self"

// CachedLocator wraps a Locator with an LRU cache keyed by public client
// address. Lookups for non-public clients locate the server itself and share
// one entry that expires after selfTTL.
type CachedLocator struct {
	inner   domain.Locator
	public  *lru.Cache[string, domain.Coordinate]
	self    *expirable.LRU[string, domain.Coordinate]
	metrics *observability.Metrics
}

// NewCachedLocator creates a cache decorator around a locator. A selfTTL <= 0
// uses DefaultSelfTTL.
func NewCachedLocator(inner domain.Locator, maxEntries int, selfTTL time.Duration, metrics *observability.Metrics) (*CachedLocator, error) {
	public, err := lru.New[string, domain.Coordinate](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create locator cache: %w", err)
	}
	if selfTTL <= 0 {
		selfTTL = DefaultSelfTTL
	}
	return &CachedLocator{
		inner:   inner,
		public:  public,
		self:    expirable.NewLRU[string, domain.Coordinate](1, nil, selfTTL),
		metrics: metrics,
	}, nil
}

func (c *CachedLocator) Name() string { return c.inner.Name() }

func (c *CachedLocator) Locate(ctx context.Context, ip string) (domain.Coordinate, error) {
	get, add := c.self.Get, func(k string, v domain.Coordinate) { c.self.Add(k, v) }
	key := selfKey
	if addr, ok := domain.PublicAddr(ip); ok {
		key = addr.String()
		get, add = c.public.Get, func(k string, v domain.Coordinate) { c.public.Add(k, v) }
	}

	if coord, ok := get(key); ok {
		c.metrics.LocateCache.WithLabelValues("hit").Inc()
		return coord, nil
	}
	c.metrics.LocateCache.WithLabelValues("miss").Inc()

	coord, err := c.inner.Locate(ctx, ip)
	if err != nil {
		// Failures are not cached so the next check-in tries again.
		return coord, err
	}
	add(key, coord)
	return coord, nil
}

// Len returns the number of cached entries, the self entry included.
func (c *CachedLocator) Len() int {
	return c.public.Len() + c.self.Len()
}
