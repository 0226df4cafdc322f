package locate

import (
	"context"
	"time"

	"github.com/couchcryptid/safesea/internal/domain"
	"github.com/couchcryptid/safesea/internal/observability"
)

// Instrumented bounds each lookup by a timeout and records its outcome.
type Instrumented struct {
	inner   domain.Locator
	timeout time.Duration
	metrics *observability.Metrics
}

// NewInstrumented wraps inner. A timeout <= 0 relies on the caller's context.
func NewInstrumented(inner domain.Locator, timeout time.Duration, metrics *observability.Metrics) *Instrumented {
	return &Instrumented{inner: inner, timeout: timeout, metrics: metrics}
}

func (l *Instrumented) Name() string { return l.inner.Name() }

func (l *Instrumented) Locate(ctx context.Context, ip string) (domain.Coordinate, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	coord, err := l.inner.Locate(ctx, ip)
	l.metrics.LocateDuration.WithLabelValues(l.inner.Name()).Observe(time.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	l.metrics.LocateRequests.WithLabelValues(l.inner.Name(), outcome).Inc()
	return coord, err
}
