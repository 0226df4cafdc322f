// Package dispatch delivers recorded check-ins to downstream sinks in batches.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/safesea/internal/domain"
	"github.com/couchcryptid/safesea/internal/observability"
)

// Sink receives batches of check-ins.
type Sink interface {
	Name() string
	RecordBatch(ctx context.Context, checkins []domain.Checkin) error
}

const (
	defaultQueueSize = 1024
	maxAttempts      = 5
	drainTimeout     = 5 * time.Second
)

// Dispatcher buffers check-ins in a bounded queue and flushes them to every
// sink when the batch is full or the flush interval elapses. Enqueue never
// blocks; a full queue drops the check-in.
type Dispatcher struct {
	sinks         []Sink
	queue         chan domain.Checkin
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	metrics       *observability.Metrics

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// New creates a Dispatcher. A queueSize <= 0 uses a default.
func New(sinks []Sink, logger *slog.Logger, metrics *observability.Metrics, batchSize int, flushInterval time.Duration, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Dispatcher{
		sinks:          sinks,
		queue:          make(chan domain.Checkin, queueSize),
		batchSize:      batchSize,
		flushInterval:  flushInterval,
		logger:         logger,
		metrics:        metrics,
		initialBackoff: 200 * time.Millisecond,
		maxBackoff:     5 * time.Second,
	}
}

// Enabled reports whether any sink is configured.
func (d *Dispatcher) Enabled() bool {
	return len(d.sinks) > 0
}

// Enqueue hands c to the dispatcher. It reports false when the check-in was
// dropped because the queue is full or no sink is configured.
func (d *Dispatcher) Enqueue(c domain.Checkin) bool {
	if !d.Enabled() {
		return false
	}
	select {
	case d.queue <- c:
		d.metrics.DispatchQueued.Inc()
		return true
	default:
		d.metrics.DispatchDropped.Inc()
		d.logger.Warn("dispatch queue full, dropping checkin", "checkin_id", c.ID)
		return false
	}
}

// Run flushes batches until ctx is canceled, then drains what is queued.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher started",
		"sinks", len(d.sinks),
		"batch_size", d.batchSize,
		"flush_interval", d.flushInterval,
	)
	d.metrics.DispatchRunning.Set(1)
	defer d.metrics.DispatchRunning.Set(0)

	ticker := time.NewTicker(d.flushInterval)
	defer ticker.Stop()

	batch := make([]domain.Checkin, 0, d.batchSize)
	var stalled []pending
	flush := func() {
		stalled = append(stalled, d.flush(ctx, batch)...)
		batch = batch[:0]
	}
	for {
		select {
		case <-ctx.Done():
			d.drain(stalled, batch)
			d.logger.Info("dispatcher stopping", "reason", ctx.Err())
			return nil
		case c := <-d.queue:
			batch = append(batch, c)
			if len(batch) >= d.batchSize {
				flush()
			}
		case <-ticker.C:
			if len(batch) > 0 {
				flush()
			}
		}
	}
}

// pending is a batch whose delivery to sink was cut short by shutdown.
type pending struct {
	sink  Sink
	batch []domain.Checkin
}

// drain retries the stalled deliveries, then delivers the open batch and
// anything still queued, with a single attempt per sink under a fresh deadline.
func (d *Dispatcher) drain(stalled []pending, batch []domain.Checkin) {
	for len(d.queue) > 0 {
		batch = append(batch, <-d.queue)
	}
	if len(stalled) == 0 && len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for _, p := range stalled {
		d.deliver(ctx, p.sink, p.batch, 1)
	}
	if len(batch) == 0 {
		return
	}
	for _, s := range d.sinks {
		d.deliver(ctx, s, batch, 1)
	}
}

// flush delivers batch to every sink and returns the deliveries that ctx
// interrupted. Returned batches are copies.
func (d *Dispatcher) flush(ctx context.Context, batch []domain.Checkin) []pending {
	var stalled []pending
	for _, s := range d.sinks {
		if d.deliver(ctx, s, batch, maxAttempts) {
			continue
		}
		stalled = append(stalled, pending{sink: s, batch: append([]domain.Checkin(nil), batch...)})
	}
	return stalled
}

// deliver sends batch to s, retrying with exponential backoff. The batch is
// dropped after attempts failures. It reports false when ctx ended before
// the batch was either sent or dropped.
func (d *Dispatcher) deliver(ctx context.Context, s Sink, batch []domain.Checkin, attempts int) bool {
	backoff := d.initialBackoff
	for attempt := 1; ; attempt++ {
		err := s.RecordBatch(ctx, batch)
		if err == nil {
			d.metrics.DispatchSent.WithLabelValues(s.Name()).Add(float64(len(batch)))
			return true
		}
		d.metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
		d.logger.Error("sink write failed",
			"sink", s.Name(),
			"attempt", attempt,
			"batch_size", len(batch),
			"error", err,
		)
		if attempt >= attempts {
			d.logger.Warn("dropping checkin batch", "sink", s.Name(), "batch_size", len(batch))
			return true
		}
		if !sleepWithContext(ctx, backoff) {
			return false
		}
		backoff = nextBackoff(backoff, d.maxBackoff)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
