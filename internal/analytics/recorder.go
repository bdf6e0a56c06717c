// Package analytics batches visitor events for delivery to the marketplace
// API. Views are fire-once-per-mount and tolerated as lossy; clicks are
// counted, debounced and never lost short of a process kill.
package analytics

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"droffers.app/internal/audit"
	"droffers.app/internal/ids"
	"droffers.app/internal/obs"
)

const (
	defaultDebounce    = time.Second
	defaultSendTimeout = 5 * time.Second
)

// Sender delivers analytics events. *api.Client satisfies it.
type Sender interface {
	RecordView(ctx context.Context, brandID string) error
	RecordClicks(ctx context.Context, brandID string, count int64, idemKey string) error
}

// Recorder batches events for one brand page mount. Create one per mount and
// Close it when the page goes away; Close performs the final flush.
type Recorder struct {
	sender      Sender
	brandID     string
	debounce    time.Duration
	sendTimeout time.Duration
	limiter     *rate.Limiter

	mu       sync.Mutex
	pending  int64
	timer    *time.Timer
	viewSent bool
	closed   bool
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithDebounce overrides the click batching window.
func WithDebounce(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.debounce = d
		}
	}
}

// WithSendTimeout bounds timer- and close-triggered deliveries.
func WithSendTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.sendTimeout = d
		}
	}
}

// WithFlushLimit paces click flushes. Unlimited by default: pacing is an
// operational knob, not part of the batching contract.
func WithFlushLimit(limit rate.Limit, burst int) Option {
	return func(r *Recorder) {
		r.limiter = rate.NewLimiter(limit, burst)
	}
}

// NewRecorder creates a Recorder for one brand page mount.
func NewRecorder(sender Sender, brandID string, opts ...Option) *Recorder {
	r := &Recorder{
		sender:      sender,
		brandID:     brandID,
		debounce:    defaultDebounce,
		sendTimeout: defaultSendTimeout,
		limiter:     rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordView sends the page-view event. At most one POST is issued per
// Recorder no matter how often it is called: the guard flips before the
// send, so a failed attempt also counts as spent. View loss is tolerated —
// the failure is logged, never retried.
func (r *Recorder) RecordView(ctx context.Context) error {
	r.mu.Lock()
	if r.viewSent || r.closed {
		r.mu.Unlock()
		return nil
	}
	r.viewSent = true
	r.mu.Unlock()

	if err := r.sender.RecordView(ctx, r.brandID); err != nil {
		_ = audit.LogEvent(ctx, "analytics.view.failed", map[string]any{
			"brand_id": r.brandID,
			"error":    err.Error(),
		})
		return err
	}
	return nil
}

// Click counts one click and (re)starts the debounce window.
func (r *Recorder) Click() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.pending++
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.sendTimeout)
		defer cancel()
		_ = r.Flush(ctx)
	})
}

// Pending returns the current undelivered click count.
func (r *Recorder) Pending() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// Flush delivers the batched click count. The counter is snapshotted and
// reset before the POST, so clicks arriving mid-flight accumulate into the
// next window; on delivery failure the snapshot is added back, so a later
// flush retries the cumulative total. Flushing an empty counter is a no-op.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	snapshot := r.pending
	r.pending = 0
	r.mu.Unlock()

	if snapshot == 0 {
		obs.CountFlush("empty")
		return nil
	}

	err := r.limiter.Wait(ctx)
	if err == nil {
		err = r.sender.RecordClicks(ctx, r.brandID, snapshot, ids.IdempotencyKey())
	}
	if err != nil {
		r.mu.Lock()
		r.pending += snapshot
		r.mu.Unlock()
		obs.CountFlush("failed")
		obs.CountRecoveredClicks(snapshot)
		_ = audit.LogEvent(ctx, "analytics.flush.failed", map[string]any{
			"brand_id":  r.brandID,
			"recovered": snapshot,
			"error":     err.Error(),
		})
		return err
	}
	obs.CountFlush("ok")
	return nil
}

// Close stops the debounce timer and performs a final best-effort flush.
// Safe to call more than once; the Recorder accepts no clicks afterwards.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.mu.Unlock()
	return r.Flush(ctx)
}
