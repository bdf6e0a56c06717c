package analytics

import (
	"context"
	"errors"
	"sync"
)

// Hub hands out one Recorder per brand and closes them together on
// shutdown, so no counted click is dropped when the process exits.
type Hub struct {
	sender Sender
	opts   []Option

	mu        sync.Mutex
	recorders map[string]*Recorder
	closed    bool
}

// NewHub creates a Hub; opts apply to every Recorder it creates.
func NewHub(sender Sender, opts ...Option) *Hub {
	return &Hub{
		sender:    sender,
		opts:      opts,
		recorders: make(map[string]*Recorder),
	}
}

// Recorder returns the brand's Recorder, creating it on first use.
// Returns nil after Close.
func (h *Hub) Recorder(brandID string) *Recorder {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	rec, ok := h.recorders[brandID]
	if !ok {
		rec = NewRecorder(h.sender, brandID, h.opts...)
		h.recorders[brandID] = rec
	}
	return rec
}

// Close flushes and closes every Recorder. Errors are joined so one failed
// delivery does not mask another; each failure was already logged and its
// clicks recovered, so callers typically just log the result.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	recorders := make([]*Recorder, 0, len(h.recorders))
	for _, rec := range h.recorders {
		recorders = append(recorders, rec)
	}
	h.mu.Unlock()

	var errs []error
	for _, rec := range recorders {
		if err := rec.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
