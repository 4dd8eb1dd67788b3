// Package token implements the cooperative cancellation/pause signal a
// connector polls at safe suspension points. Cancellation and pause are
// independent conditions; cancel always wins when both are set.
package token

import (
	"sync"

	"github.com/mangadl/manga-downloader/internal/model"
)

// Signal is the tri-state result of a non-blocking poll
type Signal int

const (
	// SignalContinue means no request is pending
	SignalContinue Signal = iota

	// SignalCancelled means cancellation was requested; the caller must stop
	// and return model.ErrCancelled
	SignalCancelled

	// SignalPaused means a pause was requested; the caller must stop at the
	// current safe point and return model.ErrPaused
	SignalPaused
)

// Token carries per-job cancel and pause requests to the executing worker.
// All methods are safe for concurrent use. Cancellation is one-way; pause
// toggles with Resume.
type Token struct {
	mu        sync.Mutex
	cancelled bool
	paused    bool
	cancelCh  chan struct{} // closed on cancel
	pauseCh   chan struct{} // closed on pause, replaced on resume
}

// New returns a fresh token with neither condition set
func New() *Token {
	return &Token{
		cancelCh: make(chan struct{}),
		pauseCh:  make(chan struct{}),
	}
}

// Cancel requests cancellation. Idempotent.
func (t *Token) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return
	}
	t.cancelled = true
	close(t.cancelCh)
}

// Pause requests a pause. Idempotent until Resume is called.
func (t *Token) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.paused {
		return
	}
	t.paused = true
	close(t.pauseCh)
}

// Resume clears a pending pause request
func (t *Token) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.paused {
		return
	}
	t.paused = false
	t.pauseCh = make(chan struct{})
}

// Cancelled returns a channel closed once cancellation is requested, for use
// in select statements alongside timers and I/O.
func (t *Token) Cancelled() <-chan struct{} {
	return t.cancelCh
}

// Paused returns a channel closed while a pause request is pending. The
// channel is replaced on Resume, so callers must re-fetch it per select.
func (t *Token) Paused() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pauseCh
}

// Poll returns the current signal without blocking
func (t *Token) Poll() Signal {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.cancelled:
		return SignalCancelled
	case t.paused:
		return SignalPaused
	default:
		return SignalContinue
	}
}

// Err maps the current signal to its sentinel error: nil, model.ErrCancelled,
// or model.ErrPaused. Connectors call this at every safe suspension point.
func (t *Token) Err() error {
	switch t.Poll() {
	case SignalCancelled:
		return model.ErrCancelled
	case SignalPaused:
		return model.ErrPaused
	default:
		return nil
	}
}
