package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for control-flow outcomes observed through the token
var (
	// ErrCancelled is returned by a contract call that observed a cancel
	// request. It maps to StatusCanceled, never StatusFailed, and is never
	// retried.
	ErrCancelled = errors.New("download cancelled")

	// ErrPaused is returned by a contract call that observed a pause request
	// at a safe point. It is not a failure: the orchestrator records the
	// paused state and resumes from the last fully completed chapter.
	ErrPaused = errors.New("download paused")

	// ErrNoConnector is returned when no loaded connector matches an input.
	// Surfaced to the caller immediately; no job is created.
	ErrNoConnector = errors.New("no connector matches input")
)

// FetchError is a transport-level failure while talking to a remote source.
// Fetch errors are considered transient and are subject to the retry policy.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError is a malformed or unexpected remote response. Not retried.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse response from %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SelectionError means a selection produced an empty chapter set or referenced
// an unknown group while building a plan.
type SelectionError struct {
	Reason string
}

func (e *SelectionError) Error() string {
	return "invalid selection: " + e.Reason
}

// IOError is a local write failure during execution. Treated as non-transient
// and never retried.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ContractVersionError records a connector rejected at load time because its
// declared contract version does not match the engine's. Non-fatal.
type ContractVersionError struct {
	Connector string
	Declared  int
	Supported int
}

func (e *ContractVersionError) Error() string {
	return fmt.Sprintf("connector %s declares contract version %d, engine supports %d",
		e.Connector, e.Declared, e.Supported)
}

// IsTransient reports whether an error is a transport-level failure eligible
// for retry with backoff. Cancellation, pause, parse, selection, and local
// I/O failures are never transient.
func IsTransient(err error) bool {
	if errors.Is(err, ErrCancelled) || errors.Is(err, ErrPaused) {
		return false
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return false
	}
	var fetchErr *FetchError
	return errors.As(err, &fetchErr)
}
