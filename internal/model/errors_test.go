package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"fetch error", &FetchError{URL: "https://x", Err: errors.New("timeout")}, true},
		{"wrapped fetch error", fmt.Errorf("attempt 1: %w", &FetchError{URL: "https://x", Err: errors.New("boom")}), true},
		{"parse error", &ParseError{URL: "https://x", Err: errors.New("bad json")}, false},
		{"io error", &IOError{Path: "/tmp/x", Err: errors.New("disk full")}, false},
		{"cancelled", ErrCancelled, false},
		{"paused", ErrPaused, false},
		{"io wrapping fetch", &IOError{Path: "/tmp/x", Err: &FetchError{URL: "u", Err: errors.New("e")}}, false},
		{"selection error", &SelectionError{Reason: "empty"}, false},
		{"plain error", errors.New("anything"), false},
	}

	for _, test := range tests {
		if got := IsTransient(test.err); got != test.expected {
			t.Errorf("%s: IsTransient() = %v, expected %v", test.name, got, test.expected)
		}
	}
}

func TestErrorMessages(t *testing.T) {
	fe := &FetchError{URL: "https://mangadex.org/title/x", Err: errors.New("connection refused")}
	if fe.Error() == "" || !errors.Is(fe, fe.Err) {
		t.Errorf("FetchError should wrap its cause, got %q", fe.Error())
	}

	cv := &ContractVersionError{Connector: "demo", Declared: 2, Supported: 1}
	want := "connector demo declares contract version 2, engine supports 1"
	if cv.Error() != want {
		t.Errorf("ContractVersionError message = %q, expected %q", cv.Error(), want)
	}
}
