package protocol

import (
	"errors"
	"fmt"
)

// ErrMalformedSnapshot is returned when a status body cannot be decoded.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// FetchError represents a failed poll of the status endpoint.
// The poller swallows it; the CLI reports it.
type FetchError struct {
	URL    string
	Code   int // HTTP status code, 0 when the request never completed
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("fetch status %s: HTTP %d: %s", e.URL, e.Code, e.Reason)
	}
	return fmt.Sprintf("fetch status %s: %s", e.URL, e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }

// CommandError represents an execute call the backend rejected or that never arrived.
type CommandError struct {
	Action string
	Code   int    // HTTP status code, 0 when the request never completed
	Body   string // excerpt of the response body
	Err    error
}

func (e *CommandError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("execute %s: HTTP %d: %s", e.Action, e.Code, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("execute %s: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("execute %s failed", e.Action)
}

func (e *CommandError) Unwrap() error { return e.Err }
