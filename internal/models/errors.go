package models

import (
	"fmt"
	"time"
)

// SessionInitError means the browser engine could not be started. It is the
// only failure that may surface as an internal fault to the caller, since no
// page interaction has happened yet.
type SessionInitError struct {
	Err error
}

func (e *SessionInitError) Error() string {
	return fmt.Sprintf("browser session initialization failed: %v", e.Err)
}

func (e *SessionInitError) Unwrap() error { return e.Err }

// NavigationError means a page load did not complete within its timeout.
// Retryable at the primitive layer.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ElementNotFoundError means a selector never became available within its
// timeout. Retryable at the primitive layer.
type ElementNotFoundError struct {
	Selector string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element not found: %s", e.Selector)
}

// ActionTimeoutError means a browser action ran out of time. Retryable at
// the primitive layer.
type ActionTimeoutError struct {
	Action   string
	Selector string
	Timeout  time.Duration
}

func (e *ActionTimeoutError) Error() string {
	if e.Selector == "" {
		return fmt.Sprintf("%s timed out after %s", e.Action, e.Timeout)
	}
	return fmt.Sprintf("%s on %s timed out after %s", e.Action, e.Selector, e.Timeout)
}

// SearchError is a terminal but expected outcome: the portal reported that
// the register does not exist or the key is invalid. It is reported in the
// result body, never as a transport-level fault.
type SearchError struct {
	Message string
}

func (e *SearchError) Error() string { return e.Message }

// UnrecoverableNavigationError means every strategy for reaching the
// register content view was exhausted. Terminal for the whole lookup.
type UnrecoverableNavigationError struct {
	Stage    string
	Attempts int
}

func (e *UnrecoverableNavigationError) Error() string {
	return fmt.Sprintf("could not reach %s after %d attempts, all fallbacks exhausted", e.Stage, e.Attempts)
}
