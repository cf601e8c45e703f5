package core

import (
	"errors"
	"fmt"
)

// ErrWatchClosed is reported by sources whose underlying stream ended
// without an explicit error (for example a server-side watch timeout).
var ErrWatchClosed = errors.New("watch stream closed")

// ErrStreamFailure is the only error kind surfaced by RetryWatch. It
// wraps whatever the stream factory or the event source reported and
// records the cursor the next attempt will resume from. Subscription is
// the id of the failed subscription, as logged when it was opened.
type ErrStreamFailure struct {
	Subscription string
	Cursor       string
	Err          error
}

func (e *ErrStreamFailure) Error() string {
	if e.Cursor == "" {
		return fmt.Sprintf("watch stream failed: %v", e.Err)
	}
	return fmt.Sprintf("watch stream failed (resume from %s): %v", e.Cursor, e.Err)
}

func (e *ErrStreamFailure) Unwrap() error {
	return e.Err
}

// ErrInvalidInput indicates a domain-level input validation failure.
// It replaces the use of k8s apierrors.NewBadRequest in the domain
// layer, keeping the core package free of infrastructure error types.
type ErrInvalidInput struct {
	Field   string
	Message string
}

func (e *ErrInvalidInput) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ErrCursorExpired indicates the provider no longer retains history
// for the requested cursor (HTTP 410 Gone). Resuming from it will keep
// failing; the caller has to restart from an empty cursor.
type ErrCursorExpired struct {
	Cursor string
	Cause  error
}

func (e *ErrCursorExpired) Error() string {
	return fmt.Sprintf("cursor %q expired: %v", e.Cursor, e.Cause)
}

func (e *ErrCursorExpired) Unwrap() error {
	return e.Cause
}
