// Package registration implements the event-registration lifecycle:
// the state machine governing a user's relationship to an event
// (none -> interested -> registered -> cancelled) and the bookkeeping
// that keeps an event's attendees_count equal to the sum of its
// active registrations.  Failures are grouped into four categories
// that handlers translate into distinct HTTP responses.
package registration

import (
	"errors"
	"fmt"
)

// Error categories.  Specific errors below wrap one of these so that
// handlers can classify with errors.Is while still returning a
// precise message to the caller.
var (
	// ErrNotFound covers absent events and absent active registrations.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState covers unapproved events and closed registration windows.
	ErrInvalidState = errors.New("invalid state")
	// ErrConflict covers duplicate active registrations and repeat confirms.
	ErrConflict = errors.New("conflict")
)

var (
	ErrEventNotFound        = fmt.Errorf("%w: event does not exist", ErrNotFound)
	ErrNoActiveRegistration = fmt.Errorf("%w: no active registration", ErrNotFound)
	ErrEventNotApproved     = fmt.Errorf("%w: event is not approved", ErrInvalidState)
	ErrWindowClosed         = fmt.Errorf("%w: registration window is closed", ErrInvalidState)
	ErrAlreadyActive        = fmt.Errorf("%w: an active registration already exists", ErrConflict)
	ErrAlreadyRegistered    = fmt.Errorf("%w: registration is already confirmed", ErrConflict)
)

// ValidationError reports a malformed attendee payload (count/name
// mismatch, count outside [MinAttendees, MaxAttendees], empty names).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid registration: " + e.Reason }
