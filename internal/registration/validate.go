package registration

import (
	"fmt"
	"strings"
	"time"

	"github.com/communitypulse/server/internal/model"
)

const (
	// MinAttendees and MaxAttendees bound the group size a single
	// registration may cover.
	MinAttendees = 1
	MaxAttendees = 10

	// windowSkew widens the registration window on both sides to
	// tolerate clock skew between clients and the server.
	windowSkew = 24 * time.Hour

	// reminderLead is how far before the event start a reminder
	// notification is still worth writing.
	reminderLead = 24 * time.Hour
)

// validateAttendees checks the attendee payload of a confirm or
// direct-registration request.  The declared count must match the
// name list exactly; a mismatch is rejected regardless of whether the
// rest of the payload is valid.
func validateAttendees(names []string, count int) error {
	if count != len(names) {
		return &ValidationError{Reason: fmt.Sprintf("attendee count %d does not match %d names", count, len(names))}
	}
	if count < MinAttendees || count > MaxAttendees {
		return &ValidationError{Reason: fmt.Sprintf("attendee count must be between %d and %d", MinAttendees, MaxAttendees)}
	}
	for i, n := range names {
		if strings.TrimSpace(n) == "" {
			return &ValidationError{Reason: fmt.Sprintf("attendee name %d is empty", i+1)}
		}
	}
	return nil
}

// withinWindow reports whether now falls inside the event's
// registration window, widened by windowSkew on both ends.
func withinWindow(now time.Time, ev *model.Event) bool {
	return !now.Before(ev.RegistrationStart.Add(-windowSkew)) &&
		!now.After(ev.RegistrationEnd.Add(windowSkew))
}

// flooredSub subtracts b from a without going below zero.  The event
// counter must never become negative even if it has drifted low.
func flooredSub(a, b uint32) uint32 {
	if b >= a {
		return 0
	}
	return a - b
}
