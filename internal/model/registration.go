package model

import "time"

// Registration status values.  A registration starts as INTERESTED or
// REGISTERED and only ever transitions in place; cancellation is a
// status change, never a row deletion, so the history survives and a
// cancelled registration can be reactivated later.
const (
	StatusInterested = "INTERESTED"
	StatusRegistered = "REGISTERED"
	StatusCancelled  = "CANCELLED"
)

// Registration records a user's relationship to an event.  At most
// one non-cancelled registration may exist per (event, user) pair;
// the database enforces this through a generated active flag that is
// NULL for cancelled rows and part of a unique key otherwise.
//
// Fields:
//  ID                – primary key identifier.
//  EventID           – event being registered for.
//  UserID            – user who owns the registration.
//  Status            – INTERESTED, REGISTERED or CANCELLED.
//  NumberOfAttendees – how many people this registration covers;
//                      always equals len(Attendees).
//  Attendees         – attendee names, stored in registration_attendees.
//  CreatedAt         – creation timestamp.
//  UpdatedAt         – last update timestamp.
type Registration struct {
	ID                uint64    // registrations.id
	EventID           uint64    // registrations.event_id
	UserID            uint64    // registrations.user_id
	Status            string    // registrations.status
	NumberOfAttendees uint32    // registrations.number_of_attendees
	Attendees         []string  // registration_attendees.name, ordered by position
	CreatedAt         time.Time // registrations.created_at
	UpdatedAt         time.Time // registrations.updated_at
}

// Active reports whether the registration currently counts toward the
// event's attendee total.
func (r *Registration) Active() bool {
	return r.Status != StatusCancelled
}
