// Package queue defines message payloads exchanged over the message broker
// and the background consumer that drains them.
package queue

import "time"

// RegistrationQueueName is the durable queue carrying confirmed registrations.
const RegistrationQueueName = "registration.confirmed"

// RegistrationConfirmed is published whenever a registration reaches the
// REGISTERED status. It carries enough for downstream consumers to log or
// trigger follow-up work without querying the primary database.
type RegistrationConfirmed struct {
	RegistrationID    uint64    `json:"registration_id"`
	EventID           uint64    `json:"event_id"`
	UserID            uint64    `json:"user_id"`
	Status            string    `json:"status"`
	NumberOfAttendees uint32    `json:"number_of_attendees"`
	ConfirmedAt       time.Time `json:"confirmed_at"`
}
