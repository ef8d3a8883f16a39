package model

import "time"

// Event mirrors the `events` table.  An event is created by an
// organizer and becomes visible to attendees only once approved.
// AttendeesCount is a denormalized aggregate: it always equals the
// sum of NumberOfAttendees over this event's non-cancelled
// registrations, and every registration mutation updates it in the
// same transaction.
//
// Fields:
//  ID                – primary key identifier.
//  Title             – event title.
//  Description       – long-form description.
//  Location          – free-text venue.
//  Category          – category label used for filtering.
//  StartDate         – when the event begins.
//  EndDate           – when the event ends.
//  RegistrationStart – opening of the registration window.
//  RegistrationEnd   – closing of the registration window.
//  ImagePath         – path of the uploaded image, if any.
//  OrganizerID       – user who created the event.
//  IsApproved        – moderation flag; unapproved events accept no registrations.
//  AttendeesCount    – sum of attendee counts of active registrations.
//  CreatedAt         – timestamp of creation.
//  UpdatedAt         – timestamp of last update.
type Event struct {
	ID                uint64    // events.id
	Title             string    // events.title
	Description       string    // events.description
	Location          string    // events.location
	Category          string    // events.category
	StartDate         time.Time // events.start_date
	EndDate           time.Time // events.end_date
	RegistrationStart time.Time // events.registration_start
	RegistrationEnd   time.Time // events.registration_end
	ImagePath         *string   // events.image_path (nullable)
	OrganizerID       uint64    // events.organizer_id
	IsApproved        bool      // events.is_approved
	AttendeesCount    uint32    // events.attendees_count
	CreatedAt         time.Time // events.created_at
	UpdatedAt         time.Time // events.updated_at
}
