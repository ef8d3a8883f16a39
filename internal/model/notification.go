package model

import "time"

// Notification types.  Reminders are written when a registration is
// confirmed well before the event starts; update and cancellation
// notifications fan out to active registrants when an organizer
// changes or deletes an event.
const (
	NotificationReminder     = "reminder"
	NotificationUpdate       = "update"
	NotificationCancellation = "cancellation"
)

// Notification mirrors the `notifications` table.  Notifications are
// fire-and-forget records owned by the user they target; they are
// written as a side effect of registration and event mutations and
// never block the primary operation.
//
// Fields:
//  ID        – primary key identifier.
//  EventID   – event the notification refers to.
//  UserID    – recipient.
//  Title     – short headline.
//  Message   – human-readable body.
//  Type      – reminder, update or cancellation.
//  IsRead    – whether the recipient has acknowledged it.
//  CreatedAt – creation timestamp.
type Notification struct {
	ID        uint64    // notifications.id
	EventID   uint64    // notifications.event_id
	UserID    uint64    // notifications.user_id
	Title     string    // notifications.title
	Message   string    // notifications.message
	Type      string    // notifications.notification_type
	IsRead    bool      // notifications.is_read
	CreatedAt time.Time // notifications.created_at
}
