package registration

import (
	"context"

	"github.com/communitypulse/server/internal/model"
)

// Store is the transactional storage collaborator of the lifecycle
// manager.  Every mutation the manager performs runs inside a single
// InTx call so that the registration-row write and the event-counter
// update commit or roll back together.
type Store interface {
	// InTx runs fn within one transaction.  The transaction is
	// committed when fn returns nil and rolled back otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx exposes the row operations the manager needs inside a
// transaction.  Implementations must make EventForUpdate take a
// write lock on the event row so that concurrent mutations for the
// same event are serialized.
type Tx interface {
	// EventForUpdate loads an event and locks its row for the
	// remainder of the transaction.  Returns ErrEventNotFound when
	// no such event exists.
	EventForUpdate(ctx context.Context, eventID uint64) (*model.Event, error)

	// ActiveRegistration returns the non-cancelled registration for
	// the (event, user) pair, or (nil, nil) when there is none.
	ActiveRegistration(ctx context.Context, eventID, userID uint64) (*model.Registration, error)

	// LatestCancelledRegistration returns the most recently cancelled
	// registration for the pair, or (nil, nil) when there is none.
	LatestCancelledRegistration(ctx context.Context, eventID, userID uint64) (*model.Registration, error)

	// InsertRegistration stores a new registration row together with
	// its attendee names and populates reg.ID.  Implementations
	// return ErrAlreadyActive when a unique-key violation indicates a
	// concurrent insert won the race for the same pair.
	InsertRegistration(ctx context.Context, reg *model.Registration) error

	// UpdateRegistration persists status, attendee count and the
	// replaced attendee-name list of an existing registration.
	UpdateRegistration(ctx context.Context, reg *model.Registration) error

	// SetAttendeesCount stores the new denormalized counter value for
	// the event.
	SetAttendeesCount(ctx context.Context, eventID uint64, count uint32) error
}

// NotificationSink receives the fire-and-forget notifications emitted
// by the manager.  Failures are logged and swallowed by the caller;
// they must never affect the primary transaction.
type NotificationSink interface {
	Create(ctx context.Context, n *model.Notification) error
}
