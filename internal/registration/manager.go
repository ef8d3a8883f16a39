package registration

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/communitypulse/server/internal/model"
)

// Manager owns the registration lifecycle.  All four operations run
// as one atomic transaction covering the registration-row write and
// the event-counter update, behind the event row lock, so that a
// concurrent reader never observes a counter inconsistent with the
// registration rows and exactly one active registration can exist per
// (event, user) pair.
type Manager struct {
	store Store
	sink  NotificationSink
	now   func() time.Time // injected in tests
}

// NewManager constructs a Manager.  The sink may be nil, in which
// case no notifications are written.
func NewManager(store Store, sink NotificationSink) *Manager {
	if store == nil {
		panic("nil store passed to NewManager")
	}
	return &Manager{
		store: store,
		sink:  sink,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// MarkInterest records the user's interest in an event: on first
// contact it creates an INTERESTED registration with count 1, and if
// a cancelled registration exists it reactivates it instead, resetting
// the attendee list to just the acting user.  The event counter gains
// 1 in the same transaction.
func (m *Manager) MarkInterest(ctx context.Context, eventID, userID uint64, displayName string) (*model.Registration, error) {
	var reg *model.Registration
	err := m.store.InTx(ctx, func(tx Tx) error {
		ev, err := tx.EventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if !ev.IsApproved {
			return ErrEventNotApproved
		}
		active, err := tx.ActiveRegistration(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if active != nil {
			return ErrAlreadyActive
		}
		cancelled, err := tx.LatestCancelledRegistration(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if cancelled != nil {
			cancelled.Status = model.StatusInterested
			cancelled.Attendees = []string{displayName}
			cancelled.NumberOfAttendees = 1
			if err := tx.UpdateRegistration(ctx, cancelled); err != nil {
				return err
			}
			reg = cancelled
		} else {
			reg = &model.Registration{
				EventID:           eventID,
				UserID:            userID,
				Status:            model.StatusInterested,
				NumberOfAttendees: 1,
				Attendees:         []string{displayName},
			}
			if err := tx.InsertRegistration(ctx, reg); err != nil {
				return err
			}
		}
		return tx.SetAttendeesCount(ctx, eventID, ev.AttendeesCount+1)
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// Confirm upgrades an INTERESTED registration to REGISTERED with the
// final attendee list.  The counter is adjusted by the delta between
// the new and the previous attendee count, so confirming with 3 names
// after marking interest moves the counter from 1 to 3, not to 4.
func (m *Manager) Confirm(ctx context.Context, eventID, userID uint64, names []string, count int) (*model.Registration, error) {
	if err := validateAttendees(names, count); err != nil {
		return nil, err
	}
	var (
		reg *model.Registration
		ev  *model.Event
	)
	now := m.now()
	err := m.store.InTx(ctx, func(tx Tx) error {
		var err error
		ev, err = tx.EventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if !withinWindow(now, ev) {
			return ErrWindowClosed
		}
		active, err := tx.ActiveRegistration(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if active == nil {
			return ErrNoActiveRegistration
		}
		if active.Status == model.StatusRegistered {
			return ErrAlreadyRegistered
		}
		next := flooredSub(ev.AttendeesCount, active.NumberOfAttendees) + uint32(count)
		active.Status = model.StatusRegistered
		active.Attendees = names
		active.NumberOfAttendees = uint32(count)
		if err := tx.UpdateRegistration(ctx, active); err != nil {
			return err
		}
		reg = active
		return tx.SetAttendeesCount(ctx, eventID, next)
	})
	if err != nil {
		return nil, err
	}
	m.maybeRemind(ctx, ev, userID, now)
	return reg, nil
}

// RegisterDirect registers a user who never marked interest.  It
// performs the same payload and window validation as Confirm plus the
// approval check, refuses when any active registration exists, and
// adds the full attendee count to the event counter.
func (m *Manager) RegisterDirect(ctx context.Context, eventID, userID uint64, names []string, count int) (*model.Registration, error) {
	if err := validateAttendees(names, count); err != nil {
		return nil, err
	}
	var (
		reg *model.Registration
		ev  *model.Event
	)
	now := m.now()
	err := m.store.InTx(ctx, func(tx Tx) error {
		var err error
		ev, err = tx.EventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if !ev.IsApproved {
			return ErrEventNotApproved
		}
		if !withinWindow(now, ev) {
			return ErrWindowClosed
		}
		active, err := tx.ActiveRegistration(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if active != nil {
			return ErrAlreadyActive
		}
		reg = &model.Registration{
			EventID:           eventID,
			UserID:            userID,
			Status:            model.StatusRegistered,
			NumberOfAttendees: uint32(count),
			Attendees:         names,
		}
		if err := tx.InsertRegistration(ctx, reg); err != nil {
			return err
		}
		return tx.SetAttendeesCount(ctx, eventID, ev.AttendeesCount+uint32(count))
	})
	if err != nil {
		return nil, err
	}
	m.maybeRemind(ctx, ev, userID, now)
	return reg, nil
}

// Cancel marks the active registration CANCELLED and subtracts its
// attendee count from the event counter, flooring at zero.  The row
// is kept so the history survives and interest can be reactivated.
func (m *Manager) Cancel(ctx context.Context, eventID, userID uint64) (*model.Registration, error) {
	var reg *model.Registration
	err := m.store.InTx(ctx, func(tx Tx) error {
		ev, err := tx.EventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		active, err := tx.ActiveRegistration(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if active == nil {
			return ErrNoActiveRegistration
		}
		next := flooredSub(ev.AttendeesCount, active.NumberOfAttendees)
		active.Status = model.StatusCancelled
		if err := tx.UpdateRegistration(ctx, active); err != nil {
			return err
		}
		reg = active
		return tx.SetAttendeesCount(ctx, eventID, next)
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// maybeRemind writes a reminder notification after a successful
// confirmation when the event is still more than a day away.  It runs
// after the primary transaction has committed; a failed write is
// logged and swallowed.
func (m *Manager) maybeRemind(ctx context.Context, ev *model.Event, userID uint64, now time.Time) {
	if m.sink == nil || ev == nil {
		return
	}
	if !ev.StartDate.Add(-reminderLead).After(now) {
		return
	}
	n := &model.Notification{
		EventID: ev.ID,
		UserID:  userID,
		Title:   "Event Reminder",
		Message: fmt.Sprintf("Reminder: the event %q starts on %s.", ev.Title, ev.StartDate.Format("2006-01-02 15:04")),
		Type:    model.NotificationReminder,
	}
	if err := m.sink.Create(ctx, n); err != nil {
		log.Printf("registration: reminder notification failed for user=%d event=%d: %v", userID, ev.ID, err)
	}
}
