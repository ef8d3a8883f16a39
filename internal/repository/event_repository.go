package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/communitypulse/server/internal/model"
)

// EventRepo provides CRUD operations for events.  The
// attendees_count column is owned by the registration lifecycle and
// is never written here; event updates deliberately leave it alone.
type EventRepo struct{ DB *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{DB: db} }

const eventColumns = `id, title, description, location, category,
		start_date, end_date, registration_start, registration_end,
		image_path, organizer_id, is_approved, attendees_count, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (model.Event, error) {
	var (
		ev        model.Event
		imagePath sql.NullString
	)
	err := row.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Location, &ev.Category,
		&ev.StartDate, &ev.EndDate, &ev.RegistrationStart, &ev.RegistrationEnd,
		&imagePath, &ev.OrganizerID, &ev.IsApproved, &ev.AttendeesCount,
		&ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return ev, err
	}
	if imagePath.Valid {
		p := imagePath.String
		ev.ImagePath = &p
	}
	return ev, nil
}

// Create inserts a new event, populates the generated ID on the
// provided struct and queries the row back so timestamps and column
// defaults are filled in.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event) error {
	const q = `INSERT INTO events
		(title, description, location, category, start_date, end_date,
		 registration_start, registration_end, image_path, organizer_id, is_approved)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`
	var imagePath any
	if ev.ImagePath != nil {
		imagePath = *ev.ImagePath
	}
	res, err := r.DB.ExecContext(ctx, q,
		ev.Title, ev.Description, ev.Location, ev.Category,
		ev.StartDate, ev.EndDate, ev.RegistrationStart, ev.RegistrationEnd,
		imagePath, ev.OrganizerID, ev.IsApproved)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*ev = got
	return nil
}

// GetByID fetches one event.  Returns ErrEventNotFound when no such
// row exists.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	ev, err := scanEvent(r.DB.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return ev, ErrEventNotFound
	}
	return ev, err
}

// EventFilter narrows the public event listing.
type EventFilter struct {
	Category     string // exact category match when non-empty
	UpcomingOnly bool   // start_date in the future
	ApprovedOnly bool   // hide events awaiting moderation
}

// List returns events matching the filter, ordered by start date.
func (r *EventRepo) List(ctx context.Context, f EventFilter) ([]model.Event, error) {
	q := "SELECT " + eventColumns + " FROM events"
	where := make([]string, 0, 3)
	args := make([]any, 0, 2)
	if f.ApprovedOnly {
		where = append(where, "is_approved = TRUE")
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.UpcomingOnly {
		where = append(where, "start_date >= UTC_TIMESTAMP()")
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY start_date, id"
	return r.queryEvents(ctx, q, args...)
}

// Search returns approved events whose title, description, location
// or category contains the query text, ordered by start date.
func (r *EventRepo) Search(ctx context.Context, query string) ([]model.Event, error) {
	like := "%" + query + "%"
	const q = `SELECT ` + eventColumns + ` FROM events
		WHERE is_approved = TRUE
		  AND (title LIKE ? OR description LIKE ? OR location LIKE ? OR category LIKE ?)
		ORDER BY start_date, id`
	return r.queryEvents(ctx, q, like, like, like, like)
}

// ListByOrganizer returns every event created by the given user,
// regardless of approval state.
func (r *EventRepo) ListByOrganizer(ctx context.Context, organizerID uint64) ([]model.Event, error) {
	return r.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM events WHERE organizer_id=? ORDER BY start_date, id",
		organizerID)
}

// ListPending returns events awaiting moderation.
func (r *EventRepo) ListPending(ctx context.Context) ([]model.Event, error) {
	return r.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM events WHERE is_approved = FALSE ORDER BY created_at, id")
}

// Update persists the mutable event fields.  Callers load the event,
// apply their changes and save the whole row; attendees_count is not
// part of the statement.
func (r *EventRepo) Update(ctx context.Context, ev *model.Event) error {
	const q = `UPDATE events SET
		title=?, description=?, location=?, category=?,
		start_date=?, end_date=?, registration_start=?, registration_end=?,
		image_path=?, is_approved=?, updated_at=NOW()
		WHERE id=?`
	var imagePath any
	if ev.ImagePath != nil {
		imagePath = *ev.ImagePath
	}
	_, err := r.DB.ExecContext(ctx, q,
		ev.Title, ev.Description, ev.Location, ev.Category,
		ev.StartDate, ev.EndDate, ev.RegistrationStart, ev.RegistrationEnd,
		imagePath, ev.IsApproved, ev.ID)
	return err
}

// SetApproved flips the moderation flag.
func (r *EventRepo) SetApproved(ctx context.Context, id uint64, approved bool) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE events SET is_approved=? WHERE id=?", approved, id)
	return err
}

// Delete removes an event; registrations cascade through their
// foreign key while notifications survive, so cancellation notices
// outlive the event they refer to.  Returns ErrEventNotFound when the
// id matches no row.
func (r *EventRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM events WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (r *EventRepo) queryEvents(ctx context.Context, q string, args ...any) ([]model.Event, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
