package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/communitypulse/server/internal/model"
	"github.com/communitypulse/server/internal/registration"
)

// RegistrationRepo provides persistence for event registrations and
// their attendee name lists.  It implements registration.Store, so
// the lifecycle manager drives all mutations through one transaction
// that locks the event row first; the read helpers below serve the
// listing endpoints outside of any transaction.
type RegistrationRepo struct{ DB *sql.DB }

func NewRegistrationRepo(db *sql.DB) *RegistrationRepo { return &RegistrationRepo{DB: db} }

// InTx implements registration.Store.  The transaction is rolled
// back whenever fn returns an error and committed otherwise.
func (r *RegistrationRepo) InTx(ctx context.Context, fn func(tx registration.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&registrationTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// registrationTx implements registration.Tx over a live *sql.Tx.
type registrationTx struct{ tx *sql.Tx }

// EventForUpdate locks the event row for the rest of the transaction.
// Registration mutations for the same event serialize on this lock,
// which is what makes the check-then-act sequences in the manager
// safe under concurrency.
func (t *registrationTx) EventForUpdate(ctx context.Context, eventID uint64) (*model.Event, error) {
	const q = `SELECT id, title, start_date, end_date, registration_start, registration_end,
			is_approved, attendees_count
		FROM events WHERE id = ? FOR UPDATE`
	var ev model.Event
	err := t.tx.QueryRowContext(ctx, q, eventID).Scan(
		&ev.ID, &ev.Title, &ev.StartDate, &ev.EndDate,
		&ev.RegistrationStart, &ev.RegistrationEnd,
		&ev.IsApproved, &ev.AttendeesCount)
	if err == sql.ErrNoRows {
		return nil, registration.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (t *registrationTx) ActiveRegistration(ctx context.Context, eventID, userID uint64) (*model.Registration, error) {
	const q = `SELECT id, event_id, user_id, status, number_of_attendees, created_at, updated_at
		FROM registrations
		WHERE event_id = ? AND user_id = ? AND status <> 'CANCELLED'
		LIMIT 1`
	return t.scanOne(ctx, q, eventID, userID)
}

func (t *registrationTx) LatestCancelledRegistration(ctx context.Context, eventID, userID uint64) (*model.Registration, error) {
	const q = `SELECT id, event_id, user_id, status, number_of_attendees, created_at, updated_at
		FROM registrations
		WHERE event_id = ? AND user_id = ? AND status = 'CANCELLED'
		ORDER BY updated_at DESC, id DESC
		LIMIT 1`
	return t.scanOne(ctx, q, eventID, userID)
}

func (t *registrationTx) scanOne(ctx context.Context, q string, eventID, userID uint64) (*model.Registration, error) {
	var reg model.Registration
	err := t.tx.QueryRowContext(ctx, q, eventID, userID).Scan(
		&reg.ID, &reg.EventID, &reg.UserID, &reg.Status,
		&reg.NumberOfAttendees, &reg.CreatedAt, &reg.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	names, err := attendeeNamesTx(ctx, t.tx, reg.ID)
	if err != nil {
		return nil, err
	}
	reg.Attendees = names
	return &reg, nil
}

// InsertRegistration stores the row and its attendee names.  The
// generated active_flag column turns a lost insert race into a
// duplicate-key error, which is reported as ErrAlreadyActive so the
// caller sees the same conflict as the in-transaction check.
func (t *registrationTx) InsertRegistration(ctx context.Context, reg *model.Registration) error {
	const q = `INSERT INTO registrations (event_id, user_id, status, number_of_attendees)
		VALUES (?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q, reg.EventID, reg.UserID, reg.Status, reg.NumberOfAttendees)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return registration.ErrAlreadyActive
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	reg.ID = uint64(id)
	return t.insertAttendees(ctx, reg.ID, reg.Attendees)
}

// UpdateRegistration persists status and attendee count and replaces
// the attendee list wholesale.
func (t *registrationTx) UpdateRegistration(ctx context.Context, reg *model.Registration) error {
	const q = `UPDATE registrations SET status=?, number_of_attendees=?, updated_at=NOW() WHERE id=?`
	if _, err := t.tx.ExecContext(ctx, q, reg.Status, reg.NumberOfAttendees, reg.ID); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM registration_attendees WHERE registration_id=?`, reg.ID); err != nil {
		return err
	}
	return t.insertAttendees(ctx, reg.ID, reg.Attendees)
}

func (t *registrationTx) SetAttendeesCount(ctx context.Context, eventID uint64, count uint32) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE events SET attendees_count=? WHERE id=?`, count, eventID)
	return err
}

// insertAttendees bulk-inserts the attendee names in one statement.
// An empty list has no effect.
func (t *registrationTx) insertAttendees(ctx context.Context, registrationID uint64, names []string) error {
	if len(names) == 0 {
		return nil
	}
	q := `INSERT INTO registration_attendees (registration_id, position, name) VALUES `
	args := make([]any, 0, len(names)*3)
	for i, name := range names {
		if i > 0 {
			q += ","
		}
		q += "(?, ?, ?)"
		args = append(args, registrationID, i, name)
	}
	_, err := t.tx.ExecContext(ctx, q, args...)
	return err
}

func attendeeNamesTx(ctx context.Context, tx *sql.Tx, registrationID uint64) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT name FROM registration_attendees WHERE registration_id=? ORDER BY position`,
		registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// RegistrationDetail joins a registration with the event fields the
// listing endpoints display.
type RegistrationDetail struct {
	ID                uint64    `json:"id"`
	EventID           uint64    `json:"event_id"`
	UserID            uint64    `json:"user_id"`
	Status            string    `json:"status"`
	NumberOfAttendees uint32    `json:"number_of_attendees"`
	Attendees         []string  `json:"attendees"`
	EventTitle        string    `json:"event_title"`
	EventStart        time.Time `json:"event_start"`
	EventLocation     string    `json:"event_location"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ListByUser returns all registrations of one user, newest first,
// with the attendee lists populated in a single follow-up query.
func (r *RegistrationRepo) ListByUser(ctx context.Context, userID uint64) ([]RegistrationDetail, error) {
	const q = `SELECT r.id, r.event_id, r.user_id, r.status, r.number_of_attendees,
			e.title, e.start_date, e.location, r.created_at, r.updated_at
		FROM registrations r
		JOIN events e ON e.id = r.event_id
		WHERE r.user_id = ?
		ORDER BY r.created_at DESC, r.id DESC`
	return r.queryDetails(ctx, q, userID)
}

// ListByEvent returns all registrations for an event, newest first.
// Authorization (organizer or admin) is the handler's concern.
func (r *RegistrationRepo) ListByEvent(ctx context.Context, eventID uint64) ([]RegistrationDetail, error) {
	const q = `SELECT r.id, r.event_id, r.user_id, r.status, r.number_of_attendees,
			e.title, e.start_date, e.location, r.created_at, r.updated_at
		FROM registrations r
		JOIN events e ON e.id = r.event_id
		WHERE r.event_id = ?
		ORDER BY r.created_at DESC, r.id DESC`
	return r.queryDetails(ctx, q, eventID)
}

// ActiveUserIDs returns the distinct user ids holding a non-cancelled
// registration for the event.  Used for update/cancellation
// notification fan-out.
func (r *RegistrationRepo) ActiveUserIDs(ctx context.Context, eventID uint64) ([]uint64, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM registrations WHERE event_id=? AND status <> 'CANCELLED'`,
		eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *RegistrationRepo) queryDetails(ctx context.Context, q string, arg any) ([]RegistrationDetail, error) {
	rows, err := r.DB.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]RegistrationDetail, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var d RegistrationDetail
		if err := rows.Scan(&d.ID, &d.EventID, &d.UserID, &d.Status, &d.NumberOfAttendees,
			&d.EventTitle, &d.EventStart, &d.EventLocation, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.Attendees = []string{}
		index[d.ID] = len(details)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}
	// Populate attendee names for all registrations in one query.
	ids := make([]any, 0, len(details))
	placeholders := make([]string, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.ID)
		placeholders = append(placeholders, "?")
	}
	nameQ := `SELECT registration_id, name FROM registration_attendees
		WHERE registration_id IN (` + strings.Join(placeholders, ",") + `)
		ORDER BY registration_id, position`
	nrows, err := r.DB.QueryContext(ctx, nameQ, ids...)
	if err != nil {
		return nil, err
	}
	defer nrows.Close()
	for nrows.Next() {
		var rid uint64
		var name string
		if err := nrows.Scan(&rid, &name); err != nil {
			return nil, err
		}
		if idx, ok := index[rid]; ok {
			details[idx].Attendees = append(details[idx].Attendees, name)
		}
	}
	return details, nrows.Err()
}
