package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/communitypulse/server/internal/model"
)

// NotificationRepo persists user notifications.  It satisfies
// registration.NotificationSink, so the lifecycle manager can write
// reminders through it without knowing about SQL.
type NotificationRepo struct{ DB *sql.DB }

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{DB: db} }

// Create inserts a notification row and fills in the generated ID.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	const q = `INSERT INTO notifications (event_id, user_id, title, message, notification_type)
		VALUES (?, ?, ?, ?, ?)`
	res, err := r.DB.ExecContext(ctx, q, n.EventID, n.UserID, n.Title, n.Message, n.Type)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	return nil
}

// ListUnreadByUser returns a user's unread notifications, newest first.
func (r *NotificationRepo) ListUnreadByUser(ctx context.Context, userID uint64) ([]model.Notification, error) {
	const q = `SELECT id, event_id, user_id, title, message, notification_type, is_read, created_at
		FROM notifications
		WHERE user_id = ? AND is_read = FALSE
		ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	notes := make([]model.Notification, 0)
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.EventID, &n.UserID, &n.Title, &n.Message,
			&n.Type, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// MarkRead flags a notification as read.  Ownership is enforced in
// the statement; a miss on either id or user returns
// ErrNotificationNotFound. Marking an already-read notification is a
// no-op that still succeeds.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, userID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// The driver counts changed rows, not matched rows, so an
		// already-read notification also lands here. Verify existence
		// before reporting not-found.
		var exists uint64
		err := r.DB.QueryRowContext(ctx,
			`SELECT id FROM notifications WHERE id = ? AND user_id = ? LIMIT 1`, id, userID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotificationNotFound
		}
		return err
	}
	return nil
}
