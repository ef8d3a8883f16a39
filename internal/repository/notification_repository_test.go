package repository

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*NotificationRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewNotificationRepo(db), mock
}

func TestMarkReadUnread(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE notifications").
		WithArgs(uint64(3), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkRead(context.Background(), 3, 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

// MySQL reports zero affected rows for an update that changes nothing,
// so re-reading an already-read notification must not look like a miss.
func TestMarkReadAlreadyRead(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE notifications").
		WithArgs(uint64(3), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id FROM notifications").
		WithArgs(uint64(3), uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	require.NoError(t, repo.MarkRead(context.Background(), 3, 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReadMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE notifications").
		WithArgs(uint64(99), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id FROM notifications").
		WithArgs(uint64(99), uint64(7)).
		WillReturnError(sql.ErrNoRows)

	require.ErrorIs(t, repo.MarkRead(context.Background(), 99, 7), ErrNotificationNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
