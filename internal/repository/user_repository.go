package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/communitypulse/server/internal/model"
	"github.com/communitypulse/server/internal/utils"
)

// UserRepo provides persistence for application users.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrUserExists = errors.New("username or email already exists")

const userColumns = "id,username,email,phone,password_hash,is_admin,is_verified_organizer,is_banned,created_at,updated_at"

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Phone, &u.PasswordHash,
		&u.IsAdmin, &u.IsVerifiedOrganizer, &u.IsBanned, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create inserts a user and returns its ID.  The password is hashed
// with bcrypt before storage.  Duplicate usernames or emails surface
// as ErrUserExists via the MySQL duplicate-key error code.
func (r *UserRepo) Create(ctx context.Context, username, email, phone, password string, cost int) (uint64, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, email, phone, password_hash) VALUES (?,?,?,?)",
		username, email, phone, hash)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrUserExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByUsername fetches a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	username = strings.TrimSpace(username)
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", username))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// List returns all users ordered by creation time.  Used by the
// admin user-management endpoint.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateFlags applies the admin-editable moderation flags.  Nil
// pointers leave the corresponding column untouched.  Returns
// ErrUserNotFound when the id does not resolve.
func (r *UserRepo) UpdateFlags(ctx context.Context, id uint64, isAdmin, isVerifiedOrganizer, isBanned *bool) error {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if isAdmin != nil {
		sets = append(sets, "is_admin=?")
		args = append(args, *isAdmin)
	}
	if isVerifiedOrganizer != nil {
		sets = append(sets, "is_verified_organizer=?")
		args = append(args, *isVerifiedOrganizer)
	}
	if isBanned != nil {
		sets = append(sets, "is_banned=?")
		args = append(args, *isBanned)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// The update may also affect zero rows when the values are
		// unchanged, so verify existence before reporting not-found.
		var exists uint64
		if err := r.DB.QueryRowContext(ctx, "SELECT id FROM users WHERE id=? LIMIT 1", id).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}
	}
	return nil
}
