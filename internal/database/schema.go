package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates every table the server needs. Statements use
// IF NOT EXISTS so the bootstrap is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			username VARCHAR(64) NOT NULL,
			email VARCHAR(255) NOT NULL,
			phone VARCHAR(32) NOT NULL DEFAULT '',
			password_hash VARCHAR(255) NOT NULL,
			is_admin TINYINT(1) NOT NULL DEFAULT 0,
			is_verified_organizer TINYINT(1) NOT NULL DEFAULT 0,
			is_banned TINYINT(1) NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			UNIQUE KEY uq_users_username (username),
			UNIQUE KEY uq_users_email (email)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			user_id BIGINT UNSIGNED NOT NULL,
			token_hash CHAR(64) NOT NULL,
			expires_at DATETIME NOT NULL,
			revoked_at DATETIME NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			UNIQUE KEY uq_refresh_tokens_hash (token_hash),
			KEY idx_refresh_tokens_user (user_id),
			CONSTRAINT fk_refresh_tokens_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS events (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL,
			location VARCHAR(255) NOT NULL,
			category VARCHAR(64) NOT NULL,
			start_date DATETIME NOT NULL,
			end_date DATETIME NOT NULL,
			registration_start DATETIME NOT NULL,
			registration_end DATETIME NOT NULL,
			image_path VARCHAR(255) NULL,
			organizer_id BIGINT UNSIGNED NOT NULL,
			is_approved TINYINT(1) NOT NULL DEFAULT 0,
			attendees_count INT UNSIGNED NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			KEY idx_events_category (category),
			KEY idx_events_start (start_date),
			KEY idx_events_organizer (organizer_id),
			CONSTRAINT fk_events_organizer FOREIGN KEY (organizer_id) REFERENCES users (id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		// active_flag collapses to NULL for cancelled rows, so the unique
		// key only ever sees one live registration per (event, user) while
		// any number of cancelled rows may pile up underneath it.
		`CREATE TABLE IF NOT EXISTS registrations (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			event_id BIGINT UNSIGNED NOT NULL,
			user_id BIGINT UNSIGNED NOT NULL,
			status ENUM('INTERESTED','REGISTERED','CANCELLED') NOT NULL,
			number_of_attendees INT UNSIGNED NOT NULL DEFAULT 1,
			active_flag TINYINT(1) AS (IF(status = 'CANCELLED', NULL, 1)) STORED,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			UNIQUE KEY uq_registrations_active (event_id, user_id, active_flag),
			KEY idx_registrations_user (user_id),
			CONSTRAINT fk_registrations_event FOREIGN KEY (event_id) REFERENCES events (id) ON DELETE CASCADE,
			CONSTRAINT fk_registrations_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS registration_attendees (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			registration_id BIGINT UNSIGNED NOT NULL,
			position INT UNSIGNED NOT NULL,
			name VARCHAR(255) NOT NULL,
			PRIMARY KEY (id),
			UNIQUE KEY uq_reg_attendees_pos (registration_id, position),
			CONSTRAINT fk_reg_attendees_registration FOREIGN KEY (registration_id) REFERENCES registrations (id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			user_id BIGINT UNSIGNED NOT NULL,
			event_id BIGINT UNSIGNED NOT NULL,
			title VARCHAR(255) NOT NULL,
			message VARCHAR(512) NOT NULL,
			notification_type ENUM('reminder','update','cancellation') NOT NULL,
			is_read TINYINT(1) NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			KEY idx_notifications_user_unread (user_id, is_read),
			CONSTRAINT fk_notifications_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}

	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
