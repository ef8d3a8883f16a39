// Package repository implements raw-SQL persistence over MySQL.
// These sentinel values allow higher layers such as handlers to
// distinguish between different failure scenarios, for example
// translating ErrEventNotFound into an HTTP 404 response.
package repository

import "errors"

// ErrEventNotFound is returned when an event lookup matches no row.
var ErrEventNotFound = errors.New("event not found")

// ErrNotificationNotFound is returned when a notification does not
// exist or belongs to a different user.
var ErrNotificationNotFound = errors.New("notification not found")

// ErrUserNotFound is returned when a user lookup matches no row.
var ErrUserNotFound = errors.New("user not found")
