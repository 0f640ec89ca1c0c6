// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file centralizes the repository error taxonomy and
// the translation of driver errors into it.
//
// Error semantics:
//   - ErrNotFound:  the requested row does not exist.
//   - ErrDuplicate: a comic with the same fingerprint or date already exists.
//     Expected during ingestion; callers short-circuit on it.
//   - ErrConflict:  a message record would violate the one-message-per-
//     (guild, comic) invariant or reuse a message id. Never overwritten.
//   - ErrIntegrity: a write referenced a missing parent row or broke a
//     CHECK constraint. Caller misuse; never retried.
//   - ErrClosed:    a vote targeted a comic that is unknown or whose poll
//     is closed.
//
// Anything else is a raw driver error; IsTransient tells the caller whether
// a bounded retry makes sense.
package repo

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	// It aliases gorm.ErrRecordNotFound so errors.Is works with both.
	ErrNotFound = gorm.ErrRecordNotFound

	// ErrDuplicate indicates the comic is already recorded.
	ErrDuplicate = errors.New("duplicate")

	// ErrConflict indicates a message record collides with an existing one.
	ErrConflict = errors.New("conflict")

	// ErrIntegrity indicates a foreign-key or check constraint violation.
	ErrIntegrity = errors.New("integrity violation")

	// ErrClosed indicates the comic no longer accepts votes.
	ErrClosed = errors.New("poll closed")
)

// IsTransient reports whether err is a lock-contention or connection error
// that may succeed when retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrConflict) || errors.Is(err, ErrIntegrity) ||
		errors.Is(err, ErrClosed) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	low := strings.ToLower(err.Error())
	for _, s := range []string{
		"database is locked",
		"database table is locked",
		"sqlite_busy",
		"deadlock detected",
		"could not serialize access",
		"connection reset",
		"broken pipe",
		"i/o timeout",
	} {
		if strings.Contains(low, s) {
			return true
		}
	}
	return false
}

// isUniqueViolation detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}

// isIntegrityViolation detects foreign-key and check constraint failures.
func isIntegrityViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) || errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "foreign key") ||
		strings.Contains(low, "check constraint")
}
