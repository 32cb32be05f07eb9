package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kgraphd/kgraphd/internal/types"
)

// wrapDBError wraps a database error with operation context, converting
// sql.ErrNoRows into types.ErrNotFound so callers can use errors.Is
// uniformly regardless of which query produced the miss.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, types.ErrNotFound)
	}
	if isUniqueConstraint(err) {
		return fmt.Errorf("%s: %w", op, types.ErrAlreadyExists)
	}
	if isBusyOrLocked(err) {
		return fmt.Errorf("%s: %w", op, types.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isUniqueConstraint reports whether err is a SQLite UNIQUE constraint
// violation. The ncruces driver surfaces these as *sqlite3.Error with a
// message containing "UNIQUE constraint failed"; matching on the message
// avoids importing the driver's error type into every call site.
func isUniqueConstraint(err error) bool {
	return containsAny(err, "UNIQUE constraint failed", "constraint failed: UNIQUE")
}

// isBusyOrLocked reports whether err is a SQLITE_BUSY / SQLITE_LOCKED
// condition that exceeded the busy_timeout pragma.
func isBusyOrLocked(err error) bool {
	return containsAny(err, "database is locked", "SQLITE_BUSY", "SQLITE_LOCKED")
}

func containsAny(err error, substrs ...string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range substrs {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
