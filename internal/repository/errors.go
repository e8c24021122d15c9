// Package repository defines error types that are reused across multiple
// repositories.  Entity lookups return their own NotFound sentinel, every one
// of which wraps ErrNotFound so callers can test for either.
package repository

import (
	"errors"
	"fmt"

	"github.com/spinsa/inventario/internal/database"
)

// ErrNotFound is wrapped by every entity specific not found error.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a unique key, such as two
// users sharing an email.
var ErrConflict = errors.New("conflict")

// ErrInvalidReference is returned when a write names a brand or piece that
// does not exist.
var ErrInvalidReference = errors.New("referenced brand or piece does not exist")

// ErrNoChange is returned by partial updates that carry no field.
var ErrNoChange = errors.New("no fields to update")

var (
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrPieceNotFound      = fmt.Errorf("piece %w", ErrNotFound)
	ErrInventoryNotFound  = fmt.Errorf("inventory %w", ErrNotFound)
	ErrProductionNotFound = fmt.Errorf("production %w", ErrNotFound)
)

// translate maps engine constraint violations to the sentinels above.
func translate(db *database.DB, err error) error {
	switch {
	case err == nil:
		return nil
	case db.Dialect().IsDuplicate(err):
		return ErrConflict
	case db.Dialect().IsForeignKey(err):
		return ErrInvalidReference
	}
	return err
}
