// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splitsmart/internal/models"
)

var (
	// ErrNotFound is returned when a saved split does not exist or belongs to
	// another owner.
	ErrNotFound = errors.New("split not found")
	// ErrNotOwner is returned when saving over a split owned by someone else.
	ErrNotOwner = errors.New("split belongs to another owner")
)

// Store defines the interface for split history operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
//
// Every split has an owner and every read or delete is scoped to one; another
// owner's splits behave as if they did not exist.
type Store interface {
	// SaveSplit persists a split for split.Owner. ID, Timestamp and Title are
	// filled in when empty; an existing split with the same ID and owner is
	// replaced, one with another owner yields ErrNotOwner.
	SaveSplit(ctx context.Context, split *models.SavedSplit) error

	// GetSplit retrieves a complete split by its ID.
	GetSplit(ctx context.Context, owner, splitID string) (*models.SavedSplit, error)

	// ListSplits returns up to limit splits, newest first. Only the header
	// fields and participants are populated; use GetSplit for the rest.
	// A limit of 0 or less means no limit.
	ListSplits(ctx context.Context, owner string, limit int) ([]*models.SavedSplit, error)

	// DeleteSplit removes one split.
	DeleteSplit(ctx context.Context, owner, splitID string) error

	// ClearSplits removes every split of owner and returns how many were removed.
	ClearSplits(ctx context.Context, owner string) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
