package repository

import (
	"cmp"
	"context"
	"errors"

	"github.com/burakmert236/volei-list/common/models"
)

// ErrConflict is returned by Update when another writer committed first.
var ErrConflict = errors.New("roster changed concurrently")

// EntryRepository is the view of the roster inside one store transaction.
// Find* methods return nil, nil when nothing matches.
type EntryRepository interface {
	ListByStatus(ctx context.Context, status models.EntryStatus) ([]models.Entry, error)
	CountByStatus(ctx context.Context, status models.EntryStatus) (int, error)
	FindByName(ctx context.Context, name string, status models.EntryStatus) (*models.Entry, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	FindEarliestWaiting(ctx context.Context) (*models.Entry, error)
	Create(ctx context.Context, entry *models.Entry) error
	UpdatePlacement(ctx context.Context, entry *models.Entry) error
	Delete(ctx context.Context, entryId string) error
	DeleteAll(ctx context.Context) (int, error)
}

// RosterStore runs fn against a consistent view of the roster. Update
// commits only when fn returns nil; fn's error is returned unchanged.
type RosterStore interface {
	View(ctx context.Context, fn func(repo EntryRepository) error) error
	Update(ctx context.Context, fn func(repo EntryRepository) error) error
	Ping(ctx context.Context) error
	Close() error
}

// compareEntries orders by position, then registration time, then id.
func compareEntries(a, b models.Entry) int {
	if c := cmp.Compare(a.Position, b.Position); c != 0 {
		return c
	}
	if c := a.RegisteredAt.Compare(b.RegisteredAt); c != 0 {
		return c
	}
	return cmp.Compare(a.EntryId, b.EntryId)
}
