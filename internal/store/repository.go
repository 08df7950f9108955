package store

import (
	"context"
	"errors"

	"loan-api/internal/models"
)

var (
	// ErrRecordNotFound is returned by repositories when no record has the id.
	ErrRecordNotFound = errors.New("record not found")
	// ErrDuplicateID is returned by Insert when the id is already taken.
	ErrDuplicateID = errors.New("duplicate application id")
)

// Repository is the storage behind a Store. Implementations guard their own
// state; the Store serializes the multi-step operations on top of it.
type Repository interface {
	// NextSequence returns the next identifier number. It is never reused.
	NextSequence(ctx context.Context) (int64, error)
	// AdvanceSequence makes sure the next NextSequence result is above atLeast.
	AdvanceSequence(ctx context.Context, atLeast int64) error
	Insert(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, id string) (*models.Application, error)
	// List returns every record in insertion order.
	List(ctx context.Context) ([]*models.Application, error)
	// Save persists the mutable fields (status, updatedAt) of an existing record.
	Save(ctx context.Context, app *models.Application) error
	Ping(ctx context.Context) error
}
