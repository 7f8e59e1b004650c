package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"callscope/internal/model"
)

// ErrNotFound is returned when no recording exists for the given id.
var ErrNotFound = errors.New("recording not found")

// RecordingRepository defines data access for call recordings.
type RecordingRepository interface {
	// Create persists a new recording record.
	Create(ctx context.Context, rec *model.Recording) error

	// GetByID retrieves a recording by id.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Recording, error)

	// Update applies a partial update atomically and returns the updated
	// recording. Nil fields of upd are left untouched.
	Update(ctx context.Context, id uuid.UUID, upd model.RecordingUpdate) (*model.Recording, error)

	// List retrieves recordings ordered by creation time descending.
	List(ctx context.Context, limit, offset int) ([]model.Recording, error)
}
