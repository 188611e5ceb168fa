package state

import (
	"context"

	"git.home.luguber.info/inful/bedshift/internal/foundation/errors"
)

// Store persists the single ScheduleState record.
type Store interface {
	// Load returns the persisted state, or Default() when nothing has been saved yet.
	Load(ctx context.Context) (*ScheduleState, error)

	// Save replaces the persisted state atomically. Invalid states are rejected.
	Save(ctx context.Context, s *ScheduleState) error

	// Close releases resources.
	Close() error
}

var (
	// ErrStoreOpenFailed indicates the state database could not be opened.
	ErrStoreOpenFailed = errors.StorageError("could not open schedule state database").Build()

	// ErrStoreLoadFailed indicates reading the state failed.
	ErrStoreLoadFailed = errors.StorageError("failed to load schedule state").Build()

	// ErrStoreSaveFailed indicates writing the state failed.
	ErrStoreSaveFailed = errors.StorageError("failed to save schedule state").Build()

	// ErrCorruptState indicates a persisted value could not be decoded.
	ErrCorruptState = errors.StorageError("persisted schedule state is corrupt").Fatal().Build()
)
