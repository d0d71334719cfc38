// Package store defines the contract between clients and the remote snapshot blob, along with
// in-process implementations of it.
package store

import (
	"context"
	"errors"

	"github.com/jason-s-yu/pokerbank/internal/models"
)

var (
	// ErrNotFound is returned when no snapshot exists for a game code.
	ErrNotFound = errors.New("game not found")
	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("state store unavailable")
	// ErrConflict is returned by a compare-and-swap write whose expected version is out of date.
	ErrConflict = errors.New("state version conflict")
)

// StateStore persists one whole-document snapshot per game code.
type StateStore interface {
	Get(ctx context.Context, code string) (models.GameState, error)
	Put(ctx context.Context, state models.GameState) error
	Delete(ctx context.Context, code string) error
}

// VersionedStore adds an optimistic write: the snapshot is stored only if the current stored
// version equals expected. An expected version of 0 means "must not exist yet".
type VersionedStore interface {
	StateStore
	PutIfVersion(ctx context.Context, state models.GameState, expected int64) error
}

// Watcher delivers the version of every snapshot written for a game code until ctx ends.
// The channel is closed when the subscription terminates.
type Watcher interface {
	Watch(ctx context.Context, code string) (<-chan int64, error)
}
