// Package remote describes the hierarchical key-path store that journal data
// is synchronized with, and provides an in-memory implementation.
//
// Paths are slash separated, for example users/{uid}/diary/2025-03-14.
// Values are JSON-like maps. Implementations live in the sub-packages
// grpcstore (moodkeeper server), pgstore (Postgres) and s3store (S3).
package remote

import (
	"context"
	"errors"
)

// ErrClosed is returned by a Store after Close.
var ErrClosed = errors.New("remote store closed")

// ChangeKind tells what happened at a path.
type ChangeKind string

const (
	ChangePut    ChangeKind = "put"
	ChangeDelete ChangeKind = "delete"
)

// ChangeEvent reports a change of the node at Path. Value is nil for
// ChangeDelete.
type ChangeEvent struct {
	Path  string
	Value map[string]any
	Kind  ChangeKind
}

// Store is a remote key-path value store.
type Store interface {
	// Set replaces the whole node at path.
	Set(ctx context.Context, path string, value map[string]any) error
	// Push stores value as a new child of path under a generated id and
	// returns that id.
	Push(ctx context.Context, path string, value map[string]any) (string, error)
	// Subscribe streams the current nodes under prefix followed by every
	// later change. The channel is closed once ctx is cancelled or the
	// subscription breaks; no events are delivered after that.
	Subscribe(ctx context.Context, prefix string) (<-chan ChangeEvent, error)
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
	Close() error
}
