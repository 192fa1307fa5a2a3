// Package datastore provides the namespaced key-value service components use
// to persist small string values between runs.
package datastore

import (
	"context"
	"errors"
)

// Store hands out namespaces. Implementations must be safe for concurrent use.
type Store interface {
	// Namespace returns the key space called name. Namespaces are created
	// lazily and never collide with each other.
	Namespace(name string) Namespace

	// Close releases any resources (connections, files).
	Close() error
}

// Namespace is one isolated key space.
type Namespace interface {
	// Name returns the namespace name.
	Name() string

	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any existing value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Contains reports whether key exists.
	Contains(ctx context.Context, key string) (bool, error)

	// Keys returns every key in the namespace, sorted.
	Keys(ctx context.Context) ([]string, error)

	// RemoveAll deletes every key in the namespace.
	RemoveAll(ctx context.Context) error
}

// Sentinel errors for datastore operations.
var (
	// ErrNotFound indicates a key doesn't exist.
	ErrNotFound = errors.New("datastore key not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("datastore closed")
)
