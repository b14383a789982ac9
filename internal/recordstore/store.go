// Package recordstore defines the keyed, subscribable store session
// records live in. Writes are last-write-wins at the record level; every
// write is fanned out to all subscribers as a full-record snapshot, and a
// new subscriber first receives a replay of the current value.
package recordstore

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get and Update for absent keys.
var ErrKeyNotFound = errors.New("recordstore: key not found")

// Snapshot is one delivered value. Rev increases monotonically per key so
// viewers can discard stale replays; it is not a concurrency token.
type Snapshot struct {
	Key     string
	Value   []byte
	Rev     int64
	Deleted bool
}

// UpdateFunc transforms the current value of a key into its replacement.
// It receives nil when the key is absent. Returning an error aborts the
// update without writing.
type UpdateFunc func(current []byte) ([]byte, error)

// Unsubscribe detaches a subscriber registered with Subscribe.
type Unsubscribe func()

// Store is the realtime key-value contract the rest of the system writes
// through. Implementations do not retry; a failed or stalled call is
// surfaced to the caller via the context or a transport error.
type Store interface {
	// Get returns the current value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key unconditionally (last-write-wins).
	Set(ctx context.Context, key string, value []byte) error

	// Update applies fn to the current value and writes the result.
	// The read-modify-write is not transactional across actors.
	Update(ctx context.Context, key string, fn UpdateFunc) error

	// Push stores value under a newly generated child key of collection
	// and returns the full key.
	Push(ctx context.Context, collection string, value []byte) (string, error)

	// Remove deletes the key. Removing an absent key is a no-op.
	Remove(ctx context.Context, key string) error

	// List returns the current values of every key under the collection
	// prefix. Ordering is unspecified.
	List(ctx context.Context, collection string) (map[string][]byte, error)

	// Subscribe registers fn for key (or a collection prefix). The current
	// value is replayed first, then every subsequent write is delivered as
	// a full snapshot until the returned Unsubscribe is called. Delivery is
	// asynchronous and eventually consistent across subscribers.
	Subscribe(ctx context.Context, key string, fn func(Snapshot)) (Unsubscribe, error)
}
