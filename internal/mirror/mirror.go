// Package mirror defines the realtime mirror store: a remote key-value
// document store reachable only when a connection configuration is
// present. It supports write, point-read-once, and subscribe-for-changes
// on named collections.
package mirror

import (
	"context"
	"encoding/json"
)

// Collections synchronized with the mirror.
const (
	CollectionNews     = "news"
	CollectionSettings = "settings"
	CollectionHistory  = "history"
)

// ChangeFunc receives the full remote snapshot of a collection each time
// it changes. A nil raw value means the collection holds no data yet and
// must not overwrite local state.
type ChangeFunc func(raw json.RawMessage)

// Store is the remote mirror contract. Implemented by Client (websocket)
// and Memory (in-process, for tests).
type Store interface {
	// Write replaces the collection's document with value.
	Write(ctx context.Context, collection string, value any) error

	// ReadOnce fetches the collection's current document into out.
	// Returns false when the collection holds no data yet.
	ReadOnce(ctx context.Context, collection string, out any) (bool, error)

	// Subscribe registers fn for change notifications on collection and
	// returns a deterministic teardown func. After teardown returns, fn
	// is never called again.
	Subscribe(collection string, fn ChangeFunc) (func(), error)

	// Close releases the remote connection and tears down all
	// subscriptions.
	Close() error
}

// Dialer establishes a mirror connection from a validated configuration.
// Injectable so the sync coordinator can be exercised without a network.
type Dialer func(ctx context.Context, cfg Config) (Store, error)
