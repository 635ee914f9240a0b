// Package store provides the durable document layer.
// State persists as whole JSON documents keyed by name; there is no
// partial-document update primitive at this boundary.
package store

import "errors"

// ErrNotFound is returned by Load when no document exists under the key.
var ErrNotFound = errors.New("store: document not found")

// DocStore is the abstract durable key-value document store. Implementations
// must make Save atomic per document; readers always see a complete body.
type DocStore interface {
	Load(key string) ([]byte, error)
	Save(key string, body []byte) error
	Close() error
}
