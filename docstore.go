// Package docstore stores named JSON documents, either in process memory
// or as one file per key inside a data directory.
//
// # Backends
//
// Both backends implement [Store]:
//
//   - [MemoryStore] keeps documents for the lifetime of the process and
//     attaches a _metadata member (receipt time, body size) to each one.
//   - [FileStore] writes each document to <dir>/<key>.json, replacing the
//     previous content through a temp file and an atomic rename.
//
// # Usage
//
//	store, err := docstore.NewFileStore("data")
//	if err != nil {
//		return err
//	}
//
//	err = store.Set(ctx, "acme", []byte(`{"employees": 12}`))
//
//	doc, err := store.Get(ctx, "acme")
//	if errors.Is(err, docstore.ErrNotFound) {
//		// ...
//	}
//
// # Concurrency
//
// All operations are safe for concurrent use. Writes to the same key are
// last-writer-wins; a reader sees either the old or the new document, never
// a mix of both.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

const maxKeyLength = 1024

var (
	ErrKeyLengthExceeds = errors.New("maximal key length exceeds")
	ErrNotFound         = errors.New("document with key not found")
	ErrEmptyKey         = errors.New("key cannot be empty")
	ErrInvalidKey       = errors.New("key contains invalid characters")
	ErrInvalidJSON      = errors.New("body is not valid JSON")
)

// Store is a flat namespace of JSON documents.
type Store interface {
	// Get returns the stored document for key, or an error wrapping
	// ErrNotFound.
	Get(ctx context.Context, key string) (json.RawMessage, error)

	// Set stores body under key, replacing any previous document.
	// body must be valid JSON.
	Set(ctx context.Context, key string, body []byte) error

	// Keys lists the stored keys.
	Keys(ctx context.Context) ([]string, error)
}

// Dumper is implemented by stores that can return every document at once.
type Dumper interface {
	All(ctx context.Context) (map[string]json.RawMessage, error)
}

// IsKeyError reports whether err was caused by a rejected key.
func IsKeyError(err error) bool {
	return errors.Is(err, ErrEmptyKey) ||
		errors.Is(err, ErrInvalidKey) ||
		errors.Is(err, ErrKeyLengthExceeds)
}
