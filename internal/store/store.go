// Package store persists arbitrary JSON documents under string keys.
// Three backends share one interface: a single-file JSON store, SQLite,
// and PostgreSQL. The backend is chosen at startup from configuration.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Get for keys that were never set or were removed.
var ErrNotFound = errors.New("store: key not found")

// Store is a persistent JSON document store. Values are opaque JSON; the
// append operations additionally interpret the stored value as an array or
// object and reset it when the existing value has the wrong shape.
type Store interface {
	// Get returns the raw JSON value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (json.RawMessage, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value json.RawMessage) error
	// AppendArray appends element to the JSON array stored under key.
	// A missing or non-array value is replaced by a fresh array first.
	AppendArray(ctx context.Context, key string, element json.RawMessage) error
	// AppendMap sets field to value inside the JSON object stored under key.
	// A missing or non-object value is replaced by a fresh object first.
	AppendMap(ctx context.Context, key, field string, value json.RawMessage) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	Close() error
}

// appendToArray implements the shared append-or-reset semantics.
func appendToArray(existing, element json.RawMessage) json.RawMessage {
	var arr []json.RawMessage
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &arr); err != nil {
			arr = nil
		}
	}
	arr = append(arr, element)
	out, _ := json.Marshal(arr)
	return out
}

// appendToMap implements the shared set-field-or-reset semantics.
func appendToMap(existing json.RawMessage, field string, value json.RawMessage) json.RawMessage {
	obj := map[string]json.RawMessage{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &obj); err != nil {
			obj = map[string]json.RawMessage{}
		}
	}
	obj[field] = value
	out, _ := json.Marshal(obj)
	return out
}
