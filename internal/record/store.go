package record

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record addressed by id does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the record store adapter contract.
//
// Every call is synchronous. There is no transaction spanning calls, so
// callers composing several writes get best-effort semantics only.
type Store interface {
	// Find returns every record in collection matching filter, in insertion order.
	// Never returns nil on success.
	Find(ctx context.Context, collection string, filter Filter) ([]Record, error)

	// GetOne returns the record with the given id or ErrNotFound.
	GetOne(ctx context.Context, collection, id string) (Record, error)

	// Insert stores rec, which must carry an id. Returns the stored record.
	Insert(ctx context.Context, collection string, rec Record) (Record, error)

	// UpdateFields merges fields into the record with the given id.
	// Returns ErrNotFound when absent.
	UpdateFields(ctx context.Context, collection, id string, fields Fields) error

	// UpdateMany merges fields into every matching record and returns the count.
	UpdateMany(ctx context.Context, collection string, filter Filter, fields Fields) (int, error)

	// DeleteOne removes the record with the given id. Returns ErrNotFound when absent.
	DeleteOne(ctx context.Context, collection, id string) error

	// DeleteMany removes every matching record and returns the count.
	DeleteMany(ctx context.Context, collection string, filter Filter) (int, error)
}

// Pinger is implemented by adapters that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}
