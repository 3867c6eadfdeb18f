package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/sprintledger/internal/record"
)

var _ record.Store = (*MemoryStore)(nil)

// MemoryStore is an in-process record.Store for unit tests.
// It honors the adapter contract: insertion order, ErrNotFound, copies on read.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*memCollection
}

type memCollection struct {
	order []string
	rows  map[string]record.Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

func (s *MemoryStore) coll(name string) *memCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memCollection{rows: make(map[string]record.Record)}
		s.collections[name] = c
	}
	return c
}

func (c *memCollection) remove(id string) {
	delete(c.rows, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Find implements record.Store.
func (s *MemoryStore) Find(ctx context.Context, collection string, filter record.Filter) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(collection)
	out := make([]record.Record, 0)
	for _, id := range c.order {
		if rec := c.rows[id]; filter.Matches(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// GetOne implements record.Store.
func (s *MemoryStore) GetOne(ctx context.Context, collection, id string) (record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.coll(collection).rows[id]
	if !ok {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, record.ErrNotFound)
	}
	return rec.Clone(), nil
}

// Insert implements record.Store.
func (s *MemoryStore) Insert(ctx context.Context, collection string, rec record.Record) (record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := rec.ID()
	if id == "" {
		return nil, fmt.Errorf("insert %s: record has no id", collection)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(collection)
	if _, ok := c.rows[id]; ok {
		return nil, fmt.Errorf("insert %s/%s: duplicate id", collection, id)
	}
	c.rows[id] = rec.Clone()
	c.order = append(c.order, id)
	return rec.Clone(), nil
}

// UpdateFields implements record.Store.
func (s *MemoryStore) UpdateFields(ctx context.Context, collection, id string, fields record.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(collection)
	rec, ok := c.rows[id]
	if !ok {
		return fmt.Errorf("update %s/%s: %w", collection, id, record.ErrNotFound)
	}
	c.rows[id] = rec.Merge(fields)
	return nil
}

// UpdateMany implements record.Store.
func (s *MemoryStore) UpdateMany(ctx context.Context, collection string, filter record.Filter, fields record.Fields) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(collection)
	n := 0
	for _, id := range c.order {
		if rec := c.rows[id]; filter.Matches(rec) {
			c.rows[id] = rec.Merge(fields)
			n++
		}
	}
	return n, nil
}

// DeleteOne implements record.Store.
func (s *MemoryStore) DeleteOne(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(collection)
	if _, ok := c.rows[id]; !ok {
		return fmt.Errorf("delete %s/%s: %w", collection, id, record.ErrNotFound)
	}
	c.remove(id)
	return nil
}

// DeleteMany implements record.Store.
func (s *MemoryStore) DeleteMany(ctx context.Context, collection string, filter record.Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(collection)
	var doomed []string
	for _, id := range c.order {
		if filter.Matches(c.rows[id]) {
			doomed = append(doomed, id)
		}
	}
	for _, id := range doomed {
		c.remove(id)
	}
	return len(doomed), nil
}

// Len returns the number of records in collection.
func (s *MemoryStore) Len(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.coll(collection).rows)
}

// Ping implements record.Pinger.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
