package testutil

import (
	"context"
	"sync"

	"github.com/roach88/sprintledger/internal/record"
)

// Store operation names used by CountingStore and FailingStore.
const (
	OpFind         = "find"
	OpGetOne       = "get_one"
	OpInsert       = "insert"
	OpUpdateFields = "update_fields"
	OpUpdateMany   = "update_many"
	OpDeleteOne    = "delete_one"
	OpDeleteMany   = "delete_many"
)

var (
	_ record.Store = (*CountingStore)(nil)
	_ record.Store = (*FailingStore)(nil)
)

// CountingStore records how many times each operation hit each collection.
type CountingStore struct {
	record.Store

	mu    sync.Mutex
	calls map[[2]string]int
}

// NewCountingStore wraps inner.
func NewCountingStore(inner record.Store) *CountingStore {
	return &CountingStore{Store: inner, calls: make(map[[2]string]int)}
}

func (s *CountingStore) count(op, collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[[2]string{op, collection}]++
}

// Calls returns the number of op calls against collection.
func (s *CountingStore) Calls(op, collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[[2]string{op, collection}]
}

// Writes returns the number of mutating calls against collection.
func (s *CountingStore) Writes(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, op := range []string{OpInsert, OpUpdateFields, OpUpdateMany, OpDeleteOne, OpDeleteMany} {
		n += s.calls[[2]string{op, collection}]
	}
	return n
}

// Reset clears all counters.
func (s *CountingStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[[2]string]int)
}

func (s *CountingStore) Find(ctx context.Context, collection string, filter record.Filter) ([]record.Record, error) {
	s.count(OpFind, collection)
	return s.Store.Find(ctx, collection, filter)
}

func (s *CountingStore) GetOne(ctx context.Context, collection, id string) (record.Record, error) {
	s.count(OpGetOne, collection)
	return s.Store.GetOne(ctx, collection, id)
}

func (s *CountingStore) Insert(ctx context.Context, collection string, rec record.Record) (record.Record, error) {
	s.count(OpInsert, collection)
	return s.Store.Insert(ctx, collection, rec)
}

func (s *CountingStore) UpdateFields(ctx context.Context, collection, id string, fields record.Fields) error {
	s.count(OpUpdateFields, collection)
	return s.Store.UpdateFields(ctx, collection, id, fields)
}

func (s *CountingStore) UpdateMany(ctx context.Context, collection string, filter record.Filter, fields record.Fields) (int, error) {
	s.count(OpUpdateMany, collection)
	return s.Store.UpdateMany(ctx, collection, filter, fields)
}

func (s *CountingStore) DeleteOne(ctx context.Context, collection, id string) error {
	s.count(OpDeleteOne, collection)
	return s.Store.DeleteOne(ctx, collection, id)
}

func (s *CountingStore) DeleteMany(ctx context.Context, collection string, filter record.Filter) (int, error) {
	s.count(OpDeleteMany, collection)
	return s.Store.DeleteMany(ctx, collection, filter)
}

// FailingStore injects errors for selected (operation, collection) pairs.
type FailingStore struct {
	record.Store

	mu    sync.Mutex
	rules map[[2]string]error
}

// NewFailingStore wraps inner with no failures armed.
func NewFailingStore(inner record.Store) *FailingStore {
	return &FailingStore{Store: inner, rules: make(map[[2]string]error)}
}

// FailOn makes every op call against collection return err.
// An empty collection matches all collections.
func (s *FailingStore) FailOn(op, collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[[2]string{op, collection}] = err
}

// Clear disarms all failures.
func (s *FailingStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = make(map[[2]string]error)
}

func (s *FailingStore) fail(op, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.rules[[2]string{op, collection}]; ok {
		return err
	}
	return s.rules[[2]string{op, ""}]
}

func (s *FailingStore) Find(ctx context.Context, collection string, filter record.Filter) ([]record.Record, error) {
	if err := s.fail(OpFind, collection); err != nil {
		return nil, err
	}
	return s.Store.Find(ctx, collection, filter)
}

func (s *FailingStore) GetOne(ctx context.Context, collection, id string) (record.Record, error) {
	if err := s.fail(OpGetOne, collection); err != nil {
		return nil, err
	}
	return s.Store.GetOne(ctx, collection, id)
}

func (s *FailingStore) Insert(ctx context.Context, collection string, rec record.Record) (record.Record, error) {
	if err := s.fail(OpInsert, collection); err != nil {
		return nil, err
	}
	return s.Store.Insert(ctx, collection, rec)
}

func (s *FailingStore) UpdateFields(ctx context.Context, collection, id string, fields record.Fields) error {
	if err := s.fail(OpUpdateFields, collection); err != nil {
		return err
	}
	return s.Store.UpdateFields(ctx, collection, id, fields)
}

func (s *FailingStore) UpdateMany(ctx context.Context, collection string, filter record.Filter, fields record.Fields) (int, error) {
	if err := s.fail(OpUpdateMany, collection); err != nil {
		return 0, err
	}
	return s.Store.UpdateMany(ctx, collection, filter, fields)
}

func (s *FailingStore) DeleteOne(ctx context.Context, collection, id string) error {
	if err := s.fail(OpDeleteOne, collection); err != nil {
		return err
	}
	return s.Store.DeleteOne(ctx, collection, id)
}

func (s *FailingStore) DeleteMany(ctx context.Context, collection string, filter record.Filter) (int, error) {
	if err := s.fail(OpDeleteMany, collection); err != nil {
		return 0, err
	}
	return s.Store.DeleteMany(ctx, collection, filter)
}
