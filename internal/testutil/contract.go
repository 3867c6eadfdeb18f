package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sprintledger/internal/record"
)

// StoreFactory returns a fresh, empty store for one subtest.
type StoreFactory func(t *testing.T) record.Store

// RunStoreContract exercises the record.Store contract against any adapter.
func RunStoreContract(t *testing.T, newStore StoreFactory) {
	t.Helper()
	ctx := context.Background()

	insert := func(t *testing.T, s record.Store, coll string, rec record.Record) {
		t.Helper()
		_, err := s.Insert(ctx, coll, rec)
		require.NoError(t, err)
	}

	t.Run("insert and get", func(t *testing.T) {
		s := newStore(t)
		rec := record.Record{
			"id":          record.String("t1"),
			"title":       record.String("Login"),
			"actualHours": record.Number(2.5),
			"sprintId":    record.Null{},
		}
		got, err := s.Insert(ctx, "tasks", rec)
		require.NoError(t, err)
		assert.Equal(t, rec, got)

		got, err = s.GetOne(ctx, "tasks", "t1")
		require.NoError(t, err)
		assert.Equal(t, rec, got)
	})

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetOne(ctx, "tasks", "nope")
		assert.ErrorIs(t, err, record.ErrNotFound)
	})

	t.Run("insert duplicate fails", func(t *testing.T) {
		s := newStore(t)
		insert(t, s, "tasks", record.Record{"id": record.String("t1")})
		_, err := s.Insert(ctx, "tasks", record.Record{"id": record.String("t1")})
		assert.Error(t, err)
	})

	t.Run("same id in different collections", func(t *testing.T) {
		s := newStore(t)
		insert(t, s, "tasks", record.Record{"id": record.String("x"), "kind": record.String("task")})
		insert(t, s, "bugs", record.Record{"id": record.String("x"), "kind": record.String("bug")})
		got, err := s.GetOne(ctx, "bugs", "x")
		require.NoError(t, err)
		assert.Equal(t, record.String("bug"), got["kind"])
	})

	t.Run("find insertion order and filters", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{"c", "a", "b"} {
			insert(t, s, "tasks", record.Record{
				"id":       record.String(id),
				"sprintId": record.String("s1"),
				"done":     record.Bool(id != "a"),
			})
		}
		insert(t, s, "tasks", record.Record{"id": record.String("d"), "sprintId": record.Null{}})
		insert(t, s, "tasks", record.Record{"id": record.String("e")})

		all, err := s.Find(ctx, "tasks", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a", "b", "d", "e"}, ids(all))

		got, err := s.Find(ctx, "tasks", record.Eq("sprintId", record.String("s1")))
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a", "b"}, ids(got))

		got, err = s.Find(ctx, "tasks", record.Eq("sprintId", record.String("s1")).And("done", record.Bool(true)))
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b"}, ids(got))

		got, err = s.Find(ctx, "tasks", record.Eq("sprintId", record.Null{}))
		require.NoError(t, err)
		assert.Equal(t, []string{"d", "e"}, ids(got))
	})

	t.Run("find empty is not nil", func(t *testing.T) {
		s := newStore(t)
		got, err := s.Find(ctx, "tasks", record.Eq("sprintId", record.String("zzz")))
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("numbers compare by value", func(t *testing.T) {
		s := newStore(t)
		insert(t, s, "sprints", record.Record{"id": record.String("s1"), "committedPoints": record.Number(8)})
		got, err := s.Find(ctx, "sprints", record.Eq("committedPoints", record.Number(8)))
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("update fields merges", func(t *testing.T) {
		s := newStore(t)
		insert(t, s, "tasks", record.Record{"id": record.String("t1"), "status": record.String("New"), "assignee": record.String("Ann")})
		err := s.UpdateFields(ctx, "tasks", "t1", record.Fields{"status": record.String("Done"), "assignee": record.Null{}})
		require.NoError(t, err)

		got, err := s.GetOne(ctx, "tasks", "t1")
		require.NoError(t, err)
		assert.Equal(t, record.String("Done"), got["status"])
		assert.False(t, got.Has("assignee"))
		assert.Equal(t, "t1", got.ID())
	})

	t.Run("update fields missing", func(t *testing.T) {
		s := newStore(t)
		err := s.UpdateFields(ctx, "tasks", "nope", record.Fields{"status": record.String("Done")})
		assert.ErrorIs(t, err, record.ErrNotFound)
	})

	t.Run("update many", func(t *testing.T) {
		s := newStore(t)
		insert(t, s, "bugs", record.Record{"id": record.String("b1"), "taskId": record.String("t1")})
		insert(t, s, "bugs", record.Record{"id": record.String("b2"), "taskId": record.String("t1")})
		insert(t, s, "bugs", record.Record{"id": record.String("b3"), "taskId": record.String("t2")})

		n, err := s.UpdateMany(ctx, "bugs", record.Eq("taskId", record.String("t1")), record.Fields{"taskId": record.Null{}})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		cleared, err := s.Find(ctx, "bugs", record.Eq("taskId", record.Null{}))
		require.NoError(t, err)
		assert.Equal(t, []string{"b1", "b2"}, ids(cleared))

		n, err = s.UpdateMany(ctx, "bugs", record.Eq("taskId", record.String("none")), record.Fields{"taskId": record.Null{}})
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("delete one", func(t *testing.T) {
		s := newStore(t)
		insert(t, s, "team", record.Record{"id": record.String("m1")})
		require.NoError(t, s.DeleteOne(ctx, "team", "m1"))
		_, err := s.GetOne(ctx, "team", "m1")
		assert.ErrorIs(t, err, record.ErrNotFound)
		assert.ErrorIs(t, s.DeleteOne(ctx, "team", "m1"), record.ErrNotFound)
	})

	t.Run("delete many", func(t *testing.T) {
		s := newStore(t)
		insert(t, s, "time_entries", record.Record{"id": record.String("e1"), "taskId": record.String("b1"), "isBugEntry": record.Bool(true)})
		insert(t, s, "time_entries", record.Record{"id": record.String("e2"), "taskId": record.String("b1"), "isBugEntry": record.Bool(false)})
		insert(t, s, "time_entries", record.Record{"id": record.String("e3"), "taskId": record.String("b1"), "isBugEntry": record.Bool(true)})

		n, err := s.DeleteMany(ctx, "time_entries", record.Eq("taskId", record.String("b1")).And("isBugEntry", record.Bool(true)))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		rest, err := s.Find(ctx, "time_entries", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"e2"}, ids(rest))
	})

	t.Run("invalid filter field", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Find(ctx, "tasks", record.Eq("bad field", record.String("x")))
		if _, isMemory := s.(*MemoryStore); isMemory {
			// in-memory matching has no query path to protect
			assert.NoError(t, err)
			return
		}
		assert.ErrorIs(t, err, record.ErrInvalidField)
	})
}

func ids(recs []record.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID()
	}
	return out
}
