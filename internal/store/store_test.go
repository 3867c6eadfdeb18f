package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sprintledger/internal/record"
	"github.com/roach88/sprintledger/internal/testutil"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreContract(t *testing.T) {
	testutil.RunStoreContract(t, func(t *testing.T) record.Store { return openTestStore(t) })
}

func TestStoreContractPureGo(t *testing.T) {
	testutil.RunStoreContract(t, func(t *testing.T) record.Store {
		return openTestStore(t, WithDriver(DriverPureGo))
	})
}

func TestOpenInMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	_, err = s.Insert(ctx, "projects", record.Record{"id": record.String("p1")})
	require.NoError(t, err)

	n, err := s.Count(ctx, "projects")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(":memory:", WithDriver("postgres"))
	assert.Error(t, err)
}

func TestPragmas(t *testing.T) {
	s := openTestStore(t)

	mode, err := s.pragma("journal_mode")
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)

	timeout, err := s.pragma("busy_timeout")
	require.NoError(t, err)
	assert.Equal(t, "5000", timeout)

	version, err := s.pragma("user_version")
	require.NoError(t, err)
	assert.Equal(t, "1", version)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	_, err = s1.Insert(ctx, "tasks", record.Record{"id": record.String("t1"), "status": record.String("Done")})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetOne(ctx, "tasks", "t1")
	require.NoError(t, err)
	assert.Equal(t, record.String("Done"), got["status"])
}

func TestMigrationIndexes(t *testing.T) {
	s := openTestStore(t)
	rows, err := s.db.Query("SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = 'records' ORDER BY name")
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())

	for _, field := range indexedFields {
		assert.Contains(t, names, "idx_records_"+field)
	}
}

func TestUpdateFieldsKeepsID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Insert(ctx, "tasks", record.Record{"id": record.String("t1")})
	require.NoError(t, err)

	require.NoError(t, s.UpdateFields(ctx, "tasks", "t1", record.Fields{"id": record.String("other")}))

	got, err := s.GetOne(ctx, "tasks", "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID())
}

func TestBoolFilterDoesNotMatchNumbers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Insert(ctx, "time_entries", record.Record{"id": record.String("e1"), "isBugEntry": record.Number(1)})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "time_entries", record.Record{"id": record.String("e2"), "isBugEntry": record.Bool(true)})
	require.NoError(t, err)

	got, err := s.Find(ctx, "time_entries", record.Eq("isBugEntry", record.Bool(true)))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e2", got[0].ID())

	got, err = s.Find(ctx, "time_entries", record.Eq("isBugEntry", record.Number(1)))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].ID())
}
