package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sprintledger/internal/record"
	"github.com/roach88/sprintledger/internal/testutil"
)

const dsnEnv = "SPRINTLEDGER_TEST_PG_DSN"

func TestCompileWhere(t *testing.T) {
	sql, args, err := compileWhere("bugs", record.Eq("taskId", record.String("t1")).And("sprintId", record.Null{}))
	require.NoError(t, err)
	assert.Equal(t,
		"WHERE collection = $1 AND (body -> $2::text IS NULL OR body -> $2::text = 'null'::jsonb) AND body -> $3::text = $4::text::jsonb",
		sql)
	assert.Equal(t, []any{"bugs", "sprintId", "taskId", `"t1"`}, args)
}

func TestCompileWhereEncodesScalars(t *testing.T) {
	_, args, err := compileWhere("time_entries", record.Eq("isBugEntry", record.Bool(true)).And("hours", record.Number(1.5)))
	require.NoError(t, err)
	assert.Equal(t, []any{"time_entries", "hours", "1.5", "isBugEntry", "true"}, args)
}

func TestCompileWhereRejectsBadField(t *testing.T) {
	_, _, err := compileWhere("tasks", record.Eq("a-b", record.String("x")))
	assert.ErrorIs(t, err, record.ErrInvalidField)
}

func TestStoreContract(t *testing.T) {
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	testutil.RunStoreContract(t, func(t *testing.T) record.Store {
		_, err := s.Pool.Exec(ctx, "TRUNCATE records RESTART IDENTITY")
		require.NoError(t, err)
		return s
	})
}
