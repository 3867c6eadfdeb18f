package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sprintledger/internal/record"
	"github.com/roach88/sprintledger/internal/testutil"
)

func trace(events ...TraceEvent) []TraceEvent {
	for i := range events {
		events[i].Seq = i + 1
		if events[i].Outcome == "" {
			events[i].Outcome = OutcomeOK
		}
	}
	return events
}

func newEvaluator(t *testing.T) (*evaluator, *testutil.MemoryStore) {
	t.Helper()
	st := testutil.NewMemoryStore()
	return &evaluator{ctx: context.Background(), store: st, aliases: map[string]string{"t": "task-1"}}, st
}

func TestAssertTraceContains(t *testing.T) {
	e, _ := newEvaluator(t)
	tr := trace(
		TraceEvent{Op: OpCreate, Kind: "task"},
		TraceEvent{Op: OpGet, Kind: "bug", Outcome: "NOT_FOUND"},
	)

	assert.NoError(t, e.assert(tr, Assertion{Type: AssertTraceContains, Op: OpCreate, Kind: "tasks"}))
	assert.NoError(t, e.assert(tr, Assertion{Type: AssertTraceContains, Op: OpGet, Outcome: "NOT_FOUND"}))

	err := e.assert(tr, Assertion{Type: AssertTraceContains, Op: OpGet, Kind: "bug"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outcome ok")
}

func TestAssertTraceCount(t *testing.T) {
	e, _ := newEvaluator(t)
	tr := trace(
		TraceEvent{Op: OpCreate, Kind: "time_entry"},
		TraceEvent{Op: OpCreate, Kind: "task"},
		TraceEvent{Op: OpCreate, Kind: "time_entry"},
	)

	assert.NoError(t, e.assert(tr, Assertion{Type: AssertTraceCount, Op: OpCreate, Kind: "time_entry", Count: 2}))
	assert.NoError(t, e.assert(tr, Assertion{Type: AssertTraceCount, Op: OpCreate, Count: 3}))
	assert.NoError(t, e.assert(tr, Assertion{Type: AssertTraceCount, Op: OpDelete, Count: 0}))
	assert.Error(t, e.assert(tr, Assertion{Type: AssertTraceCount, Op: OpCreate, Kind: "task", Count: 2}))
}

func TestAssertTraceOrder(t *testing.T) {
	tr := trace(
		TraceEvent{Op: OpCreate, Kind: "task"},
		TraceEvent{Op: OpGet, Kind: "task"},
		TraceEvent{Op: OpDelete, Kind: "task"},
	)

	assert.NoError(t, traceOrder(tr, []string{"create tasks", "delete task"}))

	err := traceOrder(tr, []string{"delete task", "create task"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"create task"`)

	assert.Error(t, traceOrder(tr, []string{"update task"}))
}

func TestAssertFinalState(t *testing.T) {
	e, st := newEvaluator(t)
	_, err := st.Insert(context.Background(), "tasks", record.Record{
		"id": record.String("task-1"), "status": record.String("Done"), "actualHours": record.Number(8),
	})
	require.NoError(t, err)

	assert.NoError(t, e.assert(nil, Assertion{
		Type: AssertFinalState, Kind: "task", ID: "$t",
		Expect: map[string]any{"status": "Done", "actualHours": 8, "sprintId": nil},
	}))

	err = e.assert(nil, Assertion{
		Type: AssertFinalState, Kind: "task", ID: "$t",
		Expect: map[string]any{"actualHours": 4},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field actualHours: expected 4, got 8")

	err = e.assert(nil, Assertion{Type: AssertFinalState, Kind: "task", ID: "gone", Expect: map[string]any{"status": "Done"}})
	assert.ErrorIs(t, err, record.ErrNotFound)
}

func TestAssertStateCount(t *testing.T) {
	e, st := newEvaluator(t)
	ctx := context.Background()
	for _, id := range []string{"e1", "e2"} {
		_, err := st.Insert(ctx, "time_entries", record.Record{"id": record.String(id), "taskId": record.String("task-1")})
		require.NoError(t, err)
	}

	assert.NoError(t, e.assert(nil, Assertion{Type: AssertStateCount, Kind: "time_entry", Where: map[string]any{"taskId": "$t"}, Count: 2}))
	assert.NoError(t, e.assert(nil, Assertion{Type: AssertStateCount, Kind: "time_entry", Where: map[string]any{"taskId": "other"}, Count: 0}))

	err := e.assert(nil, Assertion{Type: AssertStateCount, Kind: "time_entry", Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 1 time_entry records")
}

func TestEvaluate_CollectsFailures(t *testing.T) {
	e, _ := newEvaluator(t)
	errs := e.evaluate(nil, []Assertion{
		{Type: AssertTraceCount, Op: OpCreate, Count: 0},
		{Type: AssertTraceContains, Op: OpCreate},
		{Type: AssertFinalState, Kind: "task", ID: "$missing", Expect: map[string]any{"a": 1}},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertion[1] trace_contains")
	assert.Contains(t, errs[1], `unknown alias "$missing"`)
}

func TestResolveAlias(t *testing.T) {
	aliases := map[string]string{"p": "id-0001"}

	got, err := resolveAlias("$p", aliases)
	require.NoError(t, err)
	assert.Equal(t, "id-0001", got)

	got, err = resolveAlias("plain", aliases)
	require.NoError(t, err)
	assert.Equal(t, "plain", got)

	got, err = resolveAlias("$", aliases)
	require.NoError(t, err)
	assert.Equal(t, "$", got)
}
