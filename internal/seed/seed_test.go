package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sprintledger/internal/apperr"
	"github.com/roach88/sprintledger/internal/entity"
	"github.com/roach88/sprintledger/internal/testutil"
	"github.com/roach88/sprintledger/internal/tracker"
)

func newService() (*tracker.Service, *testutil.MemoryStore) {
	mem := testutil.NewMemoryStore()
	return tracker.New(mem, tracker.WithIDGenerator(testutil.NewSequentialIDs("id"))), mem
}

func TestDemoParses(t *testing.T) {
	fx, err := Demo()
	require.NoError(t, err)

	assert.Equal(t, 3, fx.Count(entity.KindProject))
	assert.Equal(t, 4, fx.Count(entity.KindSprint))
	assert.Equal(t, 4, fx.Count(entity.KindTeamMember))
	assert.Equal(t, 6, fx.Count(entity.KindTask))
	assert.Equal(t, 3, fx.Count(entity.KindBug))
	assert.Equal(t, 3, fx.Count(entity.KindTimeEntry))

	// dependency order, then declaration order
	assert.Equal(t, "website", fx.Entries[0].Key)
	assert.Equal(t, entity.KindSprint, fx.Entries[3].Kind)
	assert.Equal(t, "sprint1", fx.Entries[3].Key)
}

func TestApplyDemo(t *testing.T) {
	svc, mem := newService()
	ctx := context.Background()
	fx, err := Demo()
	require.NoError(t, err)

	res, err := Apply(ctx, svc, fx)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Created[entity.KindTask])
	assert.Equal(t, 3, mem.Len(entity.KindTimeEntry.Collection()))

	wireframes, err := svc.GetTask(ctx, res.IDs["wireframes"])
	require.NoError(t, err)
	// seeded 10h plus a 2h entry logged while Done
	assert.Equal(t, 12.0, wireframes.Number(entity.FieldActualHours))
	name, _ := wireframes.String(entity.FieldAssignee)
	assert.Equal(t, "Alex Johnson", name)
	sprintID, _ := wireframes.String(entity.FieldSprintID)
	assert.Equal(t, res.IDs["sprint1"], sprintID)

	// sprint1: 12 + 5 + (2 + 1.5) = 20.5h
	s1, err := svc.GetSprint(ctx, res.IDs["sprint1"])
	require.NoError(t, err)
	assert.Equal(t, 3.0, s1.Number(entity.FieldAcceptedPoints))

	// sprint2: 3 + 18, the in-progress bug does not count
	s2, err := svc.GetSprint(ctx, res.IDs["sprint2"])
	require.NoError(t, err)
	assert.Equal(t, 3.0, s2.Number(entity.FieldAcceptedPoints))

	s3, err := svc.GetSprint(ctx, res.IDs["sprint3"])
	require.NoError(t, err)
	assert.Equal(t, 0.0, s3.Number(entity.FieldAcceptedPoints))
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"bad status":    `projects: p: {name: "x", status: "Started", priority: "Low", startDate: "2024-01-01", endDate: "2024-01-02"}`,
		"missing field": `team: m: {name: "x", role: "dev"}`,
		"unknown field": `team: m: {name: "x", role: "dev", capacity: 1, email: "x@y"}`,
		"bad date":      `projects: p: {name: "x", status: "On Hold", priority: "Low", startDate: "soon", endDate: "2024-01-02"}`,
		"zero hours":    `time_entries: e: {taskId: "t", date: "2024-01-01", hours: 0}`,
		"unknown table": `epics: e: {name: "x"}`,
		"syntax":        `projects: {`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse("bad.cue", []byte(src))
			assert.Error(t, err)
		})
	}
}

func TestParseRejectsDuplicateKeys(t *testing.T) {
	src := `
projects: x: {name: "x", status: "On Hold", priority: "Low", startDate: "2024-01-01", endDate: "2024-01-02"}
team: x: {name: "x", role: "dev", capacity: 1}
`
	_, err := Parse("dup.cue", []byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `key "x"`)
}

func TestApplyUnknownReference(t *testing.T) {
	svc, mem := newService()
	fx, err := Parse("ref.cue", []byte(`sprints: s: {projectId: "ghost", name: "S", status: "Active", startDate: "2024-01-01", endDate: "2024-01-14"}`))
	require.NoError(t, err)

	_, err = Apply(context.Background(), svc, fx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown key "ghost"`)
	assert.Equal(t, 0, mem.Len(entity.KindSprint.Collection()))
}

func TestApplySurfacesTrackerErrors(t *testing.T) {
	svc, _ := newService()
	fx, err := Parse("entry.cue", []byte(`
projects: p: {name: "x", status: "On Hold", priority: "Low", startDate: "2024-01-01", endDate: "2024-01-02"}
tasks: t: {projectId: "p", title: "t", status: "Done", priority: "Low"}
time_entries: e: {taskId: "t", date: "2024-01-01", hours: 1, isTaskEntry: true, isBugEntry: true}
`))
	require.NoError(t, err)

	res, err := Apply(context.Background(), svc, fx)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Len(t, res.IDs, 2)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.cue")
	require.NoError(t, os.WriteFile(path, []byte(`team: ada: {name: "Ada", role: "dev", capacity: 10}`), 0o644))

	fx, err := Load(path)
	require.NoError(t, err)
	require.Len(t, fx.Entries, 1)
	assert.Equal(t, "Ada", fx.Entries[0].Body["name"])

	_, err = Load(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}
