package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sprintledger/internal/record"
	"github.com/roach88/sprintledger/internal/testutil"
	"github.com/roach88/sprintledger/internal/tracker"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type server struct {
	t      *testing.T
	router *gin.Engine
	clock  *testutil.FixedClock
}

func newServer(t *testing.T, store record.Store) *server {
	t.Helper()
	clk := testutil.NewFixedClock(testutil.Epoch)
	svc := tracker.New(store,
		tracker.WithClock(clk),
		tracker.WithIDGenerator(testutil.NewSequentialIDs("id")),
	)
	return &server{
		t:     t,
		clock: clk,
		router: NewRouter(svc, zerolog.Nop(), Options{
			Dev:            true,
			RequestTimeout: time.Second,
			CORSOrigins:    []string{"*"},
			Clock:          clk,
		}),
	}
}

func (s *server) do(method, path, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *server) object(w *httptest.ResponseRecorder) map[string]any {
	s.t.Helper()
	var out map[string]any
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *server) array(w *httptest.ResponseRecorder) []map[string]any {
	s.t.Helper()
	var out []map[string]any
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// create posts body and returns the new id.
func (s *server) create(path, body string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, path, body)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return s.object(w)["id"].(string)
}

func (s *server) seedSprint() (projectID, sprintID string) {
	projectID = s.create("/api/projects", `{"name":"Apollo","status":"Active","priority":"High","startDate":"2024-01-01","endDate":"2024-06-30"}`)
	sprintID = s.create("/api/sprints", `{"projectId":"`+projectID+`","name":"Sprint 1","status":"Active","startDate":"2024-01-01","endDate":"2024-01-14"}`)
	return projectID, sprintID
}

func TestRootHealthStatus(t *testing.T) {
	s := newServer(t, testutil.NewMemoryStore())

	w := s.do(http.MethodGet, "/api", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Agile Tracker API", s.object(w)["message"])

	w = s.do(http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", s.object(w)["status"])
	assert.Equal(t, "2024-01-01T00:00:00Z", s.object(w)["timestamp"])

	s.clock.Advance(90 * time.Second)
	w = s.do(http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := s.object(w)
	assert.Equal(t, "operational", body["status"])
	assert.Equal(t, Version, body["version"])
	assert.Equal(t, "1m30s", body["uptime"])
}

type downStore struct{ record.Store }

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthReportsStoreDown(t *testing.T) {
	s := newServer(t, downStore{testutil.NewMemoryStore()})
	w := s.do(http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unavailable", s.object(w)["status"])
}

func TestCreateAndGetProject(t *testing.T) {
	s := newServer(t, testutil.NewMemoryStore())
	id, _ := s.seedSprint()

	w := s.do(http.MethodGet, "/api/projects/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := s.object(w)
	assert.Equal(t, "Apollo", body["name"])
	assert.Equal(t, "2024-01-01T00:00:00Z", body["startDate"])
	assert.Nil(t, body["updatedAt"])
}

func TestValidationErrors(t *testing.T) {
	s := newServer(t, testutil.NewMemoryStore())

	cases := map[string]string{
		"unknown field":  `{"name":"x","status":"s","priority":"p","startDate":"2024-01-01","endDate":"2024-01-02","color":"red"}`,
		"missing fields": `{"name":"x"}`,
		"bad date":       `{"name":"x","status":"s","priority":"p","startDate":"someday","endDate":"2024-01-02"}`,
		"empty body":     ``,
		"not an object":  `[1,2]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/api/projects", body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, "VALIDATION", s.object(w)["code"])
		})
	}
}

func TestNotFoundUsesLabel(t *testing.T) {
	s := newServer(t, testutil.NewMemoryStore())

	w := s.do(http.MethodGet, "/api/sprints/nope", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	body := s.object(w)
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.Equal(t, "Sprint not found", body["detail"])

	w = s.do(http.MethodDelete, "/api/team/nope", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Team member not found", s.object(w)["detail"])

	w = s.do(http.MethodPut, "/api/tasks/nope", `{"status":"Done"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimeEntriesHaveNoUpdateRoute(t *testing.T) {
	s := newServer(t, testutil.NewMemoryStore())
	w := s.do(http.MethodPut, "/api/time-entries/x", `{"hours":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAcceptedPointsFlow(t *testing.T) {
	s := newServer(t, testutil.NewMemoryStore())
	projectID, sprintID := s.seedSprint()

	taskID := s.create("/api/tasks", `{"projectId":"`+projectID+`","sprintId":"`+sprintID+`","title":"Build","status":"Done","priority":"High"}`)
	bugID := s.create("/api/bugs", `{"projectId":"`+projectID+`","sprintId":"`+sprintID+`","title":"Crash","status":"Done","priority":"High","severity":"Major"}`)

	s.create("/api/time-entries", `{"taskId":"`+taskID+`","date":"2024-01-02","hours":8}`)
	s.create("/api/time-entries", `{"taskId":"`+bugID+`","isTaskEntry":false,"isBugEntry":true,"date":"2024-01-02","hours":"4"}`)

	w := s.do(http.MethodGet, "/api/sprints/"+sprintID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), s.object(w)["acceptedPoints"])

	w = s.do(http.MethodGet, "/api/bugs/"+bugID, "")
	assert.Equal(t, float64(4), s.object(w)["actualHours"])
}

func TestDeleteTimeEntryReportsEffect(t *testing.T) {
	s := newServer(t, testutil.NewMemoryStore())
	projectID, sprintID := s.seedSprint()
	taskID := s.create("/api/tasks", `{"projectId":"`+projectID+`","sprintId":"`+sprintID+`","title":"Build","status":"Done","priority":"High"}`)
	entryID := s.create("/api/time-entries", `{"taskId":"`+taskID+`","date":"2024-01-02","hours":5}`)

	w := s.do(http.MethodDelete, "/api/time-entries/"+entryID, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := s.object(w)
	assert.Equal(t, "Time entry deleted successfully", body["message"])
	effect := body["effect"].(map[string]any)
	assert.Equal(t, true, effect["applied"])
	assert.Equal(t, float64(0), effect["actualHours"])

	w = s.do(http.MethodGet, "/api/time-entries/"+entryID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteSprintCascades(t *testing.T) {
	s := newServer(t, testutil.NewMemoryStore())
	projectID, sprintID := s.seedSprint()
	taskID := s.create("/api/tasks", `{"projectId":"`+projectID+`","sprintId":"`+sprintID+`","title":"Build","status":"New","priority":"High"}`)

	w := s.do(http.MethodDelete, "/api/sprints/"+sprintID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Sprint deleted successfully", s.object(w)["message"])

	w = s.do(http.MethodGet, "/api/tasks/"+taskID, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := s.object(w)
	assert.Contains(t, body, "sprintId")
	assert.Nil(t, body["sprintId"])
}

func TestListQueryFilters(t *testing.T) {
	s := newServer(t, testutil.NewMemoryStore())
	projectID, sprintID := s.seedSprint()
	memberID := s.create("/api/team", `{"name":"Ada","role":"Developer","capacity":40}`)
	inSprint := s.create("/api/tasks", `{"projectId":"`+projectID+`","sprintId":"`+sprintID+`","title":"a","status":"Done","priority":"Low","assigneeId":"`+memberID+`"}`)
	s.create("/api/tasks", `{"projectId":"`+projectID+`","title":"b","status":"Done","priority":"Low"}`)

	w := s.do(http.MethodGet, "/api/tasks?sprint_id="+sprintID, "")
	require.Equal(t, http.StatusOK, w.Code)
	tasks := s.array(w)
	require.Len(t, tasks, 1)
	assert.Equal(t, inSprint, tasks[0]["id"])
	assert.Equal(t, "Ada", tasks[0]["assignee"])

	s.create("/api/time-entries", `{"taskId":"`+inSprint+`","date":"2024-01-02","hours":1}`)
	w = s.do(http.MethodGet, "/api/time-entries?assignee_id="+memberID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, s.array(w), 1)

	w = s.do(http.MethodGet, "/api/bugs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
}

func TestRenameMemberUpdatesAssignee(t *testing.T) {
	s := newServer(t, testutil.NewMemoryStore())
	projectID, _ := s.seedSprint()
	memberID := s.create("/api/team", `{"name":"Ada","role":"Developer","capacity":40}`)
	taskID := s.create("/api/tasks", `{"projectId":"`+projectID+`","title":"a","status":"New","priority":"Low","assigneeId":"`+memberID+`"}`)

	w := s.do(http.MethodPut, "/api/team/"+memberID, `{"name":"Grace"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/tasks/"+taskID, "")
	assert.Equal(t, "Grace", s.object(w)["assignee"])
}

func TestRecalculateRoutes(t *testing.T) {
	s := newServer(t, testutil.NewMemoryStore())
	_, sprintID := s.seedSprint()

	w := s.do(http.MethodPost, "/api/sprints/"+sprintID+"/recalculate", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, sprintID, s.object(w)["sprintId"])

	w = s.do(http.MethodPost, "/api/sprints/nope/recalculate", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/recalculate", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, s.array(w), 1)
}

func TestStoreFailureIs503(t *testing.T) {
	failing := testutil.NewFailingStore(testutil.NewMemoryStore())
	failing.FailOn(testutil.OpFind, "", errors.New("disk gone"))
	s := newServer(t, failing)

	w := s.do(http.MethodGet, "/api/projects", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "STORE_UNAVAILABLE", s.object(w)["code"])
}

func TestCORSPreflight(t *testing.T) {
	s := newServer(t, testutil.NewMemoryStore())
	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestCORSAllowList(t *testing.T) {
	mw := cors([]string{"http://a.test"})
	r := gin.New()
	r.Use(mw)
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for origin, want := range map[string]string{"http://a.test": "http://a.test", "http://b.test": ""} {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Header().Get("Access-Control-Allow-Origin"), origin)
	}
}

func TestTimeoutSetsDeadline(t *testing.T) {
	r := gin.New()
	r.Use(timeout(50 * time.Millisecond))
	r.GET("/x", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusOfMapsContextErrors(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, statusOf(errors.New("other")))
}
