// Package httpapi serves tracker operations over HTTP with gin.
//
// Routes live under /api. Bodies are JSON objects shaped like the entity
// patches; unknown fields are rejected. Failures are reported as
// {"code": ..., "detail": ...} with NOT_FOUND → 404, VALIDATION → 400 and
// STORE_UNAVAILABLE → 503.
package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/roach88/sprintledger/internal/clock"
	"github.com/roach88/sprintledger/internal/entity"
	"github.com/roach88/sprintledger/internal/tracker"
)

// Version is reported by /api/status.
var Version = "1.0.0"

// Options configures the router.
type Options struct {
	Dev            bool
	RequestTimeout time.Duration
	CORSOrigins    []string
	Clock          clock.Clock
}

// resource binds a URL segment to an entity kind.
type resource struct {
	path  string
	kind  entity.Kind
	label string
	// immutable resources have no PUT route
	immutable bool
}

var resources = []resource{
	{path: "projects", kind: entity.KindProject, label: "Project"},
	{path: "sprints", kind: entity.KindSprint, label: "Sprint"},
	{path: "tasks", kind: entity.KindTask, label: "Task"},
	{path: "bugs", kind: entity.KindBug, label: "Bug"},
	{path: "team", kind: entity.KindTeamMember, label: "Team member"},
	{path: "time-entries", kind: entity.KindTimeEntry, label: "Time entry", immutable: true},
}

// NewRouter builds the gin engine for svc.
func NewRouter(svc *tracker.Service, log zerolog.Logger, opts Options) *gin.Engine {
	if !opts.Dev {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLog(log))
	r.Use(cors(opts.CORSOrigins))
	if opts.RequestTimeout > 0 {
		r.Use(timeout(opts.RequestTimeout))
	}

	h := &handlers{svc: svc, log: log, clock: opts.Clock, started: opts.Clock.Now()}

	api := r.Group("/api")
	api.GET("", h.root)
	api.GET("/health", h.health)
	api.GET("/status", h.status)
	api.POST("/recalculate", h.recalculateAll)
	api.POST("/sprints/:id/recalculate", h.recalculateSprint)

	for _, res := range resources {
		g := api.Group("/" + res.path)
		g.GET("", h.list(res))
		g.POST("", h.create(res))
		g.GET("/:id", h.get(res))
		if !res.immutable {
			g.PUT("/:id", h.update(res))
		}
		g.DELETE("/:id", h.delete(res))
	}
	return r
}
