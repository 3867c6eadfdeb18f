package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/roach88/sprintledger/internal/apperr"
	"github.com/roach88/sprintledger/internal/clock"
	"github.com/roach88/sprintledger/internal/entity"
	"github.com/roach88/sprintledger/internal/record"
	"github.com/roach88/sprintledger/internal/tracker"
)

type handlers struct {
	svc     *tracker.Service
	log     zerolog.Logger
	clock   clock.Clock
	started time.Time
}

func (h *handlers) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Agile Tracker API"})
}

func (h *handlers) health(c *gin.Context) {
	now := clock.Stamp(h.clock.Now())
	if p, ok := h.svc.Store().(record.Pinger); ok {
		if err := p.Ping(c.Request.Context()); err != nil {
			h.log.Warn().Err(err).Msg("health: store ping failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "timestamp": now})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": now})
}

func (h *handlers) status(c *gin.Context) {
	now := h.clock.Now()
	c.JSON(http.StatusOK, gin.H{
		"status":    "operational",
		"version":   Version,
		"uptime":    now.Sub(h.started).Truncate(time.Second).String(),
		"timestamp": clock.Stamp(now),
	})
}

// listFilter reads the query parameters shared by every list route.
func listFilter(c *gin.Context) tracker.ListFilter {
	return tracker.ListFilter{
		ProjectID:  c.Query("project_id"),
		SprintID:   c.Query("sprint_id"),
		TaskID:     c.Query("task_id"),
		AssigneeID: c.Query("assignee_id"),
	}
}

func (h *handlers) list(res resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		recs, err := h.svc.ListBy(c.Request.Context(), res.kind, listFilter(c))
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, recs)
	}
}

func (h *handlers) create(res resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := entity.DecodePatch(res.kind, c.Request.Body)
		if err != nil {
			h.fail(c, err)
			return
		}
		rec, err := h.svc.Create(c.Request.Context(), p)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, rec)
	}
}

func (h *handlers) get(res resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := h.svc.Get(c.Request.Context(), res.kind, c.Param("id"))
		if err != nil {
			h.fail(c, notFoundAs(err, res))
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

func (h *handlers) update(res resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := entity.DecodePatch(res.kind, c.Request.Body)
		if err != nil {
			h.fail(c, err)
			return
		}
		rec, err := h.svc.Update(c.Request.Context(), res.kind, c.Param("id"), p)
		if err != nil {
			h.fail(c, notFoundAs(err, res))
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

func (h *handlers) delete(res resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		body := gin.H{"message": res.label + " deleted successfully"}
		if res.kind == entity.KindTimeEntry {
			effect, err := h.svc.DeleteTimeEntry(c.Request.Context(), id)
			if err != nil {
				h.fail(c, notFoundAs(err, res))
				return
			}
			body["effect"] = effect
		} else {
			report, err := h.svc.Delete(c.Request.Context(), res.kind, id)
			if err != nil {
				h.fail(c, notFoundAs(err, res))
				return
			}
			body["cascade"] = report.Steps
		}
		c.JSON(http.StatusOK, body)
	}
}

func (h *handlers) recalculateSprint(c *gin.Context) {
	sum, err := h.svc.RecalculateSprint(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, notFoundAs(err, resource{label: "Sprint"}))
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *handlers) recalculateAll(c *gin.Context) {
	sums, err := h.svc.RecalculateAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sums)
}

// notFoundAs rewrites the target's NOT_FOUND message with the resource label,
// e.g. "Sprint not found". Other errors pass through.
func notFoundAs(err error, res resource) error {
	if !apperr.IsNotFound(err) {
		return err
	}
	return &apperr.Error{Code: apperr.CodeNotFound, Message: res.label + " not found", Cause: err}
}
