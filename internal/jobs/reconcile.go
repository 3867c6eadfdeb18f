// Package jobs runs scheduled background work.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/roach88/sprintledger/internal/metrics"
)

// DefaultTimeout bounds one sweep.
const DefaultTimeout = 5 * time.Minute

// Recalculator recomputes every sprint's accepted points.
type Recalculator interface {
	RecalculateAll(ctx context.Context) ([]metrics.Summary, error)
}

// Parser accepts five- or six-field specs and descriptors like "@every 1h".
var Parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Reconciler periodically repairs accepted points that drifted from the
// stored work items, e.g. after a failed aggregate write.
type Reconciler struct {
	svc     Recalculator
	log     zerolog.Logger
	timeout time.Duration
	c       *cron.Cron

	// overlapping ticks are dropped rather than queued
	running sync.Mutex
}

// NewReconciler schedules svc.RecalculateAll on spec. The schedule does not
// run until Start.
func NewReconciler(spec string, svc Recalculator, log zerolog.Logger) (*Reconciler, error) {
	r := &Reconciler{
		svc:     svc,
		log:     log,
		timeout: DefaultTimeout,
		c:       cron.New(cron.WithParser(Parser), cron.WithLocation(time.UTC)),
	}
	if _, err := r.c.AddFunc(spec, r.tick); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return r, nil
}

func (r *Reconciler) Start() { r.c.Start() }

// Stop halts the schedule and waits for a running sweep, bounded by ctx.
func (r *Reconciler) Stop(ctx context.Context) error {
	done := r.c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next reports when the sweep runs next. Zero before Start.
func (r *Reconciler) Next() time.Time {
	entries := r.c.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (r *Reconciler) tick() {
	if !r.running.TryLock() {
		r.log.Info().Msg("reconcile: previous sweep still running")
		return
	}
	defer r.running.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if _, err := r.RunOnce(ctx); err != nil {
		r.log.Error().Err(err).Msg("reconcile: sweep failed")
	}
}

// RunOnce performs one sweep and returns how many sprints changed.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	sums, err := r.svc.RecalculateAll(ctx)
	changed := 0
	for _, s := range sums {
		if s.Changed {
			changed++
		}
	}
	r.log.Info().
		Int("sprints", len(sums)).
		Int("changed", changed).
		Dur("took", time.Since(start)).
		Msg("reconcile: sweep")
	return changed, err
}
