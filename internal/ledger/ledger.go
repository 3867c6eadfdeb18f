// Package ledger maintains work-item actual hours from time entries.
//
// Hours are rolled into a work item only while its status is Done: an entry
// logged against an unfinished item is stored but not counted, and removing
// an entry from an unfinished item does not subtract. Totals are adjusted by
// direct add/subtract and never drop below zero.
//
// Consistency is best effort. The entry write and the aggregate write are
// separate store calls; when the aggregate write fails the caller gets a
// STORE_UNAVAILABLE error and the entry write has already happened.
// Aggregate updates for one work item are serialized in-process by a
// KeyedMutex; instances sharing a store can still lose updates.
package ledger

import (
	"context"
	"errors"
	"math"

	"github.com/rs/zerolog"

	"github.com/roach88/sprintledger/internal/apperr"
	"github.com/roach88/sprintledger/internal/clock"
	"github.com/roach88/sprintledger/internal/entity"
	"github.com/roach88/sprintledger/internal/metrics"
	"github.com/roach88/sprintledger/internal/record"
)

// Effect describes what an entry write did to its work item.
type Effect struct {
	WorkItemKind entity.Kind `json:"workItemKind"`
	WorkItemID   string      `json:"workItemId"`

	// Resolved is false when the work item does not exist.
	Resolved bool `json:"resolved"`
	// Applied is true when actualHours was changed.
	Applied bool `json:"applied"`

	PreviousHours float64 `json:"previousHours"`
	ActualHours   float64 `json:"actualHours"`

	// Points is set when the owning sprint was recalculated.
	Points *metrics.Summary `json:"points,omitempty"`
}

// Ledger applies time entries to work items.
type Ledger struct {
	store   record.Store
	metrics *metrics.Calculator
	clock   clock.Clock
	log     zerolog.Logger
	locks   *KeyedMutex
}

// New creates a Ledger. calc may be nil to skip sprint recalculation.
func New(store record.Store, calc *metrics.Calculator, clk clock.Clock, log zerolog.Logger) *Ledger {
	return &Ledger{
		store:   store,
		metrics: calc,
		clock:   clk,
		log:     log,
		locks:   NewKeyedMutex(),
	}
}

// Locks exposes the per-key lock so other writers of actualHours
// (direct work-item updates) can serialize with the ledger.
func (l *Ledger) Locks() *KeyedMutex {
	return l.locks
}

// WorkItemKey is the lock key for a work item.
func WorkItemKey(kind entity.Kind, id string) string {
	return string(kind) + "/" + id
}

// Create stores entry and, if its work item is Done, adds the entry's hours.
// entry must be fully formed (id, timestamps, discriminator pair).
//
// The stored entry is returned even when the aggregate step fails.
func (l *Ledger) Create(ctx context.Context, entry record.Record) (record.Record, Effect, error) {
	view := entity.TimeEntryOf(entry)
	effect := Effect{WorkItemKind: view.WorkItemKind(), WorkItemID: view.WorkItemID}

	stored, err := l.store.Insert(ctx, entity.KindTimeEntry.Collection(), entry)
	if err != nil {
		return nil, effect, apperr.FromStore("insert time entry", string(entity.KindTimeEntry), view.ID, err)
	}

	sprintID, err := l.adjust(ctx, &effect, view.Hours)
	if err != nil {
		return stored, effect, err
	}
	if err := l.recalculate(ctx, &effect, sprintID); err != nil {
		return stored, effect, err
	}

	l.log.Info().
		Str("id", view.ID).
		Str("work_item", effect.WorkItemID).
		Bool("applied", effect.Applied).
		Float64("hours", view.Hours).
		Msg("time entry created")
	return stored, effect, nil
}

// Delete subtracts the entry's hours from its Done work item (floored at
// zero), then removes the entry. Returns NOT_FOUND if the entry is absent.
func (l *Ledger) Delete(ctx context.Context, id string) (Effect, error) {
	// entry lock first, then work-item lock: a fixed order keeps concurrent
	// deletes of the same entry from subtracting twice
	unlockEntry := l.locks.Lock(WorkItemKey(entity.KindTimeEntry, id))
	defer unlockEntry()

	rec, err := l.store.GetOne(ctx, entity.KindTimeEntry.Collection(), id)
	if err != nil {
		return Effect{}, apperr.FromStore("get time entry", string(entity.KindTimeEntry), id, err)
	}
	view := entity.TimeEntryOf(rec)
	effect := Effect{WorkItemKind: view.WorkItemKind(), WorkItemID: view.WorkItemID}

	sprintID, err := l.adjust(ctx, &effect, -view.Hours)
	if err != nil {
		return effect, err
	}

	if err := l.store.DeleteOne(ctx, entity.KindTimeEntry.Collection(), id); err != nil {
		return effect, apperr.FromStore("delete time entry", string(entity.KindTimeEntry), id, err)
	}

	if err := l.recalculate(ctx, &effect, sprintID); err != nil {
		return effect, err
	}

	l.log.Info().
		Str("id", id).
		Str("work_item", effect.WorkItemID).
		Bool("applied", effect.Applied).
		Float64("hours", view.Hours).
		Msg("time entry deleted")
	return effect, nil
}

// adjust adds delta to the work item's actualHours if it exists and is Done.
// Returns the work item's sprint id when hours changed.
func (l *Ledger) adjust(ctx context.Context, effect *Effect, delta float64) (string, error) {
	if effect.WorkItemID == "" {
		return "", nil
	}
	unlock := l.locks.Lock(WorkItemKey(effect.WorkItemKind, effect.WorkItemID))
	defer unlock()

	coll := effect.WorkItemKind.Collection()
	rec, err := l.store.GetOne(ctx, coll, effect.WorkItemID)
	if errors.Is(err, record.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", apperr.FromStore("get work item", string(effect.WorkItemKind), effect.WorkItemID, err)
	}
	effect.Resolved = true

	item := entity.WorkItemOf(effect.WorkItemKind, rec)
	effect.PreviousHours = item.ActualHours
	effect.ActualHours = item.ActualHours
	if !item.Done() {
		return "", nil
	}

	next := math.Max(0, item.ActualHours+delta)
	err = l.store.UpdateFields(ctx, coll, effect.WorkItemID, record.Fields{
		entity.FieldActualHours: record.Number(next),
		entity.FieldUpdatedAt:   record.String(clock.Stamp(l.clock.Now())),
	})
	if err != nil {
		return "", apperr.FromStore("update actual hours", string(effect.WorkItemKind), effect.WorkItemID, err)
	}
	effect.Applied = true
	effect.ActualHours = next
	return item.SprintID, nil
}

func (l *Ledger) recalculate(ctx context.Context, effect *Effect, sprintID string) error {
	if l.metrics == nil || !effect.Applied || sprintID == "" {
		return nil
	}
	sum, ok, err := l.metrics.RecalculateIfExists(ctx, sprintID)
	if err != nil {
		return err
	}
	if ok {
		effect.Points = &sum
	}
	return nil
}
