// Package tracker exposes the tracker's logical operations.
//
// Service owns no rules of its own beyond wiring: deletes go through the
// cascade engine, time entries through the ledger, and every change to a
// work item's status, actual hours, or sprint triggers a synchronous
// accepted-points recalculation for the affected sprints.
//
// Operations are best effort across records. See package ledger for the
// consistency contract.
package tracker

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/sprintledger/internal/cascade"
	"github.com/roach88/sprintledger/internal/clock"
	"github.com/roach88/sprintledger/internal/entity"
	"github.com/roach88/sprintledger/internal/ledger"
	"github.com/roach88/sprintledger/internal/metrics"
	"github.com/roach88/sprintledger/internal/record"
)

const tracerName = "github.com/roach88/sprintledger/internal/tracker"

// Service implements the tracker operations over a record.Store.
type Service struct {
	store    record.Store
	registry *entity.Registry
	cascade  *cascade.Engine
	ledger   *ledger.Ledger
	metrics  *metrics.Calculator

	clock     clock.Clock
	ids       IDGenerator
	log       zerolog.Logger
	tracer    trace.Tracer
	checkRefs bool
}

type options struct {
	clock     clock.Clock
	ids       IDGenerator
	log       zerolog.Logger
	tracer    trace.Tracer
	checkRefs bool
}

// Option configures a Service.
type Option func(*options)

// WithClock sets the timestamp source. Defaults to clock.System.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDGenerator sets the id source. Defaults to UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithLogger sets the logger. Defaults to zerolog.Nop.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithTracer sets the tracer. Defaults to the global otel provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithReferenceChecks toggles existence checks on reference fields during
// create and update. On by default.
func WithReferenceChecks(on bool) Option {
	return func(o *options) { o.checkRefs = on }
}

// New creates a Service. The store is owned by the caller.
func New(store record.Store, opts ...Option) *Service {
	o := options{
		clock:     clock.System{},
		ids:       UUIDv7Generator{},
		log:       zerolog.Nop(),
		checkRefs: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	registry := entity.Default()
	calc := metrics.NewCalculator(store, o.clock, o.log.With().Str("component", "metrics").Logger())
	return &Service{
		store:     store,
		registry:  registry,
		cascade:   cascade.New(store, registry, o.clock, o.log.With().Str("component", "cascade").Logger()),
		ledger:    ledger.New(store, calc, o.clock, o.log.With().Str("component", "ledger").Logger()),
		metrics:   calc,
		clock:     o.clock,
		ids:       o.ids,
		log:       o.log,
		tracer:    o.tracer,
		checkRefs: o.checkRefs,
	}
}

// Store returns the underlying store.
func (s *Service) Store() record.Store {
	return s.store
}

func (s *Service) start(ctx context.Context, op string, kind entity.Kind, id string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("entity.kind", string(kind))}
	if id != "" {
		attrs = append(attrs, attribute.String("entity.id", id))
	}
	return s.tracer.Start(ctx, "tracker."+op, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	return err
}

func (s *Service) now() record.Value {
	return record.String(clock.Stamp(s.clock.Now()))
}
