package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/queryir"
)

// RecordStore is the record store the engine reads and writes through.
// Implemented by *store.Store.
type RecordStore interface {
	Retrieve(ctx context.Context, recordType, id string, fields ...string) (ir.Record, error)
	Query(ctx context.Context, q queryir.Select) ([]ir.Record, error)
	Create(ctx context.Context, rec ir.Record) (string, error)
	Update(ctx context.Context, partial ir.Record) error
	Delete(ctx context.Context, recordType, id string) error
	ExecuteBatch(ctx context.Context, reqs []ir.Request, continueOnError bool) (ir.BatchResult, error)
	ResolveOptionLabel(ctx context.Context, recordType, attribute string, code int64) (string, error)
}

// Trigger identifies the record an invocation is about.
//
// CaseLookupField and ArtifactLookupField are only read for generic related
// record types: the attribute on the record that references its case, and
// the attribute on artifacts that references the record.
type Trigger struct {
	RecordType          string `json:"record_type"`
	RecordID            string `json:"record_id"`
	CaseLookupField     string `json:"case_lookup,omitempty"`
	ArtifactLookupField string `json:"artifact_lookup,omitempty"`
}

// Observer receives evaluation metrics. Implemented by metrics.Recorder.
type Observer interface {
	ObserveEvaluation(event, recordType, outcome string, elapsed time.Duration)
	ObserveApplied(applied Applied)
	ObserveBatchFailure(op ir.RequestOp)
}

type nopObserver struct{}

func (nopObserver) ObserveEvaluation(string, string, string, time.Duration) {}
func (nopObserver) ObserveApplied(Applied) {}
func (nopObserver) ObserveBatchFailure(ir.RequestOp) {}

// Evaluation outcomes reported to the Observer.
const (
	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Event names.
const (
	EventCreated = "created"
	EventChanged = "changed"
)

const tracerName = "github.com/roach88/artifacts/internal/engine"

// Engine reconciles artifact records for one triggering change at a time.
//
// An Engine holds no state between invocations; it is safe to share across
// goroutines as long as the RecordStore is.
type Engine struct {
	store        RecordStore
	rules        *RuleRepository
	identities   *IdentityResolver
	associations *AssociationResolver
	logger       *slog.Logger
	tracer       trace.Tracer
	observer     Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracer sets the tracer. Default: the global OpenTelemetry provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// New creates an Engine over s.
func New(s RecordStore, opts ...Option) *Engine {
	e := &Engine{
		store:        s,
		rules:        NewRuleRepository(s),
		identities:   NewIdentityResolver(s),
		associations: NewAssociationResolver(s),
		logger:       slog.Default(),
		tracer:       otel.Tracer(tracerName),
		observer:     nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnRecordCreated reconciles artifacts for a newly created record.
// Returns nil on success or when the record type is not configured, and an
// *ExecutionError otherwise.
func (e *Engine) OnRecordCreated(ctx context.Context, t Trigger) error {
	return e.run(ctx, EventCreated, t, func(ctx context.Context, ec *evalContext) (Plan, error) {
		return e.planCreate(ctx, ec)
	})
}

// OnRecordChanged reconciles artifacts after the attributes in changed were
// modified on the record. changed carries the new values only; clearing an
// attribute is an explicit ir.Null.
func (e *Engine) OnRecordChanged(ctx context.Context, t Trigger, changed ir.Attributes) error {
	return e.run(ctx, EventChanged, t, func(ctx context.Context, ec *evalContext) (Plan, error) {
		return e.planUpdate(ctx, ec, changed)
	})
}

// PlanCreated returns what OnRecordCreated would do without writing.
func (e *Engine) PlanCreated(ctx context.Context, t Trigger) (Plan, error) {
	return e.dryRun(ctx, t, func(ctx context.Context, ec *evalContext) (Plan, error) {
		return e.planCreate(ctx, ec)
	})
}

// PlanChanged returns what OnRecordChanged would do without writing.
func (e *Engine) PlanChanged(ctx context.Context, t Trigger, changed ir.Attributes) (Plan, error) {
	return e.dryRun(ctx, t, func(ctx context.Context, ec *evalContext) (Plan, error) {
		return e.planUpdate(ctx, ec, changed)
	})
}

type planFunc func(ctx context.Context, ec *evalContext) (Plan, error)

func (e *Engine) dryRun(ctx context.Context, t Trigger, plan planFunc) (Plan, error) {
	ec, err := e.load(ctx, t)
	if errors.Is(err, ErrLookupNotConfigured) {
		return Plan{Skipped: true}, nil
	}
	if err != nil {
		return Plan{}, newExecutionError(t, err)
	}
	p, err := plan(ctx, ec)
	if err != nil {
		return Plan{}, newExecutionError(t, err)
	}
	return p, nil
}

// run is the shared two-phase protocol: load, plan, apply.
func (e *Engine) run(ctx context.Context, event string, t Trigger, plan planFunc) error {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "engine."+event, trace.WithAttributes(
		attribute.String("record.type", t.RecordType),
		attribute.String("record.id", t.RecordID),
	))
	defer span.End()

	log := e.logger.With("event", event, "record_type", t.RecordType, "record_id", t.RecordID)

	outcome := OutcomeApplied
	defer func() {
		e.observer.ObserveEvaluation(event, t.RecordType, outcome, time.Since(start))
	}()

	fail := func(cause error) error {
		outcome = OutcomeFailed
		ee := newExecutionError(t, cause)
		span.RecordError(ee)
		span.SetStatus(codes.Error, string(ee.Code))
		log.Error("evaluation aborted", "code", ee.Code, "error", cause)
		return ee
	}

	ec, err := e.load(ctx, t)
	if errors.Is(err, ErrLookupNotConfigured) {
		outcome = OutcomeSkipped
		log.Debug("lookup fields not configured, skipping")
		return nil
	}
	if err != nil {
		return fail(err)
	}
	span.SetAttributes(
		attribute.Int("rules", len(ec.rules)),
		attribute.Int("artifacts.existing", len(ec.existing)),
	)

	p, err := plan(ctx, ec)
	if err != nil {
		return fail(err)
	}

	applied, err := e.apply(ctx, p)
	e.observer.ObserveApplied(applied)
	if err != nil {
		return fail(err)
	}

	span.SetAttributes(
		attribute.Int("artifacts.created", len(applied.Created)),
		attribute.Int("artifacts.updated", applied.Updated),
		attribute.Int("artifacts.deleted", applied.Deleted),
	)
	log.Info("artifacts reconciled",
		"rules", len(ec.rules),
		"created", len(applied.Created),
		"updated", applied.Updated,
		"deleted", applied.Deleted,
		"failed", applied.Failed,
		"non_applicable", len(p.NonApplicable))
	return nil
}
