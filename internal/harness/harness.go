package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"

	"github.com/roach88/artifacts/internal/compiler"
	"github.com/roach88/artifacts/internal/config"
	"github.com/roach88/artifacts/internal/engine"
	"github.com/roach88/artifacts/internal/hooks"
	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/queryir"
	"github.com/roach88/artifacts/internal/store"
	"github.com/roach88/artifacts/internal/testutil"
)

// Harness is the scenario execution environment: one store with the engine
// and hooks wired the way the server wires them.
type Harness struct {
	store   *store.Store
	engine  *engine.Engine
	cleaner *hooks.Cleaner
	uploads *hooks.Uploads
	config  *config.Config
	logger  *slog.Logger
}

// Option configures a run.
type Option func(*options)

type options struct {
	rules  []ir.ArtifactRule
	labels []ir.OptionLabel
	logger *slog.Logger
}

// WithRules stores rules in addition to the scenario's own, e.g. rules
// compiled from a CUE directory.
func WithRules(rules []ir.ArtifactRule) Option {
	return func(o *options) { o.rules = append(o.rules, rules...) }
}

// WithLabels stores option labels in addition to the scenario's own.
func WithLabels(labels []ir.OptionLabel) Option {
	return func(o *options) { o.labels = append(o.labels, labels...) }
}

// WithLogger routes engine and hook logs. Default: discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// A returned error means the scenario could not be set up or executed;
// failed expectations are reported in the Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	st, err := store.Open(":memory:",
		store.WithIDGenerator(testutil.NewSequenceGenerator("art")),
		store.WithClock(testutil.NewDeterministicClock()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	cfg := config.Default()
	maps.Copy(cfg.Bindings, scenario.Config.Bindings)
	maps.Copy(cfg.Cascade, scenario.Config.Cascade)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scenario config: %w", err)
	}

	h := &Harness{
		store:   st,
		engine:  engine.New(st, engine.WithLogger(o.logger)),
		cleaner: hooks.NewCleaner(st, o.logger),
		uploads: hooks.NewUploads(st, o.logger),
		config:  cfg,
		logger:  o.logger,
	}

	ctx := context.Background()
	if err := h.seed(ctx, scenario, o); err != nil {
		return nil, fmt.Errorf("failed to seed store: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		event, err := h.executeStep(ctx, i, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Event, err)
		}
		result.Trace = append(result.Trace, event)

		want := OutcomeOK
		if step.ExpectError != "" {
			want = step.ExpectError
		}
		if event.Outcome != want {
			result.AddError(fmt.Sprintf("step %d (%s %s/%s): outcome %s, want %s",
				i, step.Event, step.RecordType, step.RecordID, event.Outcome, want))
		}
	}

	artifacts, err := st.Query(ctx, queryir.Select{Type: ir.TypeArtifact, OrderBy: queryir.Earliest()})
	if err != nil {
		return nil, fmt.Errorf("failed to read artifacts: %w", err)
	}
	result.Artifacts = append(result.Artifacts, artifacts...)

	for _, msg := range EvaluateAssertions(ctx, st, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// seed stores labels, rules and records, in that order. Rules are
// validated first so a scenario cannot exercise a rule the loader would
// refuse.
func (h *Harness) seed(ctx context.Context, scenario *Scenario, o options) error {
	rules := append(append([]ir.ArtifactRule{}, o.rules...), scenario.Rules...)
	if errs := compiler.ValidateAll(rules); len(errs) > 0 {
		return fmt.Errorf("invalid rules: %w", errs[0])
	}

	for _, l := range append(append([]ir.OptionLabel{}, o.labels...), scenario.Labels...) {
		if err := h.store.PutOptionLabel(ctx, l); err != nil {
			return err
		}
	}
	for _, rule := range rules {
		if err := h.store.Put(ctx, rule.Record()); err != nil {
			return fmt.Errorf("rule %s: %w", rule.ID, err)
		}
	}
	for i, spec := range scenario.Records {
		attrs, err := convertAttributes(spec.Attributes)
		if err != nil {
			return fmt.Errorf("records[%d]: %w", i, err)
		}
		if err := h.store.Put(ctx, ir.Record{Type: spec.Type, ID: spec.ID, Attributes: attrs}); err != nil {
			return fmt.Errorf("records[%d]: %w", i, err)
		}
	}
	return nil
}

// executeStep runs one host event. Engine and hook failures become the
// event's outcome; only malformed steps return an error.
func (h *Harness) executeStep(ctx context.Context, index int, step Step) (TraceEvent, error) {
	event := TraceEvent{
		Step:       index,
		Event:      step.Event,
		RecordType: step.RecordType,
		RecordID:   step.RecordID,
		Outcome:    OutcomeOK,
	}
	t := h.config.Trigger(step.RecordType, step.RecordID)

	var err error
	switch step.Event {
	case EventCreated:
		if step.DryRun {
			var plan engine.Plan
			plan, err = h.engine.PlanCreated(ctx, t)
			event.Plan = &plan
		} else {
			err = h.engine.OnRecordCreated(ctx, t)
		}

	case EventChanged:
		changed, convErr := convertAttributes(step.Changed)
		if convErr != nil {
			return event, fmt.Errorf("changed: %w", convErr)
		}
		// The host commits the change before notifying.
		err = h.store.Update(ctx, ir.Record{Type: step.RecordType, ID: step.RecordID, Attributes: changed})
		if err != nil {
			break
		}
		if step.DryRun {
			var plan engine.Plan
			plan, err = h.engine.PlanChanged(ctx, t, changed)
			event.Plan = &plan
		} else {
			err = h.engine.OnRecordChanged(ctx, t, changed)
		}

	case EventDeleting:
		event.Deleted, err = h.cleaner.OnRecordDeleting(ctx, step.RecordType, step.RecordID,
			h.config.CascadeField(step.RecordType))
		if err == nil {
			err = h.store.Delete(ctx, step.RecordType, step.RecordID)
		}

	case EventAnnotated:
		event.RecordType = ir.TypeAnnotation
		event.RecordID = step.AnnotationID
		var upload hooks.UploadResult
		upload, err = h.uploads.OnAnnotationCreated(ctx, step.AnnotationID)
		if err == nil {
			event.Upload = &upload
		}

	default:
		return event, fmt.Errorf("unknown event %q", step.Event)
	}

	if err != nil {
		event.Outcome = errorCode(err)
		event.Plan = nil
		h.logger.Debug("step failed", "step", index, "event", step.Event, "outcome", event.Outcome, "error", err)
	}
	return event, nil
}

// errorCode names a step failure the way the HTTP hooks report it.
func errorCode(err error) string {
	var (
		ee *engine.ExecutionError
		de *store.DataAccessError
	)
	switch {
	case errors.As(err, &ee):
		return string(ee.Code)
	case errors.Is(err, hooks.ErrCascadeNotConfigured):
		return "NOT_CONFIGURED"
	case errors.As(err, &de):
		return string(engine.ErrCodeDataAccess)
	default:
		return string(engine.ErrCodeEvaluationAbort)
	}
}
