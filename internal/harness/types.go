package harness

import (
	"github.com/roach88/artifacts/internal/engine"
	"github.com/roach88/artifacts/internal/hooks"
	"github.com/roach88/artifacts/internal/ir"
)

// OutcomeOK is the outcome of a step that returned no error.
const OutcomeOK = "ok"

// TraceEvent records what one step did.
type TraceEvent struct {
	Step       int                 `json:"step"`
	Event      string              `json:"event"`
	RecordType string              `json:"record_type,omitempty"`
	RecordID   string              `json:"record_id,omitempty"`
	Outcome    string              `json:"outcome"`
	Plan       *engine.Plan        `json:"plan,omitempty"` // dry runs only
	Deleted    []string            `json:"deleted,omitempty"`
	Upload     *hooks.UploadResult `json:"upload,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step had its expected outcome and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace has one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Artifacts is the final artifact set, oldest first.
	Artifacts []ir.Record `json:"artifacts"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Errors:    []string{},
		Artifacts: []ir.Record{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
