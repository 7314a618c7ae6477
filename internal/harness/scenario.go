package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/artifacts/internal/config"
	"github.com/roach88/artifacts/internal/ir"
)

// Scenario defines a reconciliation scenario: a seeded store, a sequence of
// host events and the state expected afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config adds lookup bindings and cascade fields to the defaults.
	Config ScenarioConfig `yaml:"config,omitempty"`

	// Rules and Labels are stored before the records.
	Rules  []ir.ArtifactRule `yaml:"rules,omitempty"`
	Labels []ir.OptionLabel  `yaml:"labels,omitempty"`

	// Records seed the store.
	Records []RecordSpec `yaml:"records,omitempty"`

	// Steps are the host events, run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// ScenarioConfig overlays config.Default().
type ScenarioConfig struct {
	Bindings map[string]config.Binding `yaml:"bindings,omitempty"`
	Cascade  map[string]string         `yaml:"cascade,omitempty"`
}

// RecordSpec is a seeded record.
type RecordSpec struct {
	Type       string         `yaml:"type"`
	ID         string         `yaml:"id"`
	Attributes map[string]any `yaml:"attributes,omitempty"`
}

// Step is one host event.
type Step struct {
	Event        string         `yaml:"event"`
	RecordType   string         `yaml:"record_type,omitempty"`
	RecordID     string         `yaml:"record_id,omitempty"`
	AnnotationID string         `yaml:"annotation_id,omitempty"`
	Changed      map[string]any `yaml:"changed,omitempty"`

	// DryRun plans a created/changed event without writing artifacts.
	DryRun bool `yaml:"dry_run,omitempty"`

	// ExpectError is the error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step events.
const (
	EventCreated   = "created"
	EventChanged   = "changed"
	EventDeleting  = "deleting"
	EventAnnotated = "annotated"
)

// Assertion validates final state.
type Assertion struct {
	// Type is one of artifact_count, artifact, no_artifact, record.
	Type string `yaml:"type"`

	// Rule, Lookup and Target select artifacts: those referencing Target
	// through the Lookup attribute, optionally created by Rule.
	Rule   string `yaml:"rule,omitempty"`
	Lookup string `yaml:"lookup,omitempty"`
	Target string `yaml:"target,omitempty"`

	// RecordType and RecordID select the record for record assertions.
	RecordType string `yaml:"record_type,omitempty"`
	RecordID   string `yaml:"record_id,omitempty"`

	// Count is the expected number of artifacts (artifact_count).
	Count int `yaml:"count,omitempty"`

	// Expect is a subset of the expected attributes (artifact, record).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertArtifactCount = "artifact_count"
	AssertArtifact      = "artifact"
	AssertNoArtifact    = "no_artifact"
	AssertRecord        = "record"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // typos like "assertion:" fail loudly
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, rec := range s.Records {
		if rec.Type == "" || rec.ID == "" {
			return fmt.Errorf("records[%d]: type and id are required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step) error {
	switch step.Event {
	case EventCreated, EventChanged, EventDeleting:
		if step.RecordType == "" || step.RecordID == "" {
			return fmt.Errorf("steps[%d]: record_type and record_id are required for %s", index, step.Event)
		}
	case EventAnnotated:
		if step.AnnotationID == "" {
			return fmt.Errorf("steps[%d]: annotation_id is required for annotated", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: event is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown event %q", index, step.Event)
	}

	if step.Event == EventChanged && len(step.Changed) == 0 {
		return fmt.Errorf("steps[%d]: changed is required for changed", index)
	}
	if step.DryRun && step.Event != EventCreated && step.Event != EventChanged {
		return fmt.Errorf("steps[%d]: dry_run applies to created and changed only", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertArtifactCount:
		if a.Lookup == "" || a.Target == "" {
			return fmt.Errorf("assertions[%d]: lookup and target are required for artifact_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for artifact_count", index)
		}
	case AssertArtifact, AssertNoArtifact:
		if a.Rule == "" || a.Lookup == "" || a.Target == "" {
			return fmt.Errorf("assertions[%d]: rule, lookup and target are required for %s", index, a.Type)
		}
	case AssertRecord:
		if a.RecordType == "" || a.RecordID == "" {
			return fmt.Errorf("assertions[%d]: record_type and record_id are required for record", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for record", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
