// Package config loads the artifacts service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/artifacts/internal/engine"
	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/queryir"
)

// Defaults.
const (
	DefaultDatabase = "artifacts.db"
	DefaultListen   = ":8080"
	DefaultLogLevel = "info"
)

// Binding names the lookup fields of a generic related record type.
type Binding struct {
	// CaseLookup is the attribute on the record referencing its case.
	CaseLookup string `yaml:"case_lookup"`
	// ArtifactLookup is the attribute on artifacts referencing the record.
	ArtifactLookup string `yaml:"artifact_lookup"`
}

// Config is the service configuration.
type Config struct {
	Database string             `yaml:"database"`
	LogLevel string             `yaml:"log_level"`
	Listen   string             `yaml:"listen"`
	Bindings map[string]Binding `yaml:"bindings"`
	Cascade  map[string]string  `yaml:"cascade"`
}

// Default returns the configuration used when no file is given. Cascading
// cleanup is configured for the three fixed artifact parents.
func Default() *Config {
	return &Config{
		Database: DefaultDatabase,
		LogLevel: DefaultLogLevel,
		Listen:   DefaultListen,
		Bindings: map[string]Binding{},
		Cascade: map[string]string{
			ir.TypeCase:    ir.FieldArtifactCase,
			ir.TypeAccount: ir.FieldArtifactAccount,
			ir.TypeContact: ir.FieldArtifactContact,
		},
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
// An empty path returns Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var problems []string

	if c.Database == "" {
		problems = append(problems, "database is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}

	for _, recordType := range slices.Sorted(maps.Keys(c.Bindings)) {
		b := c.Bindings[recordType]
		switch {
		case isFixedType(recordType):
			problems = append(problems, fmt.Sprintf("bindings.%s: %s uses fixed lookups", recordType, recordType))
		case !queryir.ValidIdent(recordType):
			problems = append(problems, fmt.Sprintf("bindings: %q is not a valid record type", recordType))
		}
		if !queryir.ValidIdent(b.CaseLookup) {
			problems = append(problems, fmt.Sprintf("bindings.%s.case_lookup: %q is not a valid attribute name", recordType, b.CaseLookup))
		}
		if !queryir.ValidIdent(b.ArtifactLookup) {
			problems = append(problems, fmt.Sprintf("bindings.%s.artifact_lookup: %q is not a valid attribute name", recordType, b.ArtifactLookup))
		}
	}

	for _, recordType := range slices.Sorted(maps.Keys(c.Cascade)) {
		if !queryir.ValidIdent(c.Cascade[recordType]) {
			problems = append(problems, fmt.Sprintf("cascade.%s: %q is not a valid attribute name", recordType, c.Cascade[recordType]))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Trigger builds the engine trigger for recordType/recordID, filling the
// lookup fields from the binding when the type has one.
func (c *Config) Trigger(recordType, recordID string) engine.Trigger {
	t := engine.Trigger{RecordType: recordType, RecordID: recordID}
	if b, ok := c.Bindings[recordType]; ok {
		t.CaseLookupField = b.CaseLookup
		t.ArtifactLookupField = b.ArtifactLookup
	}
	return t
}

// CascadeField returns the artifact lookup field deleted along with records
// of recordType, or "" when none is configured.
func (c *Config) CascadeField(recordType string) string {
	if f, ok := c.Cascade[recordType]; ok {
		return f
	}
	if b, ok := c.Bindings[recordType]; ok {
		return b.ArtifactLookup
	}
	return ""
}

// ParseLevel maps a log_level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log_level %q: must be one of debug, info, warn, error", s)
	}
}

func isFixedType(recordType string) bool {
	return recordType == ir.TypeCase || recordType == ir.TypeAccount || recordType == ir.TypeContact
}
