package hooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/queryir"
)

// ErrCascadeNotConfigured is returned when a deleted record type has no
// artifact lookup field configured.
var ErrCascadeNotConfigured = errors.New("cascade lookup field not configured")

// Cleaner deletes the artifacts of a record that is about to be deleted.
// Artifacts hang off several parent types, so the store cannot cascade
// them itself.
type Cleaner struct {
	store  RecordStore
	logger *slog.Logger
}

// NewCleaner creates a Cleaner over s. A nil logger uses slog.Default().
func NewCleaner(s RecordStore, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{store: s, logger: logger}
}

// OnRecordDeleting deletes every artifact whose lookupField references
// recordType/recordID and returns the deleted ids. Deletion stops at the
// first failure; artifacts already deleted stay deleted.
func (c *Cleaner) OnRecordDeleting(ctx context.Context, recordType, recordID, lookupField string) ([]string, error) {
	if lookupField == "" {
		return nil, fmt.Errorf("%s: %w", recordType, ErrCascadeNotConfigured)
	}
	if !queryir.ValidIdent(lookupField) {
		return nil, fmt.Errorf("invalid cascade lookup field %q", lookupField)
	}

	arts, err := c.store.Query(ctx, queryir.Select{
		Type:   ir.TypeArtifact,
		Filter: queryir.RefEq(lookupField, recordID),
		Fields: []string{lookupField},
	})
	if err != nil {
		return nil, fmt.Errorf("find artifacts of %s %s: %w", recordType, recordID, err)
	}

	deleted := make([]string, 0, len(arts))
	for _, art := range arts {
		if err := c.store.Delete(ctx, ir.TypeArtifact, art.ID); err != nil {
			return deleted, fmt.Errorf("delete artifact %s: %w", art.ID, err)
		}
		deleted = append(deleted, art.ID)
	}

	c.logger.Info("artifacts cascaded",
		"record_type", recordType,
		"record_id", recordID,
		"deleted", len(deleted))
	return deleted, nil
}
