package hooks

import (
	"context"

	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/queryir"
)

// RecordStore is the subset of the record store the hooks need.
// Implemented by *store.Store.
type RecordStore interface {
	Retrieve(ctx context.Context, recordType, id string, fields ...string) (ir.Record, error)
	Query(ctx context.Context, q queryir.Select) ([]ir.Record, error)
	Update(ctx context.Context, partial ir.Record) error
	Delete(ctx context.Context, recordType, id string) error
}
