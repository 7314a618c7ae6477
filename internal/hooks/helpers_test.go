package hooks

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/store"
	"github.com/roach88/artifacts/internal/testutil"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"),
		store.WithIDGenerator(testutil.NewSequenceGenerator("rec")),
		store.WithClock(testutil.NewDeterministicClock()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func putRecord(t *testing.T, s *store.Store, recordType, id string, attrs ir.Attributes) {
	t.Helper()
	require.NoError(t, s.Put(context.Background(), ir.Record{Type: recordType, ID: id, Attributes: attrs}))
}

// failingDelete fails Delete for one id.
type failingDelete struct {
	*store.Store
	failID string
}

func (f failingDelete) Delete(ctx context.Context, recordType, id string) error {
	if id == f.failID {
		return &store.DataAccessError{Op: "delete", RecordType: recordType, RecordID: id, Err: io.ErrUnexpectedEOF}
	}
	return f.Store.Delete(ctx, recordType, id)
}
