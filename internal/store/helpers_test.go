package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/testutil"
)

// createTestStore opens a fresh store in a temp dir with deterministic ids
// and timestamps.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithIDGenerator(testutil.NewSequenceGenerator("rec")),
		WithClock(testutil.NewDeterministicClock()),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustCreate creates a record and returns its id.
func mustCreate(t *testing.T, s *Store, recordType string, attrs ir.Attributes) string {
	t.Helper()
	id, err := s.Create(context.Background(), ir.Record{Type: recordType, Attributes: attrs})
	require.NoError(t, err)
	return id
}
