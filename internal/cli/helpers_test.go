package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/queryir"
	"github.com/roach88/artifacts/internal/store"
)

const validRules = `
package rules

rule: "r-static": {
	name:          "Identity document"
	artifact_type: "identity"
	parent_record: "incident"
	mandatory:     true
}

rule: "r-priority": {
	name:                "Priority evidence"
	parent_record:       "incident"
	condition_attribute: "priority"
	success_indicator:   "High"
}

labels: incident: priority: "2": "High"
`

// writeRules writes body as rules.cue in a fresh directory.
func writeRules(t *testing.T, body string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "rules")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.cue"), []byte(body), 0644))
	return dir
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// executeJSON runs the root command with --format json and decodes the
// response envelope.
func executeJSON(t *testing.T, args ...string) (CLIResponse, error) {
	t.Helper()
	out, err := execute(t, append([]string{"--format", "json"}, args...)...)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp, err
}

// decodeData re-decodes resp.Data into v.
func decodeData(t *testing.T, resp CLIResponse, v any) {
	t.Helper()
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

// seededDB returns a database with the valid rules loaded and incident
// case-1 at priority 2.
func seededDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "artifacts.db")
	_, err := execute(t, "--db", db, "rules", "load", writeRules(t, validRules))
	require.NoError(t, err)

	withStore(t, db, func(s *store.Store) {
		require.NoError(t, s.Put(context.Background(), ir.Record{
			Type: ir.TypeCase, ID: "case-1",
			Attributes: ir.Attributes{"priority": ir.Option(2)},
		}))
	})
	return db
}

func withStore(t *testing.T, db string, fn func(s *store.Store)) {
	t.Helper()
	s, err := store.Open(db)
	require.NoError(t, err)
	defer s.Close()
	fn(s)
}

func artifactsOf(t *testing.T, db, lookup, id string) []ir.Record {
	t.Helper()
	var recs []ir.Record
	withStore(t, db, func(s *store.Store) {
		var err error
		recs, err = s.Query(context.Background(), queryir.Select{
			Type:    ir.TypeArtifact,
			Filter:  queryir.RefEq(lookup, id),
			OrderBy: queryir.Earliest(),
		})
		require.NoError(t, err)
	})
	return recs
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}
