package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ogm/internal/store"
)

const teamObjects = `
objects:
  - class: Person
    id: ada
    fields:
      name: Ada
      score: 90
      manager: {ref: grace}
      address: {fields: {street: Main St, city: London}}
      tasks:
        - {fields: {title: compile, done: true}}
  - class: Employee
    id: grace
    fields:
      name: Grace
      salary: 1200.5
`

func saveCommand(format string) func(t *testing.T, args ...string) (string, error) {
	opts := &RootOptions{Format: format}
	return func(t *testing.T, args ...string) (string, error) {
		return execute(t, NewSaveCommand(opts), args...)
	}
}

func TestSaveToDatabase(t *testing.T) {
	objects := writeFile(t, "objects.yaml", teamObjects)
	db := filepath.Join(t.TempDir(), "graph.db")

	run := saveCommand("text")
	out, err := run(t, "--schema", schemaDir, "--db", db, objects)
	require.NoError(t, err)
	// ada, grace, one task; the address is embedded.
	assert.Equal(t, "✓ Saved 2 object(s): 3 node(s), 2 edge(s)\n", out)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Nodes)
	assert.Equal(t, 2, stats.Edges)
}

func TestSaveJSON(t *testing.T) {
	objects := writeFile(t, "objects.yaml", teamObjects)
	db := filepath.Join(t.TempDir(), "graph.db")

	run := saveCommand("json")
	out, err := run(t, "--schema", schemaDir, "--db", db, objects)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   SaveResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Objects)
	assert.Equal(t, 3, resp.Data.Nodes)
	assert.Positive(t, resp.Data.Properties)
	assert.False(t, resp.Data.DryRun)
}

func TestSaveDryRun(t *testing.T) {
	objects := writeFile(t, "objects.yaml", teamObjects)

	run := saveCommand("text")
	out, err := run(t, "--schema", schemaDir, "--dry-run", objects)
	require.NoError(t, err)
	assert.Equal(t, "✓ Dry run saved 2 object(s): 3 node(s), 2 edge(s)\n", out)
}

func TestSaveRequiresDatabase(t *testing.T) {
	objects := writeFile(t, "objects.yaml", teamObjects)

	run := saveCommand("text")
	_, err := run(t, "--schema", schemaDir, objects)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--db is required")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSaveRejectedObjectWritesNothing(t *testing.T) {
	objects := writeFile(t, "objects.yaml", `
objects:
  - class: Person
    fields:
      name: Ada
  - class: Person
    fields:
      tasks: [{fields: {title: a}}, null]
`)
	db := filepath.Join(t.TempDir(), "graph.db")

	run := saveCommand("text")
	out, err := run(t, "--schema", schemaDir, "--db", db, objects)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeUnsupportedField)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E020]")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Nodes)
}

func TestSaveUnknownReference(t *testing.T) {
	objects := writeFile(t, "objects.yaml", `
objects:
  - class: Person
    fields:
      manager: {ref: nobody}
`)
	run := saveCommand("text")
	_, err := run(t, "--schema", schemaDir, "--dry-run", objects)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeUnknownRef)
}

func TestSaveUnopenableDatabase(t *testing.T) {
	objects := writeFile(t, "objects.yaml", teamObjects)

	run := saveCommand("text")
	_, err := run(t, "--schema", schemaDir, "--db", "/nonexistent/dir/graph.db", objects)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeStorage)
}
