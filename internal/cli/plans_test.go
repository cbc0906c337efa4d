package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docmap/internal/testutil"
)

func runPlansCommand(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewPlansCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

// seedStore compiles every model and the Author validator into a new store.
func seedStore(t *testing.T) (string, CompilationResult) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "plans.db")

	buf, err := runCompileCommand(t, "json", testutil.ModelsDir(t), "--store", dbPath)
	require.NoError(t, err)
	var resp compileResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))

	_, err = runValidatorCommand(t, "text", testutil.ModelsDir(t), "--model", "Author", "--store", dbPath)
	require.NoError(t, err)
	return dbPath, resp.Data
}

func TestPlansList(t *testing.T) {
	dbPath, _ := seedStore(t)

	buf, err := runPlansCommand(t, "text", "--store", dbPath)
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "FINGERPRINT")
	assert.Contains(t, output, "Author")
	assert.Contains(t, output, "Comment")
}

func TestPlansListJSONFiltersByModel(t *testing.T) {
	dbPath, compiled := seedStore(t)

	buf, err := runPlansCommand(t, "json", "--store", dbPath, "--model", "Post")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   []PlanEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Post", resp.Data[0].Model)
	assert.Equal(t, compiled.Pipelines[2].Stored.Fingerprint, resp.Data[0].Fingerprint)
	assert.Equal(t, len(compiled.Pipelines[2].Operators), resp.Data[0].StageCount)
}

func TestPlansShowByPrefix(t *testing.T) {
	dbPath, compiled := seedStore(t)
	fp := compiled.Pipelines[0].Stored.Fingerprint

	buf, err := runPlansCommand(t, "text", "--store", dbPath, "--show", fp[:12])
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"$lookup"`)
	assert.Contains(t, buf.String(), `"from": "profiles"`)
}

func TestPlansShowValidator(t *testing.T) {
	dbPath, _ := seedStore(t)

	buf, err := runPlansCommand(t, "json", "--store", dbPath, "--validator", "Author")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Kind     string         `json:"kind"`
			Record   map[string]any `json:"record"`
			Document map[string]any `json:"document"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "validator", resp.Data.Kind)
	assert.Equal(t, "Author", resp.Data.Record["model"])
	assert.Contains(t, resp.Data.Document, "$jsonSchema")
}

func TestPlansNotFound(t *testing.T) {
	dbPath, _ := seedStore(t)

	_, err := runPlansCommand(t, "text", "--store", dbPath, "--show", "ffffffffffff")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = runPlansCommand(t, "text", "--store", dbPath, "--validator", "Author", "--dialect", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no json validator stored for Author")
}

func TestPlansRequiresStore(t *testing.T) {
	buf, err := runPlansCommand(t, "text")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "no plan store")

	_, err = runPlansCommand(t, "text", "--store", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan store not found")
}
