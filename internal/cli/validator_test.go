package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docmap/internal/testutil"
)

type validatorResponse struct {
	Status string           `json:"status"`
	Data   []BuiltValidator `json:"data"`
}

func runValidatorCommand(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidatorCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestValidatorSingleModel(t *testing.T) {
	buf, err := runValidatorCommand(t, "text", testutil.ModelsDir(t), "--model", "Author")
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Author (authors)")
	assert.Contains(t, output, `"$jsonSchema"`)
	assert.Contains(t, output, `"bsonType": "object"`)
	assert.NotContains(t, output, `"posts"`, "joined columns are not stored")
}

func TestValidatorAllModelsJSONSchema(t *testing.T) {
	buf, err := runValidatorCommand(t, "json", testutil.ModelsDir(t), "--json-schema")
	require.NoError(t, err)

	var resp validatorResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 4)

	author := resp.Data[0]
	assert.Equal(t, "Author", author.Model)
	assert.Equal(t, DialectJSON, author.Dialect)
	assert.Len(t, author.Fingerprint, 64)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(author.Document, &doc))
	assert.Equal(t, "object", doc["type"])
	assert.NotContains(t, doc, "$jsonSchema")
}

func TestValidatorStoresRevisions(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "plans.db")

	buf, err := runValidatorCommand(t, "json", testutil.ModelsDir(t), "--model", "Post", "--store", dbPath)
	require.NoError(t, err)
	var resp validatorResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.EqualValues(t, 1, resp.Data[0].Revision)

	// Same document again keeps the revision
	buf, err = runValidatorCommand(t, "json", testutil.ModelsDir(t), "--model", "Post", "--store", dbPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.EqualValues(t, 1, resp.Data[0].Revision)
}

func TestValidatorUnknownModel(t *testing.T) {
	_, err := runValidatorCommand(t, "text", testutil.ModelsDir(t), "--model", "Editor")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E103")
}

func TestValidatorCheckDocument(t *testing.T) {
	tmpDir := t.TempDir()
	good := filepath.Join(tmpDir, "good.json")
	bad := filepath.Join(tmpDir, "bad.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"_id": "507f1f77bcf86cd799439011", "name": "Ada"}`), 0644))
	require.NoError(t, os.WriteFile(bad, []byte(`{"_id": "507f1f77bcf86cd799439011", "nickname": "ada"}`), 0644))

	buf, err := runValidatorCommand(t, "text", testutil.ModelsDir(t), "--model", "Author", "--check", good)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Document matches Author")

	buf, err = runValidatorCommand(t, "text", testutil.ModelsDir(t), "--model", "Author", "--check", bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "Document violates Author")
	assert.Contains(t, buf.String(), "name")

	buf, err = runValidatorCommand(t, "json", testutil.ModelsDir(t), "--model", "Author", "--check", bad)
	require.Error(t, err)
	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	assert.NotEmpty(t, resp.Data.Violations)
}

func TestValidatorCheckRequiresModel(t *testing.T) {
	_, err := runValidatorCommand(t, "text", testutil.ModelsDir(t), "--check", "doc.json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--check requires --model")
}
