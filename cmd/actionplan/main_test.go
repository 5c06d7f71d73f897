package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"actionplan/pkg/testutil"
)

var sampleFinding = []any{
	"1.1", "Maîtrise des allergènes", "B", "Plan incomplet",
	"Mise à jour du plan", "QA", "01.04.2024", "En cours",
	"", "Formation", "QA", "01.05.2024", "En cours", "Direction", "01.06.2024",
}

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("LAYOUT_FILE", "")
	t.Setenv("ATTACHMENT_DIR", t.TempDir())
	layoutFile, logLevel, logFormat = "", "", ""
}

func writeWorkbook(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.xlsx")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInspectPrintsRows(t *testing.T) {
	isolateEnv(t)
	path := writeWorkbook(t, testutil.ActionPlan(t, "Acme", "C-42", sampleFinding))

	out, err := execute(t, "inspect", path)

	require.NoError(t, err)
	assert.Contains(t, out, `Ligne 5: [null, "COID", "C-42"`)
	assert.Contains(t, out, `Ligne 12: ["requirementNo", "requirementText"`)
	assert.Contains(t, out, `Ligne 14: ["1.1"`)
}

func TestExtractPrintsJSON(t *testing.T) {
	isolateEnv(t)
	path := writeWorkbook(t, testutil.ActionPlan(t, "Acme", "C-42", sampleFinding))

	out, err := execute(t, "extract", path)
	require.NoError(t, err)

	var got struct {
		Metadata struct {
			CompanyName        string `json:"company_name"`
			ExternalIdentifier string `json:"external_identifier"`
		} `json:"metadata"`
		Findings []map[string]any `json:"findings"`
		Count    int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Acme", got.Metadata.CompanyName)
	assert.Equal(t, "C-42", got.Metadata.ExternalIdentifier)
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, "1.1", got.Findings[0]["requirement_no"])
}

func TestImportStoresDocument(t *testing.T) {
	isolateEnv(t)
	path := writeWorkbook(t, testutil.ActionPlan(t, "Acme", "C-42", sampleFinding, sampleFinding))

	out, err := execute(t, "import", path)
	require.NoError(t, err)

	var got struct {
		ExternalIdentifier string `json:"external_identifier"`
		FindingsInserted   int    `json:"findings_inserted"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "C-42", got.ExternalIdentifier)
	assert.Equal(t, 2, got.FindingsInserted)
}

func TestCommandsRejectMissingFile(t *testing.T) {
	isolateEnv(t)
	for _, cmd := range []string{"inspect", "extract", "import"} {
		_, err := execute(t, cmd, filepath.Join(t.TempDir(), "missing.xlsx"))
		assert.ErrorIs(t, err, os.ErrNotExist, cmd)
	}
}

func TestInvalidConfigFails(t *testing.T) {
	isolateEnv(t)
	t.Setenv("GATEWAY_TIMEOUT", "soon")
	path := writeWorkbook(t, testutil.ActionPlan(t, "Acme", "C-42"))

	_, err := execute(t, "extract", path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "GATEWAY_TIMEOUT")
}
