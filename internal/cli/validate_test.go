package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestValidate_Defaults(t *testing.T) {
	out, _, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Equal(t, "Configuration valid (defaults)\n", out)
}

func TestValidate_FileWithPrint(t *testing.T) {
	path := writeFile(t, t.TempDir(), "casetrail.yaml", "database: notes.db\nlog_level: debug\n")

	out, _, err := execute(t, "validate", "--config", path, "--print")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid ("+path+")")
	assert.Contains(t, out, "database: notes.db")
	assert.Contains(t, out, "log_level: debug")
	assert.Contains(t, out, "- note.create")
}

func TestValidate_JSONPrint(t *testing.T) {
	path := writeFile(t, t.TempDir(), "casetrail.yaml", "database: notes.db\n")

	out, _, err := execute(t, "validate", "--config", path, "--print", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.NotNil(t, resp.Data.Config)
	assert.Equal(t, "notes.db", resp.Data.Config.Database)
	assert.Equal(t, "note.revert", resp.Data.Config.Labels.Revert)
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad log level", "log_level: loud\n", "log_level"},
		{"unknown field", "databse: notes.db\n", "databse"},
		{"uncovered label", "labels:\n  neutral: [task.create, task.delete]\n", "service_request.create"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "casetrail.yaml", tt.content)

			out, _, err := execute(t, "validate", "--config", path)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Contains(t, out, "Error [INVALID_CONFIG]")
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestValidate_MissingFile(t *testing.T) {
	out, _, err := execute(t, "validate", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [CONFIG_UNREADABLE]")
}
