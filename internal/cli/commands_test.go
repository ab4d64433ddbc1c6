package cli

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/casetrail/internal/ir"
	"github.com/roach88/casetrail/internal/notes"
	"github.com/roach88/casetrail/internal/revert"
	"github.com/roach88/casetrail/internal/store"
)

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func minute(n int) time.Time {
	return base.Add(time.Duration(n) * time.Minute)
}

func ptr[T any](v T) *T {
	return &v
}

// seedDB writes a note history to a fresh database file:
//
//	09:00 note.create   n1 "Intake"
//	09:01 mood.add      m1 calm
//	09:10 note.update   n1 "Intake (edited)"
//	09:11 task.create   t1
//	09:12 purpose.add   n1 -> t1
func seedDB(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "cli.db")

	st, err := store.Open(path, store.WithLogger(logger))
	require.NoError(t, err)
	defer st.Close()
	eng, err := revert.New(st, revert.DefaultLabels(), revert.WithLogger(logger))
	require.NoError(t, err)
	svc, err := notes.New(st, eng, notes.WithLogger(logger))
	require.NoError(t, err)

	_, err = svc.CreateNote(ctx, "n1", notes.NoteFields{Title: ptr("Intake")}, minute(0))
	require.NoError(t, err)
	_, err = svc.AddMood(ctx, "n1", "m1", "calm", minute(1))
	require.NoError(t, err)
	require.NoError(t, svc.UpdateNote(ctx, "n1", notes.NoteFields{Title: ptr("Intake (edited)")}, minute(10)))
	_, err = svc.CreateTask(ctx, "t1", "Call back", "open", minute(11))
	require.NoError(t, err)
	require.NoError(t, svc.AddPurpose(ctx, "n1", "t1", minute(12)))
	return path
}

type aggregateResponse struct {
	Status string       `json:"status"`
	Data   ir.Aggregate `json:"data"`
}

func TestShow_Text(t *testing.T) {
	db := seedDB(t)

	out, _, err := execute(t, "show", "--db", db, "--note", "n1")
	require.NoError(t, err)
	assert.Contains(t, out, "Note n1: Intake (edited)")
	assert.Contains(t, out, "Moods (1)")
	assert.Contains(t, out, "  - m1 calm")
	assert.Contains(t, out, "Purposes (1)")
	assert.Contains(t, out, "  - t1 Call back [open]")
	assert.Contains(t, out, "Fingerprint: ")
}

func TestShow_JSON(t *testing.T) {
	db := seedDB(t)

	out, _, err := execute(t, "show", "--db", db, "--note", "n1", "--format", "json")
	require.NoError(t, err)

	var resp aggregateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Intake (edited)", resp.Data.Note.Title)
	require.Len(t, resp.Data.Purposes, 1)
	assert.Equal(t, "t1", resp.Data.Purposes[0].ID)
}

func TestShow_UnknownNote(t *testing.T) {
	db := seedDB(t)

	out, _, err := execute(t, "show", "--db", db, "--note", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [NOT_FOUND]: note nope not found")
}

func TestRevert_AppliesAndRecords(t *testing.T) {
	db := seedDB(t)

	out, _, err := execute(t, "revert", "--db", db, "--note", "n1",
		"--to", "2024-05-01T09:05:00Z", "--format", "json")
	require.NoError(t, err)

	var resp aggregateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Intake", resp.Data.Note.Title)
	require.Len(t, resp.Data.Moods, 1)
	assert.Equal(t, "m1", resp.Data.Moods[0].ID)
	assert.Empty(t, resp.Data.Purposes)

	out, _, err = execute(t, "history", "--db", db, "--note", "n1", "--format", "json")
	require.NoError(t, err)
	var hist struct {
		Data HistoryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &hist))
	labels := make([]string, len(hist.Data.Entries))
	for i, e := range hist.Data.Entries {
		labels[i] = e.Label
	}
	assert.Equal(t, []string{"note.create", "mood.add", "note.update", "purpose.add", "note.revert"}, labels)
}

func TestRevert_Text(t *testing.T) {
	db := seedDB(t)

	out, _, err := execute(t, "revert", "--db", db, "--note", "n1", "--to", "2024-05-01T09:05:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "Reverted note n1 to 2024-05-01T09:05:00Z")
	assert.Contains(t, out, "Note n1: Intake\n")
	assert.Contains(t, out, "Purposes (0)")
}

func TestRevert_DryRunWritesNothing(t *testing.T) {
	db := seedDB(t)

	out, _, err := execute(t, "revert", "--db", db, "--note", "n1",
		"--to", "2024-05-01T09:05:00Z", "--dry-run", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string   `json:"status"`
		Data   PlanView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "n1", resp.Data.RootID)
	assert.Equal(t, "note.create", resp.Data.AnchorLabel)
	require.Len(t, resp.Data.Undo, 1)
	assert.Equal(t, string(ir.KindPurposeLink), resp.Data.Undo[0].Kind)
	assert.Equal(t, "insert", resp.Data.Undo[0].Action)
	require.Len(t, resp.Data.Restore, 1)
	assert.Equal(t, string(ir.KindNote), resp.Data.Restore[0].Kind)
	assert.Equal(t, 0, resp.Data.Skipped)

	out, _, err = execute(t, "show", "--db", db, "--note", "n1")
	require.NoError(t, err)
	assert.Contains(t, out, "Note n1: Intake (edited)")
}

func TestRevert_DryRunText(t *testing.T) {
	db := seedDB(t)

	out, _, err := execute(t, "revert", "--db", db, "--note", "n1",
		"--to", "2024-05-01T09:05:00Z", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Revert plan for note n1 to 2024-05-01T09:05:00Z")
	assert.Contains(t, out, "Undo (1):")
	assert.Contains(t, out, "purpose_link")
	assert.Contains(t, out, "Restore (1):")
}

func TestRevert_UnknownNote(t *testing.T) {
	db := seedDB(t)

	out, _, err := execute(t, "revert", "--db", db, "--note", "ghost",
		"--to", "2024-05-01T09:05:00Z", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, revert.IsRootNotFound(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ROOT_NOT_FOUND", resp.Error.Code)
}

func TestRevert_BadTime(t *testing.T) {
	db := seedDB(t)

	_, _, err := execute(t, "revert", "--db", db, "--note", "n1", "--to", "yesterday")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid --to "yesterday"`)
}

func TestRevert_TargetOutOfRange(t *testing.T) {
	db := seedDB(t)

	for _, args := range [][]string{
		{"revert", "--db", db, "--note", "n1", "--to", "3000-01-01T00:00:00Z", "--format", "json"},
		{"revert", "--db", db, "--note", "n1", "--to", "3000-01-01T00:00:00Z", "--dry-run", "--format", "json"},
	} {
		out, _, err := execute(t, args...)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.True(t, revert.IsInvalidTarget(err))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, "INVALID_TARGET", resp.Error.Code)
	}
}

func TestHistory_WithEvents(t *testing.T) {
	db := seedDB(t)

	out, _, err := execute(t, "history", "--db", db, "--note", "n1", "--events", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data HistoryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Entries, 4)
	assert.Equal(t, "n1", resp.Data.Note)

	first := resp.Data.Entries[0]
	assert.Equal(t, "note.create", first.Label)
	assert.True(t, first.Timestamp.Equal(minute(0)))
	require.Len(t, first.Events, 1)
	assert.Equal(t, "note", first.Events[0].Kind)
	assert.Equal(t, "n1", first.Events[0].EntityID)
	assert.Len(t, first.Events[0].Digest, 64)
}

func TestHistory_Text(t *testing.T) {
	db := seedDB(t)

	out, _, err := execute(t, "history", "--db", db, "--note", "n1")
	require.NoError(t, err)
	assert.Contains(t, out, "History of note n1")
	assert.Contains(t, out, "2024-05-01T09:10:00Z")
	assert.Contains(t, out, "note.update")
}

func TestHistory_UnknownNote(t *testing.T) {
	db := seedDB(t)

	out, _, err := execute(t, "history", "--db", db, "--note", "ghost")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "NOT_FOUND")
}

func TestVerboseLogsGoToStderr(t *testing.T) {
	db := seedDB(t)

	out, errOut, err := execute(t, "history", "--db", db, "--note", "n1", "--format", "json", "-v")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Found 4 operation(s) for note n1")
	assert.Contains(t, errOut, "database opened")

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}
