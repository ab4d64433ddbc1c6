package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/casetrail/internal/clock"
	"github.com/roach88/casetrail/internal/ir"
)

var testEpoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// createTestStore creates a store in a temp dir with a stepping clock and
// sequential ids, so recorded_at and ids are deterministic.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithClock(clock.NewStepClock(testEpoch, time.Millisecond)),
		WithIDGenerator(clock.NewSequenceGenerator("id")),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// at returns the logical time testEpoch + n minutes.
func at(n int) time.Time {
	return testEpoch.Add(time.Duration(n) * time.Minute)
}

// inContext runs fn in a committed context for rootID at logical time ts.
func inContext(t *testing.T, s *Store, label, rootID string, ts time.Time, fn func(*Tx) error) ir.Context {
	t.Helper()
	c, err := s.WithContext(context.Background(), label, ContextMeta{RootID: rootID, Timestamp: ts}, fn)
	require.NoError(t, err)
	return c
}

// seedNote creates a note in its own note.create context.
func seedNote(t *testing.T, s *Store, id, title string, ts time.Time) ir.Context {
	t.Helper()
	return inContext(t, s, "note.create", id, ts, func(tx *Tx) error {
		_, err := tx.InsertRow(context.Background(), ir.KindNote, ir.IRObject{
			"id":    ir.IRString(id),
			"title": ir.IRString(title),
		})
		return err
	})
}

// seedTask creates a task outside any note's history.
func seedTask(t *testing.T, s *Store, id string) {
	t.Helper()
	inContext(t, s, "task.create", "", testEpoch, func(tx *Tx) error {
		_, err := tx.InsertRow(context.Background(), ir.KindTask, ir.IRObject{
			"id":    ir.IRString(id),
			"title": ir.IRString("task " + id),
		})
		return err
	})
}
