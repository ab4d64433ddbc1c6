package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/casetrail/internal/ir"
)

func TestView_ReadsSnapshotWithoutWriteLock(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")
	logger := WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	s, err := Open(path, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	writer, err := Open(path, logger)
	require.NoError(t, err)
	t.Cleanup(func() { writer.Close() })

	seedNote(t, s, "n1", "A", at(0))

	err = s.View(ctx, func(snap *Snapshot) error {
		exists, err := snap.RowExists(ctx, ir.KindNote, "n1")
		require.NoError(t, err)
		require.True(t, exists)

		// A writer on another connection commits while the snapshot is open.
		_, err = writer.WithContext(ctx, "note.update", ContextMeta{RootID: "n1", Timestamp: at(10)}, func(tx *Tx) error {
			_, err := tx.UpdateRow(ctx, ir.KindNote, "n1", ir.IRObject{"title": ir.IRString("B")})
			return err
		})
		require.NoError(t, err)

		agg, err := snap.ReadAggregate(ctx, "n1")
		require.NoError(t, err)
		assert.Equal(t, "A", agg.Note.Title)
		return nil
	})
	require.NoError(t, err)

	agg, err := s.ReadAggregate(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "B", agg.Note.Title)
}

func TestView_ReturnsCallbackError(t *testing.T) {
	s := createTestStore(t)
	boom := assert.AnError

	err := s.View(context.Background(), func(*Snapshot) error { return boom })
	require.ErrorIs(t, err, boom)

	// The connection is usable again after the snapshot ends.
	seedNote(t, s, "n1", "A", at(0))
}
