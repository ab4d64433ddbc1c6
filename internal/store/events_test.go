package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/casetrail/internal/ir"
)

func TestAppend_AssignsIdentityAndContext(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	var stored ir.ChangeEvent
	c := inContext(t, s, "note.create", "n1", at(0), func(tx *Tx) error {
		var err error
		stored, err = tx.Append(ctx, ir.ChangeEvent{
			EntityKind: ir.KindNote,
			EntityID:   "n1",
			Action:     ir.ActionInsert,
			Payload:    ir.IRObject{"id": ir.IRString("n1")},
		})
		return err
	})

	assert.NotEmpty(t, stored.ID)
	assert.Positive(t, stored.Seq)
	assert.Equal(t, c.ID, stored.ContextID)
	assert.Equal(t, "note.create", stored.Label)
	assert.False(t, stored.RecordedAt.IsZero())

	events, err := s.QueryByContext(ctx, []string{c.ID})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, stored.ID, events[0].ID)
	assert.Equal(t, ir.IRObject{"id": ir.IRString("n1")}, events[0].Payload)
	assert.Equal(t, ir.IRObject{}, events[0].Snapshot)
}

func TestAppend_Untracked(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	ev, err := tx.Append(ctx, ir.ChangeEvent{
		EntityKind: ir.KindTask,
		EntityID:   "t1",
		Action:     ir.ActionInsert,
	})
	require.NoError(t, err)
	assert.Empty(t, ev.ContextID)
	assert.Equal(t, UntrackedLabel, ev.Label)
	require.NoError(t, tx.Commit())

	events, err := s.QueryEntity(ctx, ir.KindTask, "t1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Empty(t, events[0].ContextID)
}

func TestAppend_RejectsInvalidEvents(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = tx.Append(ctx, ir.ChangeEvent{EntityKind: "widget", EntityID: "w", Action: ir.ActionInsert})
	assert.Error(t, err)

	_, err = tx.Append(ctx, ir.ChangeEvent{EntityKind: ir.KindNote, EntityID: "n", Action: "upsert"})
	assert.Error(t, err)

	_, err = tx.Append(ctx, ir.ChangeEvent{EntityKind: ir.KindNote, Action: ir.ActionInsert})
	assert.Error(t, err)
}

func TestAppend_VisibleInSameTransaction(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	c, err := tx.OpenContext(ctx, "note.create", ContextMeta{RootID: "n1", Timestamp: at(0)})
	require.NoError(t, err)
	_, err = tx.InsertRow(ctx, ir.KindNote, ir.IRObject{"id": ir.IRString("n1")})
	require.NoError(t, err)

	events, err := tx.QueryByContext(ctx, []string{c.ID})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestAppend_RecordedAtMonotonic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	inContext(t, s, "note.create", "n1", at(0), func(tx *Tx) error {
		for i := 0; i < 5; i++ {
			if _, err := tx.Append(ctx, ir.ChangeEvent{
				EntityKind: ir.KindNote,
				EntityID:   "n1",
				Action:     ir.ActionUpdate,
			}); err != nil {
				return err
			}
		}
		return nil
	})

	events, err := s.QueryEntity(ctx, ir.KindNote, "n1")
	require.NoError(t, err)
	require.Len(t, events, 5)
	for i := 1; i < len(events); i++ {
		assert.True(t, events[i].RecordedAt.After(events[i-1].RecordedAt))
		assert.Greater(t, events[i].Seq, events[i-1].Seq)
	}
}

func TestQueryByContext_OrderedByContextTimestamp(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Opened first but logically later.
	late := seedNote(t, s, "n2", "late", at(10))
	early := seedNote(t, s, "n1", "early", at(5))

	events, err := s.QueryByContext(ctx, []string{late.ID, early.ID})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "n1", events[0].EntityID)
	assert.Equal(t, "n2", events[1].EntityID)
}

func TestQueryByContext_Empty(t *testing.T) {
	s := createTestStore(t)

	events, err := s.QueryByContext(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestQueryRange(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seedNote(t, s, "n1", "a", at(0))
	seedNote(t, s, "n2", "b", at(1))

	all, err := s.QueryRange(ctx, testEpoch, testEpoch.AddDate(1, 0, 0))
	require.NoError(t, err)
	require.Len(t, all, 2)

	from := all[1].RecordedAt
	tail, err := s.QueryRange(ctx, from, testEpoch.AddDate(1, 0, 0))
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "n2", tail[0].EntityID)

	unbounded, err := s.QueryRange(ctx, testEpoch, time.Time{})
	require.NoError(t, err)
	assert.Len(t, unbounded, 2)
}
