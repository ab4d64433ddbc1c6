package revert

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
	"github.com/roach88/casetrail/internal/store"
)

var epoch = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

// at returns the logical time epoch + n minutes.
func at(n int) time.Time {
	return epoch.Add(time.Duration(n) * time.Minute)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	path  string
	store *store.Store
	clock *clock.Manual
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path,
		store.WithClock(clock.NewStepClock(epoch, time.Millisecond)),
		store.WithIDGenerator(clock.NewSequenceGenerator("id")),
		store.WithLogger(discardLogger()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return &fixture{t: t, ctx: context.Background(), path: path, store: s, clock: clock.NewManual(epoch)}
}

// reopen returns a second Store on the same database file, as another
// process would see it.
func (f *fixture) reopen() *store.Store {
	f.t.Helper()
	s, err := store.Open(f.path,
		store.WithIDGenerator(clock.NewSequenceGenerator("other")),
		store.WithLogger(discardLogger()),
	)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { s.Close() })
	return s
}

func (f *fixture) engine(opts ...Option) *Engine {
	f.t.Helper()
	opts = append([]Option{WithClock(f.clock), WithLogger(discardLogger())}, opts...)
	e, err := New(f.store, DefaultLabels(), opts...)
	require.NoError(f.t, err)
	return e
}

// revert runs a revert to target with the revert context stamped at now.
func (f *fixture) revert(e *Engine, rootID string, target time.Time, now int) (ir.Aggregate, error) {
	f.clock.Set(at(now))
	return e.RevertAggregate(f.ctx, rootID, target)
}

func (f *fixture) do(label, rootID string, minute int, fn func(*store.Tx) error) {
	f.t.Helper()
	_, err := f.store.WithContext(f.ctx, label, store.ContextMeta{RootID: rootID, Timestamp: at(minute)}, fn)
	require.NoError(f.t, err)
}

func (f *fixture) createNote(id, title string, minute int) {
	f.do(ir.LabelNoteCreate, id, minute, func(tx *store.Tx) error {
		_, err := tx.InsertRow(f.ctx, ir.KindNote, ir.IRObject{
			"id":         ir.IRString(id),
			"title":      ir.IRString(title),
			"created_at": ir.IRInt(at(minute).UnixNano()),
			"updated_at": ir.IRInt(at(minute).UnixNano()),
		})
		return err
	})
}

func (f *fixture) updateNote(id string, fields ir.IRObject, minute int) {
	f.do(ir.LabelNoteUpdate, id, minute, func(tx *store.Tx) error {
		fields = fields.Clone()
		fields["updated_at"] = ir.IRInt(at(minute).UnixNano())
		_, err := tx.UpdateRow(f.ctx, ir.KindNote, id, fields)
		return err
	})
}

func (f *fixture) addMood(noteID, moodID, descriptor string, minute int) {
	f.do(ir.LabelMoodAdd, noteID, minute, func(tx *store.Tx) error {
		_, err := tx.InsertRow(f.ctx, ir.KindMood, ir.IRObject{
			"id":         ir.IRString(moodID),
			"note_id":    ir.IRString(noteID),
			"descriptor": ir.IRString(descriptor),
			"created_at": ir.IRInt(at(minute).UnixNano()),
		})
		return err
	})
}

func (f *fixture) removeMood(noteID, moodID string, minute int) {
	f.do(ir.LabelMoodRemove, noteID, minute, func(tx *store.Tx) error {
		_, err := tx.DeleteRow(f.ctx, ir.KindMood, moodID)
		return err
	})
}

func (f *fixture) createTask(id string) {
	f.do(ir.LabelTaskCreate, "", 0, func(tx *store.Tx) error {
		_, err := tx.InsertRow(f.ctx, ir.KindTask, ir.IRObject{
			"id":    ir.IRString(id),
			"title": ir.IRString("task " + id),
		})
		return err
	})
}

func (f *fixture) deleteTask(id string, minute int) {
	f.do(ir.LabelTaskDelete, "", minute, func(tx *store.Tx) error {
		for _, kind := range []ir.EntityKind{ir.KindPurposeLink, ir.KindNextStepLink} {
			parents, err := tx.LinksForChild(f.ctx, kind, id)
			if err != nil {
				return err
			}
			for _, p := range parents {
				if _, err := tx.RemoveLink(f.ctx, kind, p, id); err != nil {
					return err
				}
			}
		}
		_, err := tx.DeleteRow(f.ctx, ir.KindTask, id)
		return err
	})
}

func (f *fixture) addPurpose(noteID, taskID string, minute int) {
	f.do(ir.LabelPurposeAdd, noteID, minute, func(tx *store.Tx) error {
		_, err := tx.AddLink(f.ctx, ir.KindPurposeLink, noteID, taskID)
		return err
	})
}

func (f *fixture) removePurpose(noteID, taskID string, minute int) {
	f.do(ir.LabelPurposeRemove, noteID, minute, func(tx *store.Tx) error {
		_, err := tx.RemoveLink(f.ctx, ir.KindPurposeLink, noteID, taskID)
		return err
	})
}

func (f *fixture) aggregate(id string) ir.Aggregate {
	f.t.Helper()
	agg, err := f.store.ReadAggregate(f.ctx, id)
	require.NoError(f.t, err)
	return agg
}

func purposeIDs(agg ir.Aggregate) []string {
	ids := []string{}
	for _, t := range agg.Purposes {
		ids = append(ids, t.ID)
	}
	return ids
}

func moodIDs(agg ir.Aggregate) []string {
	ids := []string{}
	for _, m := range agg.Moods {
		ids = append(ids, m.ID)
	}
	return ids
}
