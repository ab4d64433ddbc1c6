package notes

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/casetrail/internal/clock"
	"github.com/roach88/casetrail/internal/ir"
	"github.com/roach88/casetrail/internal/revert"
	"github.com/roach88/casetrail/internal/store"
)

var epoch = time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

func at(n int) time.Time {
	return epoch.Add(time.Duration(n) * time.Minute)
}

func ptr[T any](v T) *T {
	return &v
}

type testEnv struct {
	ctx   context.Context
	store *store.Store
	clock *clock.Manual
	svc   *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := store.Open(filepath.Join(t.TempDir(), "notes.db"),
		store.WithClock(clock.NewStepClock(epoch, time.Millisecond)),
		store.WithIDGenerator(clock.NewSequenceGenerator("ctx")),
		store.WithLogger(logger),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := clock.NewManual(epoch)
	e, err := revert.New(s, revert.DefaultLabels(), revert.WithClock(c), revert.WithLogger(logger))
	require.NoError(t, err)

	svc, err := New(s, e, WithIDGenerator(clock.NewSequenceGenerator("ent")), WithLogger(logger))
	require.NoError(t, err)
	return &testEnv{ctx: context.Background(), store: s, clock: c, svc: svc}
}

func TestLabels_CoveredByDefaultTaxonomy(t *testing.T) {
	labels := Labels()
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		assert.False(t, seen[l], "duplicate label %q", l)
		seen[l] = true
	}
	assert.NoError(t, revert.DefaultLabels().Covers(labels))
}

func TestNew_RejectsUncoveredTaxonomy(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	defer s.Close()

	cfg := revert.DefaultLabels()
	cfg.Neutral = []string{ir.LabelTaskCreate, ir.LabelTaskDelete}
	e, err := revert.New(s, cfg)
	require.NoError(t, err)

	_, err = New(s, e)
	require.Error(t, err)
	assert.True(t, revert.IsConfigurationError(err))
	assert.Contains(t, err.Error(), ir.LabelServiceRequestCreate)
}

func TestService_CreateNoteAndChildren(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.ctx

	noteID, err := env.svc.CreateNote(ctx, "", NoteFields{
		Title:         ptr("Visit at shelter"),
		PublicDetails: ptr("Met at intake"),
	}, at(0))
	require.NoError(t, err)
	assert.Equal(t, "ent-000001", noteID)

	moodID, err := env.svc.AddMood(ctx, noteID, "", "calm", at(1))
	require.NoError(t, err)

	taskID, err := env.svc.CreateTask(ctx, "task-1", "Renew ID", "open", at(2))
	require.NoError(t, err)
	reqID, err := env.svc.CreateServiceRequest(ctx, "sr-1", "meal", "open", at(2))
	require.NoError(t, err)

	require.NoError(t, env.svc.AddPurpose(ctx, noteID, taskID, at(3)))
	require.NoError(t, env.svc.AddNextStep(ctx, noteID, taskID, at(3)))
	require.NoError(t, env.svc.AddProvidedService(ctx, noteID, reqID, at(4)))
	require.NoError(t, env.svc.AddRequestedService(ctx, noteID, reqID, at(4)))

	agg, err := env.svc.Get(ctx, noteID)
	require.NoError(t, err)
	assert.Equal(t, "Visit at shelter", agg.Note.Title)
	assert.Equal(t, "Met at intake", agg.Note.PublicDetails)
	assert.True(t, agg.Note.CreatedAt.Equal(at(0)))
	require.Len(t, agg.Moods, 1)
	assert.Equal(t, moodID, agg.Moods[0].ID)
	assert.Equal(t, "calm", agg.Moods[0].Descriptor)
	require.Len(t, agg.Purposes, 1)
	assert.Equal(t, "Renew ID", agg.Purposes[0].Title)
	require.Len(t, agg.NextSteps, 1)
	require.Len(t, agg.ProvidedServices, 1)
	require.Len(t, agg.RequestedServices, 1)
	assert.Equal(t, "meal", agg.RequestedServices[0].Service)
}

func TestService_History(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.ctx

	_, err := env.svc.CreateNote(ctx, "n1", NoteFields{Title: ptr("A")}, at(0))
	require.NoError(t, err)
	_, err = env.svc.CreateTask(ctx, "t1", "call", "open", at(1))
	require.NoError(t, err)
	require.NoError(t, env.svc.AddPurpose(ctx, "n1", "t1", at(2)))
	require.NoError(t, env.svc.UpdateNote(ctx, "n1", NoteFields{IsSubmitted: ptr(true)}, at(3)))

	history, err := env.svc.History(ctx, "n1")
	require.NoError(t, err)
	labels := make([]string, len(history))
	for i, c := range history {
		labels[i] = c.Label
		assert.Equal(t, "n1", c.RootID)
	}
	assert.Equal(t, []string{ir.LabelNoteCreate, ir.LabelPurposeAdd, ir.LabelNoteUpdate}, labels)
}

func TestService_UpdateNote(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.ctx

	_, err := env.svc.CreateNote(ctx, "n1", NoteFields{Title: ptr("A"), PrivateDetails: ptr("secret")}, at(0))
	require.NoError(t, err)
	require.NoError(t, env.svc.UpdateNote(ctx, "n1", NoteFields{
		Title:        ptr("B"),
		InteractedAt: ptr(at(4)),
	}, at(5)))

	agg, err := env.svc.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "B", agg.Note.Title)
	assert.Equal(t, "secret", agg.Note.PrivateDetails)
	assert.True(t, agg.Note.InteractedAt.Equal(at(4)))
	assert.True(t, agg.Note.UpdatedAt.Equal(at(5)))
	assert.True(t, agg.Note.CreatedAt.Equal(at(0)))
}

func TestService_NotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.ctx

	_, err := env.svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = env.svc.UpdateNote(ctx, "missing", NoteFields{Title: ptr("x")}, at(1))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.svc.CreateNote(ctx, "n1", NoteFields{}, at(0))
	require.NoError(t, err)
	err = env.svc.RemovePurpose(ctx, "n1", "t1", at(1))
	assert.ErrorIs(t, err, ErrNotFound)
	err = env.svc.DeleteTask(ctx, "t1", at(1))
	assert.ErrorIs(t, err, ErrNotFound)

	// A failed operation records nothing.
	history, err := env.svc.History(ctx, "n1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestService_RemoveMoodChecksOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.ctx

	_, err := env.svc.CreateNote(ctx, "n1", NoteFields{}, at(0))
	require.NoError(t, err)
	_, err = env.svc.CreateNote(ctx, "n2", NoteFields{}, at(0))
	require.NoError(t, err)
	_, err = env.svc.AddMood(ctx, "n1", "m1", "tired", at(1))
	require.NoError(t, err)

	err = env.svc.RemoveMood(ctx, "n2", "m1", at(2))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, env.svc.RemoveMood(ctx, "n1", "m1", at(2)))
	agg, err := env.svc.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Empty(t, agg.Moods)
}

func TestService_LinkToMissingChild(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.CreateNote(env.ctx, "n1", NoteFields{}, at(0))
	require.NoError(t, err)

	err = env.svc.AddProvidedService(env.ctx, "n1", "sr-missing", at(1))
	assert.ErrorIs(t, err, store.ErrMissingEntity)
}

func TestService_DeleteTaskUnlinks(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.ctx

	for _, id := range []string{"n1", "n2"} {
		_, err := env.svc.CreateNote(ctx, id, NoteFields{}, at(0))
		require.NoError(t, err)
	}
	_, err := env.svc.CreateTask(ctx, "t1", "call", "open", at(1))
	require.NoError(t, err)
	require.NoError(t, env.svc.AddPurpose(ctx, "n1", "t1", at(2)))
	require.NoError(t, env.svc.AddNextStep(ctx, "n2", "t1", at(2)))

	require.NoError(t, env.svc.DeleteTask(ctx, "t1", at(3)))

	for _, id := range []string{"n1", "n2"} {
		agg, err := env.svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, agg.Purposes)
		assert.Empty(t, agg.NextSteps)
	}
	ok, err := env.store.RowExists(ctx, ir.KindTask, "t1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_Revert(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.ctx

	_, err := env.svc.CreateNote(ctx, "n1", NoteFields{Title: ptr("Outreach")}, at(0))
	require.NoError(t, err)
	_, err = env.svc.AddMood(ctx, "n1", "m1", "anxious", at(1))
	require.NoError(t, err)
	_, err = env.svc.CreateTask(ctx, "t1", "Find housing", "open", at(2))
	require.NoError(t, err)
	require.NoError(t, env.svc.AddPurpose(ctx, "n1", "t1", at(3)))

	want, err := env.svc.Get(ctx, "n1")
	require.NoError(t, err)

	require.NoError(t, env.svc.UpdateNote(ctx, "n1", NoteFields{Title: ptr("Outreach (follow-up)")}, at(5)))
	require.NoError(t, env.svc.RemoveMood(ctx, "n1", "m1", at(6)))
	require.NoError(t, env.svc.RemovePurpose(ctx, "n1", "t1", at(6)))
	_, err = env.svc.CreateServiceRequest(ctx, "sr1", "shower", "open", at(7))
	require.NoError(t, err)
	require.NoError(t, env.svc.AddRequestedService(ctx, "n1", "sr1", at(7)))

	env.clock.Set(at(10))
	got, err := env.svc.Revert(ctx, "n1", at(3))
	require.NoError(t, err)
	assert.Equal(t, want.Image(), got.Image())

	current, err := env.svc.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, want.Image(), current.Image())

	history, err := env.svc.History(ctx, "n1")
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, ir.LabelNoteRevert, last.Label)
	assert.True(t, last.Timestamp.Equal(at(10)))
}
