package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario(t *testing.T) {
	doc := `
name: basic
description: "Create then revert"
steps:
  - op: create_note
    args: { id: n1, title: A }
  - at: 4
    op: revert
    args: { note: n1, to: 0 }
    expect: { outcome: ok }
assertions:
  - type: context_count
    note: n1
    label: note.revert
    count: 1
`
	s, err := ParseScenario([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "basic", s.Name)
	require.Len(t, s.Steps, 2)
	assert.Equal(t, 0, s.Steps[0].At)
	assert.Equal(t, 4, s.Steps[1].At)
	assert.Equal(t, "ok", s.Steps[1].Expect.Outcome)
	assert.Equal(t, 1, s.Assertions[0].Count)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown field",
			doc:  "name: x\ndescription: y\nsteps: []\nassertion: []\n",
			want: "field assertion not found",
		},
		{
			name: "missing name",
			doc:  "description: y\nsteps: [{op: create_note, args: {id: n1}}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			doc:  "name: x\nsteps: [{op: create_note, args: {id: n1}}]\n",
			want: "description is required",
		},
		{
			name: "no steps",
			doc:  "name: x\ndescription: y\n",
			want: "steps list is required",
		},
		{
			name: "unknown op",
			doc:  "name: x\ndescription: y\nsteps: [{op: archive_note, args: {}}]\n",
			want: `unknown op "archive_note"`,
		},
		{
			name: "missing arg",
			doc:  "name: x\ndescription: y\nsteps: [{op: add_purpose, args: {note: n1}}]\n",
			want: `add_purpose requires arg "task"`,
		},
		{
			name: "negative time",
			doc:  "name: x\ndescription: y\nsteps: [{at: -1, op: create_note, args: {id: n1}}]\n",
			want: "at must be non-negative",
		},
		{
			name: "empty expect",
			doc:  "name: x\ndescription: y\nsteps: [{op: create_note, args: {id: n1}, expect: {}}]\n",
			want: "outcome is required",
		},
		{
			name: "unknown assertion",
			doc:  "name: x\ndescription: y\nsteps: [{op: create_note, args: {id: n1}}]\nassertions: [{type: final_state, note: n1}]\n",
			want: `unknown assertion type "final_state"`,
		},
		{
			name: "history without labels",
			doc:  "name: x\ndescription: y\nsteps: [{op: create_note, args: {id: n1}}]\nassertions: [{type: history, note: n1}]\n",
			want: "labels list is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/does_not_exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
