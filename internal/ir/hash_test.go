package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAggregate() Aggregate {
	return Aggregate{
		Note:              Note{ID: "n1", Title: "Intake"},
		Moods:             []Mood{{ID: "m1", NoteID: "n1", Descriptor: "calm"}},
		Purposes:          []Task{{ID: "t1"}},
		NextSteps:         []Task{},
		ProvidedServices:  []ServiceRequest{},
		RequestedServices: []ServiceRequest{{ID: "s1"}},
	}
}

func TestFingerprintDeterminism(t *testing.T) {
	f1, err := Fingerprint(testAggregate())
	require.NoError(t, err)
	f2, err := Fingerprint(testAggregate())
	require.NoError(t, err)

	assert.Equal(t, f1, f2)
	assert.Len(t, f1, 64, "SHA-256 hex is 64 characters")
}

func TestFingerprintChangesWithState(t *testing.T) {
	base, err := Fingerprint(testAggregate())
	require.NoError(t, err)

	changed := testAggregate()
	changed.Note.Title = "Follow-up"
	f, err := Fingerprint(changed)
	require.NoError(t, err)
	assert.NotEqual(t, base, f)

	fewer := testAggregate()
	fewer.Purposes = []Task{}
	f, err = Fingerprint(fewer)
	require.NoError(t, err)
	assert.NotEqual(t, base, f)
}

func TestPayloadDigestIgnoresKeyOrder(t *testing.T) {
	a := IRObject{"x": IRInt(1), "y": IRString("z")}
	b := IRObject{"y": IRString("z"), "x": IRInt(1)}

	da, err := PayloadDigest(a)
	require.NoError(t, err)
	db, err := PayloadDigest(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestSummaryOmitsTimestamps(t *testing.T) {
	s := testAggregate().Summary()

	note, ok := s["note"].(IRObject)
	require.True(t, ok)
	assert.NotContains(t, note, "created_at")
	assert.Equal(t, IRArray{IRString("t1")}, s["purposes"])
	assert.Equal(t, IRArray{IRString("s1")}, s["requested_services"])
}
