package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden files are regenerated with:
//
//	go test ./internal/harness -run TestRunWithGolden -update
func TestRunWithGolden_MoodRoundTrip(t *testing.T) {
	result, err := RunWithGolden(t, loadTestScenario(t, "mood_round_trip"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunWithGolden_LinksAndServices(t *testing.T) {
	result, err := RunWithGolden(t, loadTestScenario(t, "links_and_services"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestMarshalTrace_OmitsEmptyAggregate(t *testing.T) {
	result := NewResult()
	result.AddTrace(TraceEvent{Op: "delete_task", At: 3, Args: map[string]interface{}{"id": "t1"}, Outcome: OutcomeOK})

	out, err := MarshalTrace("tiny", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"final":{},"scenario_name":"tiny","trace":[{"args":{"id":"t1"},"at":3,"op":"delete_task","outcome":"ok","seq":1}]}`,
		string(out))
}
