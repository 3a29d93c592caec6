package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPendingApproval_DetailsRoundTrip verifies the details map survives the
// JSON column encoding.
func TestPendingApproval_DetailsRoundTrip(t *testing.T) {
	a := &PendingApproval{}

	assert.NoError(t, a.SetDetails(map[string]any{"target": "plex", "usage": 97.5}))

	details := a.GetDetails()
	assert.Equal(t, "plex", details["target"])
	assert.Equal(t, 97.5, details["usage"])
}

// TestPendingApproval_MalformedDetails verifies a corrupted column degrades
// to nil instead of failing the read path.
func TestPendingApproval_MalformedDetails(t *testing.T) {
	a := &PendingApproval{Details: "{not json"}

	assert.Nil(t, a.GetDetails())

	empty := &PendingApproval{}
	assert.Nil(t, empty.GetDetails())
}

// TestShutdownSequence_StepsRoundTrip verifies sequence steps survive the
// JSON column encoding in order.
func TestShutdownSequence_StepsRoundTrip(t *testing.T) {
	s := &ShutdownSequence{}

	assert.NoError(t, s.SetSteps([]SequenceStep{
		{Step: "snapshot:tank/media", Succeeded: true, Message: "snapshot created"},
		{Step: "stop:plex", Succeeded: false, Message: "device busy"},
	}))

	steps := s.GetSteps()
	assert.Len(t, steps, 2)
	assert.Equal(t, "snapshot:tank/media", steps[0].Step)
	assert.False(t, steps[1].Succeeded)
}

// TestShutdownSequence_EmptySteps verifies an empty column reads as nil.
func TestShutdownSequence_EmptySteps(t *testing.T) {
	s := &ShutdownSequence{}
	assert.Nil(t, s.GetSteps())
}
