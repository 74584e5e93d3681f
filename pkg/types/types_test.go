package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_MergeDisjointKeys(t *testing.T) {
	s := NewSnapshot()
	now := time.Now()

	s.Merge(map[string]interface{}{"title": "Sales"}, "sess-1", now)
	s.Merge(map[string]interface{}{"layout": "grid"}, "sess-2", now.Add(time.Second))

	assert.Equal(t, "Sales", s.State["title"])
	assert.Equal(t, "grid", s.State["layout"])
	assert.Equal(t, "sess-2", s.LastUpdatedBy)
}

func TestSnapshot_MergeLastWriterWins(t *testing.T) {
	s := NewSnapshot()
	now := time.Now()

	s.Merge(map[string]interface{}{"title": "First"}, "sess-1", now)
	s.Merge(map[string]interface{}{"title": "Second"}, "sess-2", now.Add(time.Second))

	assert.Equal(t, "Second", s.State["title"])
	assert.Equal(t, "sess-2", s.LastUpdatedBy)
}

func TestSnapshot_PayloadCopiesState(t *testing.T) {
	s := NewSnapshot()
	s.Merge(map[string]interface{}{"title": "Sales"}, "sess-1", time.Now())

	payload := s.Payload()
	state, ok := payload["state"].(map[string]interface{})
	require.True(t, ok)

	state["title"] = "mutated"
	assert.Equal(t, "Sales", s.State["title"])
}

func TestSnapshot_IsEmpty(t *testing.T) {
	s := NewSnapshot()
	assert.True(t, s.IsEmpty())

	s.Merge(map[string]interface{}{"a": 1}, "sess-1", time.Now())
	assert.False(t, s.IsEmpty())
}

func TestMessage_Validate(t *testing.T) {
	valid := &Message{Type: MessageTypeUserJoin}
	assert.NoError(t, valid.Validate())

	missing := &Message{}
	assert.ErrorIs(t, missing.Validate(), ErrMissingType)

	unknown := &Message{Type: "shout"}
	assert.ErrorIs(t, unknown.Validate(), ErrUnknownType)

	// Outbound types are not accepted inbound.
	outbound := &Message{Type: MessageTypeUserJoined}
	assert.ErrorIs(t, outbound.Validate(), ErrUnknownType)
}

func TestRandomUserColor_FromPalette(t *testing.T) {
	palette := make(map[string]bool, len(UserColorPalette))
	for _, c := range UserColorPalette {
		palette[c] = true
	}

	for i := 0; i < 50; i++ {
		assert.True(t, palette[RandomUserColor()])
	}
}

func TestIsValidActivity(t *testing.T) {
	for _, a := range []string{ActivityEditing, ActivityViewing, ActivityAIChat, ActivityIdle} {
		assert.True(t, IsValidActivity(a))
	}
	assert.False(t, IsValidActivity("sleeping"))
}
