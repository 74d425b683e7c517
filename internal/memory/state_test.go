package memory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_State(t *testing.T) {
	s := Normalize(State{UserID: "alice"})
	assert.Equal(t, "alice", s.UserID)
	assert.NotNil(t, s.Messages)
	assert.NotNil(t, s.Meta)
}

func TestNormalize_NilPointer(t *testing.T) {
	var p *State
	s := Normalize(p)
	assert.Empty(t, s.UserID)
	assert.NotNil(t, s.Messages)
	assert.NotNil(t, s.Meta)
}

func TestNormalize_DecodedJSONMap(t *testing.T) {
	raw := `{
		"user_id": "alice",
		"summary": "so far",
		"messages": [
			{"role": "user", "content": "hola"},
			{"role": "assistant", "content": "hi"}
		],
		"meta": {"last_user_question": "hola", "count": 3}
	}`
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))

	s := Normalize(decoded)
	assert.Equal(t, "alice", s.UserID)
	assert.Equal(t, "so far", s.Summary)
	require.Len(t, s.Messages, 2)
	assert.Equal(t, Message{Role: "user", Content: "hola"}, s.Messages[0])
	assert.Equal(t, "hola", s.Meta["last_user_question"])
	assert.Equal(t, "3", s.Meta["count"], "non-string meta values are stringified")
}

func TestNormalize_UnknownShapeYieldsZeroState(t *testing.T) {
	s := Normalize(42)
	assert.Empty(t, s.UserID)
	assert.Empty(t, s.Messages)
	assert.NotNil(t, s.Meta)
}

func TestState_LastUserMessage(t *testing.T) {
	s := State{Messages: []Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "second"},
		{Role: RoleAssistant, Content: "reply again"},
	}}
	assert.Equal(t, "second", s.LastUserMessage())

	assert.Empty(t, State{}.LastUserMessage())
}

func TestState_CloneDoesNotAlias(t *testing.T) {
	original := State{
		Messages: []Message{{Role: RoleUser, Content: "hola"}},
		Meta:     map[string]string{"k": "v"},
	}
	clone := original.Clone()
	clone.Messages[0].Content = "changed"
	clone.Meta["k"] = "changed"

	assert.Equal(t, "hola", original.Messages[0].Content)
	assert.Equal(t, "v", original.Meta["k"])
}
