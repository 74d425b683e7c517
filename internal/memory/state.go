// Package memory implements the conversational pipeline with long-term
// memory: distilled facts persisted per user in the vector store, recalled
// and folded into the answer prompt.
package memory

import (
	"fmt"
	"strings"
)

// Message roles used in the conversation buffer.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the conversation buffer.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// State is the canonical pipeline state: the identity of the user, the
// running message buffer, a rolling summary of recent turns and free-form
// metadata threaded between stages.
type State struct {
	UserID   string            `json:"user_id"`
	Messages []Message         `json:"messages"`
	Summary  string            `json:"summary"`
	Meta     map[string]string `json:"meta"`
}

// Clone returns a deep copy so stages can modify state without aliasing the
// caller's value.
func (s State) Clone() State {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	out.Meta = make(map[string]string, len(s.Meta))
	for k, v := range s.Meta {
		out.Meta[k] = v
	}
	return out
}

// LastUserMessage returns the content of the most recent user turn, or the
// empty string when there is none.
func (s State) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// Normalize converts loosely-typed input (decoded JSON maps, an existing
// State, or a pointer to one) into canonical State form. Unknown shapes
// yield a zero State rather than an error; the pipeline treats missing
// fields as empty.
func Normalize(raw any) State {
	switch v := raw.(type) {
	case State:
		return normalized(v)
	case *State:
		if v == nil {
			return normalized(State{})
		}
		return normalized(*v)
	case map[string]any:
		return normalized(fromMap(v))
	default:
		return normalized(State{})
	}
}

func normalized(s State) State {
	if s.Messages == nil {
		s.Messages = []Message{}
	}
	if s.Meta == nil {
		s.Meta = map[string]string{}
	}
	return s
}

func fromMap(m map[string]any) State {
	var s State
	if v, ok := m["user_id"].(string); ok {
		s.UserID = v
	}
	if v, ok := m["summary"].(string); ok {
		s.Summary = v
	}
	if raw, ok := m["messages"].([]any); ok {
		for _, item := range raw {
			if msg, ok := item.(map[string]any); ok {
				s.Messages = append(s.Messages, Message{
					Role:    stringValue(msg["role"]),
					Content: stringValue(msg["content"]),
				})
			}
		}
	}
	if raw, ok := m["meta"].(map[string]any); ok {
		s.Meta = make(map[string]string, len(raw))
		for k, v := range raw {
			s.Meta[k] = stringValue(v)
		}
	}
	return s
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
