// Package suggest asks an LLM for remediation advice on poorly supported
// web features. Conversation state lives in an explicit Session value owned
// by the caller; the package itself keeps no state between calls, so two
// concurrent conversations can never bleed into each other.
package suggest

import "github.com/google/uuid"

// Turn is one utterance of a conversation, role "user" or "model".
type Turn struct {
	Role string
	Text string
}

// Session accumulates the turns of one advice conversation so follow-up
// questions keep their context. Not safe for concurrent use; one session
// belongs to one conversation.
type Session struct {
	ID    string
	turns []Turn
}

// NewSession starts an empty conversation with a fresh id.
func NewSession() *Session {
	return &Session{ID: uuid.NewString()}
}

// History returns a copy of the recorded turns, oldest first.
func (s *Session) History() []Turn {
	if s == nil || len(s.turns) == 0 {
		return nil
	}
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len reports how many turns the session holds.
func (s *Session) Len() int {
	if s == nil {
		return 0
	}
	return len(s.turns)
}

func (s *Session) remember(role, text string) {
	s.turns = append(s.turns, Turn{Role: role, Text: text})
}
