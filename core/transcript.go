package core

import (
	"sync"
	"time"
)

// Conversation roles understood by model adapters.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a conversation. Author is the producing agent (or
// "user") and is kept separately from Role so a shared transcript can be
// re-projected for each participant.
type Message struct {
	Role    string    `json:"role"`
	Author  string    `json:"author,omitempty"`
	Text    string    `json:"text"`
	Created time.Time `json:"created"`
}

// UserMessage builds a user-authored message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Author: RoleUser, Text: text, Created: time.Now()}
}

// AgentMessage builds an assistant message authored by agent.
func AgentMessage(agent, text string) Message {
	return Message{Role: RoleAssistant, Author: agent, Text: text, Created: time.Now()}
}

// Transcript is an append-only, process-local conversation history. It is
// safe for concurrent access; reads return copies.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds messages in order.
func (t *Transcript) Append(msgs ...Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msgs...)
}

// Messages returns a copy of the full history.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Last returns a copy of at most the n most recent messages. n <= 0 returns
// the full history.
func (t *Transcript) Last(n int) []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	start := 0
	if n > 0 && len(t.messages) > n {
		start = len(t.messages) - n
	}
	out := make([]Message, len(t.messages)-start)
	copy(out, t.messages[start:])
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// ViewFor projects a shared, multi-author history onto the perspective of
// one participant: its own messages stay assistant messages, everything else
// becomes user input. Messages from other agents are prefixed with their
// author so the participant can tell speakers apart.
func ViewFor(agent string, history []Message) []Message {
	out := make([]Message, 0, len(history))
	for _, m := range history {
		switch {
		case m.Role == RoleAssistant && m.Author == agent:
			out = append(out, m)
		case m.Role == RoleAssistant:
			v := m
			v.Role = RoleUser
			v.Text = "[" + m.Author + "]\n" + m.Text
			out = append(out, v)
		default:
			out = append(out, m)
		}
	}
	return out
}
