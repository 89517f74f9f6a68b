package core

import (
	"encoding/json"
	"time"
)

// EventType discriminates canonical events on the wire.
type EventType string

const (
	// EventAgentStart opens an attribution run for one agent.
	EventAgentStart EventType = "agent_start"
	// EventChunk carries an increment of visible text.
	EventChunk EventType = "chunk"
	// EventAgentEnd closes an attribution run with the accumulated text.
	EventAgentEnd EventType = "agent_end"
	// EventComplete terminates a stream that finished normally.
	EventComplete EventType = "complete"
	// EventError terminates a stream that failed.
	EventError EventType = "error"
)

// Event is the canonical, client-facing unit of the relay protocol. A stream
// of events for one call always ends with exactly one terminal event
// (EventComplete or EventError). Agent framing (EventAgentStart/EventAgentEnd)
// is only present for pipeline sessions.
//
// The JSON encoding is the newline-delimited wire shape:
//
//	{"type": "...", "agent"?: "...", "agent_info"?: {...}, "content"?: "...", "message"?: "..."}
//
// Code is an additional machine-readable reason attached to error events.
type Event struct {
	Type      EventType  `json:"type"`
	Agent     string     `json:"agent,omitempty"`
	AgentInfo *AgentInfo `json:"agent_info,omitempty"`
	Content   string     `json:"content,omitempty"`
	Message   string     `json:"message,omitempty"`
	Code      string     `json:"code,omitempty"`
	Timestamp time.Time  `json:"-"`
}

func newEvent(t EventType) Event {
	return Event{Type: t, Timestamp: time.Now().UTC()}
}

// NewAgentStartEvent opens a run for agent with its display metadata.
func NewAgentStartEvent(agent string, info AgentInfo) Event {
	e := newEvent(EventAgentStart)
	e.Agent = agent
	e.AgentInfo = &info
	return e
}

// NewChunkEvent carries text produced by agent. Agent is empty in plain mode.
func NewChunkEvent(agent, text string) Event {
	e := newEvent(EventChunk)
	e.Agent = agent
	e.Content = text
	return e
}

// NewAgentEndEvent closes the run of agent with its accumulated text.
func NewAgentEndEvent(agent, accumulated string) Event {
	e := newEvent(EventAgentEnd)
	e.Agent = agent
	e.Content = accumulated
	return e
}

// NewCompleteEvent terminates a successful stream.
func NewCompleteEvent() Event { return newEvent(EventComplete) }

// NewErrorEvent terminates a failed stream. The reason code is derived from
// err via ErrorCode; agent may be empty.
func NewErrorEvent(agent string, err error) Event {
	e := newEvent(EventError)
	e.Agent = agent
	e.Code = ErrorCode(err)
	if err != nil {
		e.Message = err.Error()
	}
	return e
}

// IsTerminal reports whether the event ends a stream.
func (e Event) IsTerminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// MarshalLine encodes the event as a single JSON line terminated by '\n'.
func (e Event) MarshalLine() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
