package testutil

import (
	"github.com/hupe1980/agentrelay/core"
)

// RawBuilder provides a fluent helper for constructing raw generation event
// sequences in tests.
// Example:
//
//	raw := NewRawBuilder().Fragment("primary", "Hel").Fragment("primary", "lo").Final("primary", "Hello").Build()
type RawBuilder struct {
	events []core.RawEvent
}

// NewRawBuilder creates an empty builder.
func NewRawBuilder() *RawBuilder { return &RawBuilder{} }

// Fragment appends a partial text event (chainable).
func (b *RawBuilder) Fragment(source, text string) *RawBuilder {
	b.events = append(b.events, core.NewFragment(source, text))
	return b
}

// Fragments appends one fragment per text, all from the same source (chainable).
func (b *RawBuilder) Fragments(source string, texts ...string) *RawBuilder {
	for _, t := range texts {
		b.Fragment(source, t)
	}
	return b
}

// Final appends a complete turn text (chainable).
func (b *RawBuilder) Final(source, text string) *RawBuilder {
	b.events = append(b.events, core.NewFinal(source, text))
	return b
}

// Failure appends a generation fault (chainable).
func (b *RawBuilder) Failure(source string, err error) *RawBuilder {
	b.events = append(b.events, core.NewFailure(source, err))
	return b
}

// Build returns a copy of the accumulated events.
func (b *RawBuilder) Build() []core.RawEvent {
	return append([]core.RawEvent(nil), b.events...)
}

// Channel returns the events on a closed, buffered channel.
func (b *RawBuilder) Channel() <-chan core.RawEvent {
	ch := make(chan core.RawEvent, len(b.events))
	for _, ev := range b.events {
		ch <- ev
	}
	close(ch)
	return ch
}

// TranscriptBuilder helps construct transcripts with fluent chaining for tests.
// Example:
//
//	tr := NewTranscriptBuilder().User("hi").Agent("primary", "hello").Build()
type TranscriptBuilder struct {
	msgs []core.Message
}

// NewTranscriptBuilder creates an empty builder.
func NewTranscriptBuilder() *TranscriptBuilder { return &TranscriptBuilder{} }

// User appends a user message (chainable).
func (b *TranscriptBuilder) User(text string) *TranscriptBuilder {
	b.msgs = append(b.msgs, core.UserMessage(text))
	return b
}

// Agent appends a message authored by agent (chainable).
func (b *TranscriptBuilder) Agent(agent, text string) *TranscriptBuilder {
	b.msgs = append(b.msgs, core.AgentMessage(agent, text))
	return b
}

// Messages returns the accumulated messages.
func (b *TranscriptBuilder) Messages() []core.Message {
	return append([]core.Message(nil), b.msgs...)
}

// Build constructs a transcript holding the accumulated messages.
func (b *TranscriptBuilder) Build() *core.Transcript {
	tr := core.NewTranscript()
	tr.Append(b.msgs...)
	return tr
}
