package testutil

import (
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/agentrelay/core"
)

// DefaultWait bounds how long Collect waits for a stream to close.
const DefaultWait = 5 * time.Second

// Collect drains ch until it closes and fails the test if that takes longer
// than DefaultWait.
func Collect(t testing.TB, ch <-chan core.Event) []core.Event {
	t.Helper()
	var out []core.Event
	timeout := time.After(DefaultWait)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("stream did not close within %s, got %d events", DefaultWait, len(out))
			return out
		}
	}
}

// CollectRaw drains a raw event channel with the same deadline as Collect.
func CollectRaw(t testing.TB, ch <-chan core.RawEvent) []core.RawEvent {
	t.Helper()
	var out []core.RawEvent
	timeout := time.After(DefaultWait)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("raw stream did not close within %s, got %d events", DefaultWait, len(out))
			return out
		}
	}
}

// Types projects events onto their types.
func Types(events []core.Event) []core.EventType {
	out := make([]core.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

// Text concatenates the content of all chunk events, optionally only those
// attributed to agent.
func Text(events []core.Event, agent string) string {
	var b strings.Builder
	for _, ev := range events {
		if ev.Type == core.EventChunk && (agent == "" || ev.Agent == agent) {
			b.WriteString(ev.Content)
		}
	}
	return b.String()
}

// Runs lists the agents of all agent_start events in order.
func Runs(events []core.Event) []string {
	var out []string
	for _, ev := range events {
		if ev.Type == core.EventAgentStart {
			out = append(out, ev.Agent)
		}
	}
	return out
}

// AssertWellFormed checks the canonical stream invariants: exactly one
// terminal event and it comes last; every chunk lies inside a run opened by
// agent_start for the same agent; every run is closed by exactly one
// agent_end before the next run opens or the stream terminates. In plain
// mode (attributed false) no framing events may appear at all.
func AssertWellFormed(t testing.TB, events []core.Event, attributed bool) {
	t.Helper()

	if len(events) == 0 {
		t.Errorf("empty stream: want exactly one terminal event")
		return
	}

	for i, ev := range events[:len(events)-1] {
		if ev.IsTerminal() {
			t.Errorf("event %d: terminal %q before end of stream", i, ev.Type)
		}
	}
	if last := events[len(events)-1]; !last.IsTerminal() {
		t.Errorf("last event is %q, want complete or error", last.Type)
	}

	open := ""
	for i, ev := range events {
		switch ev.Type {
		case core.EventAgentStart:
			if !attributed {
				t.Errorf("event %d: agent_start in plain stream", i)
			}
			if open != "" {
				t.Errorf("event %d: agent_start %q while run of %q is open", i, ev.Agent, open)
			}
			if ev.AgentInfo == nil {
				t.Errorf("event %d: agent_start %q without agent_info", i, ev.Agent)
			}
			open = ev.Agent
		case core.EventAgentEnd:
			if !attributed {
				t.Errorf("event %d: agent_end in plain stream", i)
			}
			if open == "" || open != ev.Agent {
				t.Errorf("event %d: agent_end %q does not close open run %q", i, ev.Agent, open)
			}
			open = ""
		case core.EventChunk:
			if attributed && (open == "" || ev.Agent != open) {
				t.Errorf("event %d: chunk for %q outside its run (open %q)", i, ev.Agent, open)
			}
		case core.EventComplete, core.EventError:
			if open != "" {
				t.Errorf("event %d: %q while run of %q is open", i, ev.Type, open)
			}
		}
	}
}
