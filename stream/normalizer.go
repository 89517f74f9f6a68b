package stream

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentrelay/core"
)

// Mode selects how a Normalizer frames its output.
type Mode int

const (
	// ModeAttributed wraps every attribution run in agent_start/agent_end
	// and tags chunks with the producing agent. Used for pipelines.
	ModeAttributed Mode = iota
	// ModePlain emits chunks only, no framing. Used for solo sessions and
	// document analysis.
	ModePlain
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModePlain {
		return "plain"
	}
	return "attributed"
}

// Normalizer rewrites raw generation events into canonical events. It is a
// pure state machine: Push, Finish and Fail return the events to emit and
// never block. A Normalizer serves exactly one stream and is not safe for
// concurrent use.
//
// Output invariants:
//   - every chunk of an attribution run follows exactly one agent_start for
//     that agent (attributed mode)
//   - every run is closed by exactly one agent_end before the next run opens
//     or the stream terminates
//   - exactly one terminal event (complete or error); nothing after it
//   - text already streamed as fragments is never repeated when the final
//     message of the same turn arrives
//
// When a final does not extend the fragments of its turn, the final is sent
// as one more chunk, so the concatenated chunks of that run hold both the
// draft and the final text. agent_end.content is authoritative: it carries
// the run's text with the draft replaced by the final. Clients that render
// chunks live should replace the run's text with agent_end.content.
type Normalizer struct {
	mode     Mode
	dir      *core.Directory
	identity string

	current     string // agent of the open run, attributed mode only
	open        bool
	accumulated strings.Builder
	turnBase    int    // len(accumulated) when the current turn began
	pending     string // fragment text of the current turn
	done        bool
}

// NewNormalizer creates a normalizer. dir supplies agent_start metadata in
// attributed mode and may be nil. identity, if set, is attached to chunks in
// plain mode as a fixed pseudo-agent.
func NewNormalizer(mode Mode, dir *core.Directory, identity string) *Normalizer {
	return &Normalizer{mode: mode, dir: dir, identity: identity}
}

// Done reports whether a terminal event was produced.
func (n *Normalizer) Done() bool { return n.done }

// Current returns the agent of the open run, if any.
func (n *Normalizer) Current() string { return n.current }

// Push feeds one raw event.
func (n *Normalizer) Push(ev core.RawEvent) []core.Event {
	if n.done {
		return nil
	}

	switch ev.Kind {
	case core.RawFragment:
		out := n.attribute(ev.Source)
		if ev.Text == "" {
			return out
		}
		n.pending += ev.Text
		n.accumulated.WriteString(ev.Text)
		return append(out, n.chunk(ev.Text))

	case core.RawFinal:
		out := n.attribute(ev.Source)
		if delta, ok := strings.CutPrefix(ev.Text, n.pending); ok {
			if delta != "" {
				n.accumulated.WriteString(delta)
				out = append(out, n.chunk(delta))
			}
		} else {
			// the final text diverges from what was streamed: show it in
			// full and let it replace the streamed text of this turn
			base := n.accumulated.String()[:n.turnBase]
			n.accumulated.Reset()
			n.accumulated.WriteString(base)
			n.accumulated.WriteString(ev.Text)
			if ev.Text != "" {
				out = append(out, n.chunk(ev.Text))
			}
		}
		n.pending = ""
		n.turnBase = n.accumulated.Len()
		return out

	case core.RawFailure:
		agent := n.current
		if agent == "" {
			agent = ev.Source
		}
		err := ev.Err
		if err == nil {
			err = fmt.Errorf("%w: %s failed without a reason", core.ErrGeneration, ev.Source)
		}
		return n.terminate(core.NewErrorEvent(agent, err))

	default:
		return nil
	}
}

// Finish ends a stream whose producer completed normally.
func (n *Normalizer) Finish() []core.Event {
	if n.done {
		return nil
	}
	return n.terminate(core.NewCompleteEvent())
}

// Fail ends a stream because of a fault outside the producer, for example
// the caller going away.
func (n *Normalizer) Fail(err error) []core.Event {
	if n.done {
		return nil
	}
	return n.terminate(core.NewErrorEvent(n.current, err))
}

func (n *Normalizer) terminate(final core.Event) []core.Event {
	out := n.closeRun()
	n.done = true
	return append(out, final)
}

// attribute opens a run for source, closing the previous one on hand-off.
func (n *Normalizer) attribute(source string) []core.Event {
	if n.mode == ModePlain {
		return nil
	}
	if n.open && n.current == source {
		return nil
	}

	out := n.closeRun()
	n.current = source
	n.open = true

	return append(out, core.NewAgentStartEvent(source, n.dir.Lookup(source)))
}

func (n *Normalizer) closeRun() []core.Event {
	if !n.open {
		return nil
	}

	ev := core.NewAgentEndEvent(n.current, strings.TrimSpace(n.accumulated.String()))

	n.open = false
	n.current = ""
	n.accumulated.Reset()
	n.turnBase = 0
	n.pending = ""

	return []core.Event{ev}
}

func (n *Normalizer) chunk(text string) core.Event {
	if n.mode == ModePlain {
		return core.NewChunkEvent(n.identity, text)
	}
	return core.NewChunkEvent(n.current, text)
}
