package session

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/intent"
	"github.com/hupe1980/agentrelay/team"
)

// Target is what a session resolves to. The only implementations are *Solo
// and *Pipeline; callers dispatch with a type switch over those two cases.
type Target interface {
	// Route reports which case the target is.
	Route() intent.Route
	// Acquire takes the target's single-active-turn lock. Calls on one
	// session never interleave; the returned func releases the lock.
	Acquire(ctx context.Context) (release func(), err error)
	// Created returns the creation time.
	Created() time.Time

	sealed()
}

// turnLock is a context aware mutex.
type turnLock chan struct{}

func newTurnLock() turnLock { return make(turnLock, 1) }

func (l turnLock) acquire(ctx context.Context) (func(), error) {
	select {
	case l <- struct{}{}:
		return func() { <-l }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for session turn: %v", core.ErrCanceled, ctx.Err())
	}
}

// Solo is a single endpoint with its own conversation history.
type Solo struct {
	endpoint *agent.Endpoint
	history  *core.Transcript
	lock     turnLock
	created  time.Time
}

// NewSolo creates a solo target around endpoint.
func NewSolo(endpoint *agent.Endpoint) *Solo {
	return &Solo{
		endpoint: endpoint,
		history:  core.NewTranscript(),
		lock:     newTurnLock(),
		created:  time.Now(),
	}
}

// Route implements Target.
func (s *Solo) Route() intent.Route { return intent.RouteSolo }

// Acquire implements Target.
func (s *Solo) Acquire(ctx context.Context) (func(), error) { return s.lock.acquire(ctx) }

// Created implements Target.
func (s *Solo) Created() time.Time { return s.created }

func (s *Solo) sealed() {}

// Endpoint returns the endpoint serving the session.
func (s *Solo) Endpoint() *agent.Endpoint { return s.endpoint }

// History returns the session's conversation history.
func (s *Solo) History() *core.Transcript { return s.history }

// Send runs one turn for message and returns the endpoint's raw events. The
// exchange is recorded in the history once the turn completes successfully.
// Callers hold the lock from Acquire for the duration of the stream.
func (s *Solo) Send(ctx context.Context, message string) <-chan core.RawEvent {
	prior := s.history.Messages()
	in := s.endpoint.Generate(ctx, message, prior)
	out := make(chan core.RawEvent, cap(in))

	go func() {
		defer close(out)
		for ev := range in {
			if ev.Kind == core.RawFinal {
				s.history.Append(core.UserMessage(message), core.AgentMessage(s.endpoint.Name(), ev.Text))
			}
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}
	}()

	return out
}

// SendSync runs one turn for message and returns the final text, or a
// degraded error text when the turn fails.
func (s *Solo) SendSync(ctx context.Context, message string) string {
	var (
		text   string
		failed error
	)
	for ev := range s.Send(ctx, message) {
		switch ev.Kind {
		case core.RawFinal:
			text = ev.Text
		case core.RawFailure:
			failed = ev.Err
		}
	}
	if failed != nil {
		return fmt.Sprintf(agent.DegradedReplyFormat, failed)
	}
	return text
}

// Pipeline is a session served by a multi-agent coordinator.
type Pipeline struct {
	team    *team.RoundRobin
	lock    turnLock
	created time.Time
}

// NewPipeline creates a pipeline target around rr.
func NewPipeline(rr *team.RoundRobin) *Pipeline {
	return &Pipeline{team: rr, lock: newTurnLock(), created: time.Now()}
}

// Route implements Target.
func (p *Pipeline) Route() intent.Route { return intent.RoutePipeline }

// Acquire implements Target.
func (p *Pipeline) Acquire(ctx context.Context) (func(), error) { return p.lock.acquire(ctx) }

// Created implements Target.
func (p *Pipeline) Created() time.Time { return p.created }

func (p *Pipeline) sealed() {}

// Team returns the coordinator serving the session.
func (p *Pipeline) Team() *team.RoundRobin { return p.team }

// Run drives one pipeline run for task.
func (p *Pipeline) Run(ctx context.Context, task string) <-chan core.RawEvent {
	return p.team.Run(ctx, task)
}
