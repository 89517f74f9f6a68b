package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentrelay/model"
)

// Step scripts one Generate call of a ScriptedModel.
type Step struct {
	Fragments []string      // partial texts, streamed when the request asks for it
	Final     string        // final text; defaults to the joined fragments
	Err       error         // reported after the fragments instead of a final
	Hang      bool          // block until the context is done
	Delay     time.Duration // pause before each response
	Usage     *model.TokenUsage
}

// Reply scripts a plain final answer.
func Reply(text string) Step { return Step{Final: text} }

// Stream scripts fragments followed by their concatenation as final text.
func Stream(fragments ...string) Step { return Step{Fragments: fragments} }

// Fail scripts a call that streams fragments and then errors.
func Fail(err error, fragments ...string) Step { return Step{Fragments: fragments, Err: err} }

// Hang scripts a call that never answers.
func Hang() Step { return Step{Hang: true} }

// ScriptedModel is a model.Model that plays back scripted steps, one per
// Generate call, and records every request it receives. When the script is
// exhausted the fallback step is used.
type ScriptedModel struct {
	mu       sync.Mutex
	steps    []Step
	fallback Step
	requests []model.Request
}

// NewScriptedModel creates a model playing back steps in order.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{steps: steps, fallback: Reply("ok")}
}

// Then appends steps to the script (chainable).
func (m *ScriptedModel) Then(steps ...Step) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
	return m
}

// Otherwise sets the step used once the script is exhausted (chainable).
func (m *ScriptedModel) Otherwise(step Step) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = step
	return m
}

// Requests returns a copy of all requests received so far.
func (m *ScriptedModel) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.requests...)
}

// Calls returns the number of Generate calls so far.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *ScriptedModel) next(req model.Request) Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.steps) == 0 {
		return m.fallback
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	return step
}

// Generate implements model.Model.
func (m *ScriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	step := m.next(req)
	respCh := make(chan model.Response, len(step.Fragments)+1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		send := func(r model.Response) bool {
			if step.Delay > 0 {
				select {
				case <-time.After(step.Delay):
				case <-ctx.Done():
					errCh <- ctx.Err()
					return false
				}
			}
			select {
			case respCh <- r:
				return true
			case <-ctx.Done():
				errCh <- ctx.Err()
				return false
			}
		}

		if step.Hang {
			<-ctx.Done()
			errCh <- ctx.Err()
			return
		}

		if req.Stream {
			for _, f := range step.Fragments {
				if !send(model.Response{Partial: true, Text: f}) {
					return
				}
			}
		}

		if step.Err != nil {
			errCh <- step.Err
			return
		}

		final := step.Final
		if final == "" {
			final = strings.Join(step.Fragments, "")
		}
		send(model.Response{Text: final, FinishReason: "stop", Usage: step.Usage})
	}()

	return respCh, errCh
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info { return model.Info{Name: "scripted", Provider: "test"} }
