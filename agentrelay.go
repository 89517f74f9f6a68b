// Package agentrelay routes chat messages to LLM-backed agents and relays
// their output as one uniform event stream. Most applications interact with
// this package by:
//  1. Building a session.Registry (or calling FromConfig)
//  2. Creating a Relay via New()
//  3. Calling Send for a streamed reply or SendSync for a plain one
//
// The façade owns no per-session state itself: routing and conversation
// state live in the registry, normalization in the stream package. All
// defaults are safe for local development and testing.
package agentrelay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/intent"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/session"
	"github.com/hupe1980/agentrelay/stream"
)

// ErrNoAnalyst is reported by Analyze when no analyst factory is configured.
var ErrNoAnalyst = errors.New("document analysis is not configured")

// Options configures the Relay instance.
type Options struct {
	// Directory resolves agent display metadata for attributed streams.
	// Defaults to an empty directory, which yields fallback metadata.
	Directory *core.Directory

	// Analyst builds a transient endpoint grounded on one document. Analyze
	// fails with ErrNoAnalyst when it is nil.
	Analyst func(document string) (*agent.Endpoint, error)

	// FallbackReply is returned by SendSync when no agent produced text.
	FallbackReply string

	// MaxConcurrent limits the number of relay calls that may generate
	// simultaneously across all sessions. Zero means unlimited.
	MaxConcurrent int

	// BufferSize of the canonical event channels.
	BufferSize int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

type activeRun struct {
	sessionID string
	cancel    context.CancelFunc
}

// Relay is the high-level façade over the session registry and the stream
// normalizer. It is safe for concurrent use.
type Relay struct {
	registry      *session.Registry
	directory     *core.Directory
	analyst       func(document string) (*agent.Endpoint, error)
	fallbackReply string
	bufferSize    int
	logger        logging.Logger

	slots chan struct{}

	mu     sync.Mutex
	active map[string]activeRun
}

// New creates a new Relay over registry.
func New(registry *session.Registry, optFns ...func(o *Options)) *Relay {
	opts := Options{
		FallbackReply: "抱歉，没有收到有效的回复。",
		BufferSize:    32,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Directory == nil {
		opts.Directory = core.NewDirectory(nil)
	}
	if opts.BufferSize < 1 {
		opts.BufferSize = 1
	}

	r := &Relay{
		registry:      registry,
		directory:     opts.Directory,
		analyst:       opts.Analyst,
		fallbackReply: opts.FallbackReply,
		bufferSize:    opts.BufferSize,
		logger:        logging.ForComponent(opts.Logger, "relay"),
		active:        make(map[string]activeRun),
	}
	if opts.MaxConcurrent > 0 {
		r.slots = make(chan struct{}, opts.MaxConcurrent)
	}

	return r
}

// Registry returns the underlying session registry.
func (r *Relay) Registry() *session.Registry { return r.registry }

// Directory returns the agent display metadata used for attribution.
func (r *Relay) Directory() *core.Directory { return r.directory }

// Send routes message within sessionID and streams the reply. The returned
// channel always ends with exactly one complete or error event and is then
// closed. A new session is classified on its first message and keeps that
// route until it is cleared.
//
// Calls on the same session are serialized; calls on different sessions run
// concurrently. Cancelling ctx stops the reply with a canceled error event.
func (r *Relay) Send(ctx context.Context, sessionID, message string) <-chan core.Event {
	out := make(chan core.Event, r.bufferSize)
	runID := core.NewID()
	ctx, cancel := context.WithCancel(ctx)
	r.track(runID, sessionID, cancel)

	go func() {
		defer close(out)
		defer r.untrack(runID)
		defer cancel()

		logger := logging.ForSession(r.logger, sessionID, runID)
		start := time.Now()

		if ctx.Err() != nil {
			r.failEarly(ctx, out, ctx.Err())
			return
		}

		target, err := r.registry.Resolve(sessionID, message)
		if err != nil {
			logger.Error("relay.resolve.failed", "error", err)
			r.failEarly(ctx, out, err)
			return
		}

		release, err := r.acquire(ctx, target)
		if err != nil {
			r.failEarly(ctx, out, err)
			return
		}
		defer release()

		logger.Info("relay.send.start", "route", target.Route().String(), "agents", agentsOf(target))

		var events <-chan core.Event
		switch t := target.(type) {
		case *session.Solo:
			events = stream.Plain(ctx, t.Send(ctx, message), r.streamOptions(logger))
		case *session.Pipeline:
			events = stream.Attributed(ctx, t.Run(ctx, message), r.directory, r.streamOptions(logger))
		default:
			r.failEarly(ctx, out, fmt.Errorf("unsupported target %T", target))
			return
		}

		last, turns := r.forward(ctx, out, events)
		r.logDone(logger, target.Route().String(), start, last, turns)
	}()

	return out
}

// SendSync runs message to completion and returns the reply text. It never
// fails: errors are folded into a degraded reply text. A session that does
// not exist yet is created as a solo conversation; an existing pipeline
// session replies with the last agent's final text.
func (r *Relay) SendSync(ctx context.Context, sessionID, message string) string {
	target, err := r.registry.ResolveRoute(sessionID, intent.RouteSolo)
	if err != nil {
		return fmt.Sprintf(agent.DegradedReplyFormat, err)
	}

	release, err := r.acquire(ctx, target)
	if err != nil {
		return fmt.Sprintf(agent.DegradedReplyFormat, err)
	}
	defer release()

	var text string
	switch t := target.(type) {
	case *session.Solo:
		text = t.SendSync(ctx, message)
	case *session.Pipeline:
		var failed error
		for ev := range t.Run(ctx, message) {
			switch ev.Kind {
			case core.RawFinal:
				text = ev.Text
			case core.RawFailure:
				failed = ev.Err
			}
		}
		if text == "" && failed != nil {
			text = fmt.Sprintf(agent.DegradedReplyFormat, failed)
		}
	}

	if text == "" {
		return r.fallbackReply
	}
	return text
}

// Analyze answers question about document with a transient analyst
// endpoint. The exchange is not recorded in any session.
func (r *Relay) Analyze(ctx context.Context, sessionID, question, document string) <-chan core.Event {
	runID := core.NewID()
	logger := logging.ForSession(r.logger, sessionID, runID)

	if r.analyst == nil {
		return r.failed(ErrNoAnalyst)
	}
	endpoint, err := r.analyst(document)
	if err != nil {
		logger.Error("relay.analyst.failed", "error", err)
		return r.failed(err)
	}

	out := make(chan core.Event, r.bufferSize)
	ctx, cancel := context.WithCancel(ctx)
	r.track(runID, sessionID, cancel)

	go func() {
		defer close(out)
		defer r.untrack(runID)
		defer cancel()

		release, err := r.acquireSlot(ctx)
		if err != nil {
			r.failEarly(ctx, out, err)
			return
		}
		defer release()

		start := time.Now()
		logger.Info("relay.analyze.start", "agent", endpoint.Name(), "document_bytes", len(document))

		events := stream.Plain(ctx, endpoint.Generate(ctx, question, nil), r.streamOptions(logger))
		last, turns := r.forward(ctx, out, events)
		r.logDone(logger, "analysis", start, last, turns)
	}()

	return out
}

// Clear forgets sessionID and cancels its in-flight calls. It reports
// whether a session existed; clearing an unknown session is not an error.
func (r *Relay) Clear(sessionID string) bool {
	r.mu.Lock()
	for _, run := range r.active {
		if run.sessionID == sessionID {
			run.cancel()
		}
	}
	r.mu.Unlock()

	return r.registry.Clear(sessionID)
}

// Count returns the number of live sessions.
func (r *Relay) Count() int { return r.registry.Count() }

// Sessions returns the ids of all live sessions in sorted order.
func (r *Relay) Sessions() []string { return r.registry.IDs() }

// Active returns the number of relay calls currently in flight.
func (r *Relay) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

func (r *Relay) track(runID, sessionID string, cancel context.CancelFunc) {
	r.mu.Lock()
	r.active[runID] = activeRun{sessionID: sessionID, cancel: cancel}
	r.mu.Unlock()
}

func (r *Relay) untrack(runID string) {
	r.mu.Lock()
	delete(r.active, runID)
	r.mu.Unlock()
}

// acquire takes the session's turn lock and then a global slot.
func (r *Relay) acquire(ctx context.Context, target session.Target) (func(), error) {
	unlock, err := target.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	release, err := r.acquireSlot(ctx)
	if err != nil {
		unlock()
		return nil, err
	}
	return func() {
		release()
		unlock()
	}, nil
}

func (r *Relay) acquireSlot(ctx context.Context) (func(), error) {
	if r.slots == nil {
		return func() {}, nil
	}
	select {
	case r.slots <- struct{}{}:
		return func() { <-r.slots }, nil
	case <-ctx.Done():
		return nil, core.ErrCanceled
	}
}

// agentsOf names the agents that answer within target.
func agentsOf(target session.Target) []string {
	switch t := target.(type) {
	case *session.Solo:
		return []string{t.Endpoint().Name()}
	case *session.Pipeline:
		return t.Team().Participants()
	}
	return nil
}

func (r *Relay) streamOptions(logger logging.Logger) func(o *stream.Options) {
	return func(o *stream.Options) {
		o.BufferSize = r.bufferSize
		o.Logger = logger
	}
}

// forward copies events to out and returns the last one together with the
// number of closed agent runs. Once ctx is done, events that do not fit into
// out are dropped, except the terminal event, which waits up to
// terminalGrace for the consumer. events is always drained.
func (r *Relay) forward(ctx context.Context, out chan<- core.Event, events <-chan core.Event) (core.Event, int) {
	var (
		last  core.Event
		turns int
	)
	for ev := range events {
		last = ev
		if ev.Type == core.EventAgentEnd {
			turns++
		}
		deliver(ctx, out, ev)
	}
	return last, turns
}

// terminalGrace bounds how long a terminal event waits for a consumer after
// the call was cancelled.
const terminalGrace = 2 * time.Second

func deliver(ctx context.Context, out chan<- core.Event, ev core.Event) {
	select {
	case out <- ev:
		return
	default:
	}

	select {
	case out <- ev:
		return
	case <-ctx.Done():
	}

	if !ev.IsTerminal() {
		return
	}

	timer := time.NewTimer(terminalGrace)
	defer timer.Stop()
	select {
	case out <- ev:
	case <-timer.C:
	}
}

func (r *Relay) failEarly(ctx context.Context, out chan<- core.Event, err error) {
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		err = core.ErrCanceled
	}
	select {
	case out <- core.NewErrorEvent("", err):
	default:
	}
}

func (r *Relay) failed(err error) <-chan core.Event {
	out := make(chan core.Event, 1)
	out <- core.NewErrorEvent("", err)
	close(out)
	return out
}

func (r *Relay) logDone(logger logging.Logger, mode string, start time.Time, last core.Event, turns int) {
	success := last.Type == core.EventComplete
	var err error
	if !success && last.Message != "" {
		err = errors.New(last.Message)
	}
	if sl, ok := logger.(*logging.StructuredLogger); ok {
		sl.LogRun(mode, turns, time.Since(start), success, err)
		return
	}
	if success {
		logger.Info("relay.send.done", "mode", mode, "turns", turns, "duration", time.Since(start))
		return
	}
	logger.Warn("relay.send.failed", "mode", mode, "duration", time.Since(start), "error", err)
}
