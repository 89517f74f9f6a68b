package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/model"
)

// DegradedReplyFormat is the reply GenerateSync returns when a turn fails.
const DegradedReplyFormat = "抱歉，处理您的请求时出现了错误：%v"

// EndpointOptions configures an Endpoint instance.
//
// Use functional options with NewEndpoint to override defaults.
type EndpointOptions struct {
	Instruction        Instruction
	Info               *core.AgentInfo
	EnableStreaming    bool
	CallTimeout        time.Duration
	MaxHistoryMessages int
	BufferSize         int
	Logger             logging.Logger
}

// Endpoint is one configured persona: role prompt, generation capability and
// display metadata. It is immutable after construction and safe for
// concurrent use; per-session serialization is the caller's concern.
//
// Every model or transport fault is caught at this boundary. Streaming
// callers receive a core.RawFailure event, sync callers a degraded text. The
// output channel is always closed, so no external cleanup is ever required.
type Endpoint struct {
	name               string
	llm                model.Model
	instruction        Instruction
	info               core.AgentInfo
	enableStreaming    bool
	callTimeout        time.Duration
	maxHistoryMessages int
	bufferSize         int
	logger             logging.Logger
}

// NewEndpoint creates a new endpoint with sensible defaults.
//
// The endpoint is initialized with:
//   - A generic "helpful assistant" instruction naming the endpoint
//   - Streaming enabled
//   - A two minute deadline per model call
//   - A 20-message conversation history limit
//   - Display metadata from core.FallbackInfo
func NewEndpoint(name string, llm model.Model, optFns ...func(o *EndpointOptions)) *Endpoint {
	opts := EndpointOptions{
		Instruction:        NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		EnableStreaming:    true,
		CallTimeout:        2 * time.Minute,
		MaxHistoryMessages: 20,
		BufferSize:         16,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	info := core.FallbackInfo(name)
	if opts.Info != nil {
		info = *opts.Info
	}

	if opts.BufferSize < 1 {
		opts.BufferSize = 1
	}

	return &Endpoint{
		name:               name,
		llm:                llm,
		instruction:        opts.Instruction,
		info:               info,
		enableStreaming:    opts.EnableStreaming,
		callTimeout:        opts.CallTimeout,
		maxHistoryMessages: opts.MaxHistoryMessages,
		bufferSize:         opts.BufferSize,
		logger:             logging.OrNoOp(opts.Logger),
	}
}

// Name returns the endpoint's identity. Raw events it produces carry this
// name as their source.
func (e *Endpoint) Name() string { return e.name }

// Info returns the endpoint's display metadata.
func (e *Endpoint) Info() core.AgentInfo { return e.info }

// Model returns the underlying generation capability.
func (e *Endpoint) Model() model.Model { return e.llm }

// Generate runs one turn. history is the conversation seen so far from this
// endpoint's perspective (oldest first); when task is non-empty it is
// appended as the newest user message. Callers whose history already ends
// with the task pass an empty task.
//
// The returned channel yields zero or more fragments followed by exactly one
// final or failure event, then closes. Cancelling ctx stops the model call;
// events that can no longer be delivered are dropped.
func (e *Endpoint) Generate(ctx context.Context, task string, history []core.Message) <-chan core.RawEvent {
	out := make(chan core.RawEvent, e.bufferSize)

	go func() {
		defer close(out)

		emit := func(ev core.RawEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		start := time.Now()
		text, err := e.run(ctx, task, history, emit)
		if err != nil {
			e.logger.Warn("agent.generate.failed", "agent", e.name, "duration", time.Since(start), "error", err)
			emit(core.NewFailure(e.name, err))
			return
		}

		e.logger.Debug("agent.generate.end", "agent", e.name, "duration", time.Since(start), "chars", len(text))
		emit(core.NewFinal(e.name, text))
	}()

	return out
}

// run drives the model call, forwarding fragments through emit, and returns
// the final text of the turn.
func (e *Endpoint) run(
	ctx context.Context,
	task string,
	history []core.Message,
	emit func(core.RawEvent) bool,
) (_ string, err error) {
	callCtx := ctx
	if e.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
	}

	instructions, err := e.instruction.Resolve(callCtx)
	if err != nil {
		return "", fmt.Errorf("%w: %s: resolve instruction: %v", core.ErrGeneration, e.name, err)
	}

	req := model.Request{
		Instructions: instructions,
		Messages:     e.buildMessages(task, history),
		Stream:       e.enableStreaming,
	}

	e.logger.Debug("agent.generate.start", "agent", e.name, "messages", len(req.Messages), "stream", req.Stream)

	var (
		streamed strings.Builder
		final    string
		gotFinal bool
		genErr   error
		usage    *model.TokenUsage
	)

	callStart := time.Now()
	defer func() { e.logCall(usage, time.Since(callStart), err) }()

	respCh, errCh := e.llm.Generate(callCtx, req)

	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Partial {
				if resp.Text == "" {
					continue
				}
				streamed.WriteString(resp.Text)
				if !emit(core.NewFragment(e.name, resp.Text)) {
					return "", e.classify(ctx, ctx.Err())
				}
				continue
			}
			final = resp.Text
			gotFinal = true
			if resp.Usage != nil {
				usage = resp.Usage
			}
		case cerr, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if cerr != nil && genErr == nil {
				genErr = cerr
			}
		case <-callCtx.Done():
			return "", e.classify(ctx, callCtx.Err())
		}
	}

	if genErr != nil {
		return "", e.classify(ctx, genErr)
	}

	if !gotFinal {
		final = streamed.String()
	}

	return final, nil
}

// logCall records the model call when the logger is structured. Providers
// that report no usage are logged with zero tokens.
func (e *Endpoint) logCall(usage *model.TokenUsage, dur time.Duration, err error) {
	sl, ok := e.logger.(*logging.StructuredLogger)
	if !ok {
		return
	}
	tokens := 0
	if usage != nil {
		tokens = usage.TotalTokens
		if tokens == 0 {
			tokens = usage.PromptTokens + usage.CompletionTokens
		}
	}
	sl.LogLLMCall(e.llm.Info().Name, tokens, dur, err == nil, err)
}

// classify wraps err with the sentinel that best describes why the turn
// failed.
func (e *Endpoint) classify(parent context.Context, err error) error {
	switch {
	case parent.Err() != nil:
		return fmt.Errorf("%w: %s: %v", core.ErrCanceled, e.name, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: no reply within %s", core.ErrTimeout, e.name, e.callTimeout)
	default:
		return fmt.Errorf("%w: %s: %v", core.ErrGeneration, e.name, err)
	}
}

// buildMessages trims history to the configured window and appends task.
func (e *Endpoint) buildMessages(task string, history []core.Message) []core.Message {
	if e.maxHistoryMessages > 0 && len(history) > e.maxHistoryMessages {
		history = history[len(history)-e.maxHistoryMessages:]
	}

	msgs := make([]core.Message, 0, len(history)+1)
	msgs = append(msgs, history...)

	if task != "" {
		msgs = append(msgs, core.UserMessage(task))
	}

	return msgs
}

// GenerateSync runs one turn to completion and returns its final text. A
// failed turn yields a degraded, human readable error text instead of an
// error value.
func (e *Endpoint) GenerateSync(ctx context.Context, task string, history []core.Message) string {
	var (
		text   string
		failed error
	)

	for ev := range e.Generate(ctx, task, history) {
		switch ev.Kind {
		case core.RawFinal:
			text = ev.Text
		case core.RawFailure:
			failed = ev.Err
		}
	}

	if failed != nil {
		return fmt.Sprintf(DegradedReplyFormat, failed)
	}

	if text == "" && ctx.Err() != nil {
		return fmt.Sprintf(DegradedReplyFormat, ctx.Err())
	}

	return text
}
