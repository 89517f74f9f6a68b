package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
)

// Options configures the channel adapters.
type Options struct {
	// BufferSize of the canonical event channel. Defaults to 32.
	BufferSize int
	// Identity is attached to plain-mode chunks.
	Identity string
	Logger   logging.Logger
}

// Attributed normalizes a pipeline's raw events with agent framing.
func Attributed(ctx context.Context, raw <-chan core.RawEvent, dir *core.Directory, optFns ...func(o *Options)) <-chan core.Event {
	opts := buildOptions(optFns)
	return Run(ctx, raw, NewNormalizer(ModeAttributed, dir, ""), opts)
}

// Plain normalizes a single endpoint's raw events without framing.
func Plain(ctx context.Context, raw <-chan core.RawEvent, optFns ...func(o *Options)) <-chan core.Event {
	opts := buildOptions(optFns)
	return Run(ctx, raw, NewNormalizer(ModePlain, nil, opts.Identity), opts)
}

func buildOptions(optFns []func(o *Options)) Options {
	opts := Options{BufferSize: 32}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BufferSize < 1 {
		opts.BufferSize = 1
	}
	return opts
}

// Run pumps raw events through n onto a bounded channel until a terminal
// event was produced. The returned channel always ends with exactly one
// terminal event and is then closed. When ctx is done the stream is failed
// with core.ErrCanceled; events nobody reads any more are dropped.
func Run(ctx context.Context, raw <-chan core.RawEvent, n *Normalizer, opts Options) <-chan core.Event {
	out := make(chan core.Event, opts.BufferSize)
	logger := logging.OrNoOp(opts.Logger)

	go func() {
		defer close(out)
		defer drain(raw)

		emit := func(events []core.Event) bool {
			for _, ev := range events {
				select {
				case out <- ev:
					continue
				default:
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}

		for !n.Done() {
			select {
			case ev, ok := <-raw:
				if !ok {
					emit(n.Finish())
					logger.Debug("stream.complete", "mode", n.mode)
					return
				}
				if ev.Kind == core.RawFailure {
					logger.Warn("stream.failure", "mode", n.mode, "agent", ev.Source, "error", ev.Err)
				}
				if !emit(n.Push(ev)) {
					cancelled(out, n, ctx.Err())
					return
				}
			case <-ctx.Done():
				logger.Info("stream.canceled", "mode", n.mode, "agent", n.Current())
				cancelled(out, n, ctx.Err())
				return
			}
		}
	}()

	return out
}

// cancelGrace bounds how long the terminal event of a cancelled stream waits
// for the consumer.
const cancelGrace = 2 * time.Second

// cancelled offers the closing events without blocking, except the terminal
// one, which waits up to cancelGrace so a consumer that is still reading
// always sees it.
func cancelled(out chan<- core.Event, n *Normalizer, cause error) {
	for _, ev := range n.Fail(fmt.Errorf("%w: %v", core.ErrCanceled, cause)) {
		select {
		case out <- ev:
			continue
		default:
		}
		if !ev.IsTerminal() {
			continue
		}
		timer := time.NewTimer(cancelGrace)
		select {
		case out <- ev:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// drain discards the rest of raw in the background so its producer can
// finish and close it.
func drain(raw <-chan core.RawEvent) {
	go func() {
		for range raw {
		}
	}()
}
