package team

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
)

// State is the lifecycle state of a RoundRobin.
type State int

const (
	// StateReady means no run is in progress.
	StateReady State = iota
	// StateRunning means a run is in progress.
	StateRunning
	// StateDone means the last run ended because its termination rule matched.
	StateDone
	// StateFailed means the last run ended with a fault or hit the turn cap.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Participant is one turn-taking member of a pipeline. *agent.Endpoint
// satisfies it.
type Participant interface {
	Name() string
	Generate(ctx context.Context, task string, history []core.Message) <-chan core.RawEvent
}

// Options configures a RoundRobin.
type Options struct {
	// Termination is evaluated after every completed turn. Defaults to one
	// full round through all participants.
	Termination Termination
	// MaxTurns is the hard cap on turns per run. Exceeding it fails the run
	// with core.ErrLivenessViolation. Values below one fall back to
	// core.DefaultMaxTurns.
	MaxTurns   int
	BufferSize int
	Logger     logging.Logger
}

// RoundRobin runs a fixed, ordered list of participants turn by turn against
// a shared task. After the last participant it loops back to the first until
// the termination rule matches or the turn cap is exceeded.
//
// The transcript is shared by all participants and persists across runs, so
// follow-up tasks see earlier turns. Each run starts with the first
// participant. Runs are serialized; a second Run waits for the first.
type RoundRobin struct {
	participants []Participant
	termination  Termination
	maxTurns     int
	bufferSize   int
	logger       logging.Logger

	transcript *core.Transcript

	runMu sync.Mutex
	mu    sync.RWMutex
	state State
}

// NewRoundRobin creates a pipeline over participants.
func NewRoundRobin(participants []Participant, optFns ...func(o *Options)) (*RoundRobin, error) {
	if len(participants) == 0 {
		return nil, core.ErrEmptyTeam
	}

	opts := Options{
		MaxTurns:   core.DefaultMaxTurns,
		BufferSize: 16,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxTurns < 1 {
		opts.MaxTurns = core.DefaultMaxTurns
	}
	if opts.Termination == nil {
		opts.Termination = MaxRounds(1)
	}
	if opts.BufferSize < 1 {
		opts.BufferSize = 1
	}

	return &RoundRobin{
		participants: append([]Participant(nil), participants...),
		termination:  opts.Termination,
		maxTurns:     opts.MaxTurns,
		bufferSize:   opts.BufferSize,
		logger:       logging.OrNoOp(opts.Logger),
		transcript:   core.NewTranscript(),
		state:        StateReady,
	}, nil
}

// Participants returns the names of all participants in turn order.
func (r *RoundRobin) Participants() []string {
	names := make([]string, len(r.participants))
	for i, p := range r.participants {
		names[i] = p.Name()
	}
	return names
}

// Transcript returns the shared conversation history.
func (r *RoundRobin) Transcript() *core.Transcript { return r.transcript }

// State returns the current lifecycle state.
func (r *RoundRobin) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *RoundRobin) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}

// Run drives one run for task and returns the raw events of all turns in
// order: fragments and finals of each participant, and at most one failure,
// which is always the last event. The channel is closed when the run ends.
func (r *RoundRobin) Run(ctx context.Context, task string) <-chan core.RawEvent {
	out := make(chan core.RawEvent, r.bufferSize)

	go func() {
		defer close(out)

		r.runMu.Lock()
		defer r.runMu.Unlock()

		start := time.Now()
		r.setState(StateRunning)
		r.transcript.Append(core.UserMessage(task))

		turns, err := r.run(ctx, out)
		if err != nil {
			r.setState(StateFailed)
			r.logger.Warn("team.run.failed", "turns", turns, "duration", time.Since(start), "error", err)
			return
		}

		r.setState(StateDone)
		r.logger.Info("team.run.done", "turns", turns, "duration", time.Since(start))
	}()

	return out
}

// run executes turns until termination and returns the number of completed
// turns. A returned error has already been delivered as a failure event.
func (r *RoundRobin) run(ctx context.Context, out chan<- core.RawEvent) (int, error) {
	emit := func(ev core.RawEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	fail := func(source string, err error) error {
		emit(core.NewFailure(source, err))
		return err
	}

	limiter := core.NewTurnLimiter(r.maxTurns)

	for i := 0; ; i = (i + 1) % len(r.participants) {
		p := r.participants[i]

		if ctx.Err() != nil {
			return limiter.Taken(), fail(p.Name(), fmt.Errorf("%w: %v", core.ErrCanceled, ctx.Err()))
		}

		turn, err := limiter.Take()
		if err != nil {
			return limiter.Taken(), fail(p.Name(), err)
		}

		r.logger.Debug("team.turn.start", "agent", p.Name(), "turn", turn, "max_turns", limiter.Max())
		turnStart := time.Now()

		view := core.ViewFor(p.Name(), r.transcript.Messages())

		var (
			final    string
			gotFinal bool
			failed   error
		)

		for ev := range p.Generate(ctx, "", view) {
			switch ev.Kind {
			case core.RawFinal:
				final, gotFinal = ev.Text, true
			case core.RawFailure:
				failed = ev.Err
			}
			if !emit(ev) {
				break
			}
		}

		if failed != nil {
			r.logTurn(p.Name(), turn, time.Since(turnStart), failed)
			return turn - 1, failed
		}

		if !gotFinal {
			err := fmt.Errorf("%w: %s ended without a reply", core.ErrCanceled, p.Name())
			r.logTurn(p.Name(), turn, time.Since(turnStart), err)
			return turn - 1, fail(p.Name(), err)
		}

		r.transcript.Append(core.AgentMessage(p.Name(), final))
		r.logTurn(p.Name(), turn, time.Since(turnStart), nil)

		if r.termination.ShouldStop(Turn{Agent: p.Name(), Text: final, Index: turn, TeamSize: len(r.participants)}) {
			return turn, nil
		}
	}
}

func (r *RoundRobin) logTurn(agent string, turn int, dur time.Duration, err error) {
	if sl, ok := r.logger.(*logging.StructuredLogger); ok {
		sl.LogTurn(agent, turn, dur, err == nil, err)
		return
	}
	if err != nil {
		r.logger.Warn("team.turn.failed", "agent", agent, "turn", turn, "duration", dur, "error", err)
		return
	}
	r.logger.Debug("team.turn.end", "agent", agent, "turn", turn, "duration", dur)
}
