package core

import "fmt"

// DefaultMaxTurns caps a pipeline run when no positive cap is configured.
const DefaultMaxTurns = 50

// TurnLimiter hands out the turns of one pipeline run against a hard cap.
// A run owns its limiter; it is not safe for concurrent use.
type TurnLimiter struct {
	max   int
	taken int
}

// NewTurnLimiter creates a limiter allowing max turns. A cap below one falls
// back to DefaultMaxTurns; the cap cannot be switched off.
func NewTurnLimiter(max int) *TurnLimiter {
	if max < 1 {
		max = DefaultMaxTurns
	}
	return &TurnLimiter{max: max}
}

// Take claims the next turn and returns its 1-based index. Once all turns
// are spent it returns an error wrapping ErrLivenessViolation.
func (l *TurnLimiter) Take() (int, error) {
	if l.taken >= l.max {
		return l.taken, fmt.Errorf("%w: no termination after %d turns", ErrLivenessViolation, l.max)
	}
	l.taken++
	return l.taken, nil
}

// Taken returns the number of turns claimed so far.
func (l *TurnLimiter) Taken() int { return l.taken }

// Max returns the cap.
func (l *TurnLimiter) Max() int { return l.max }
