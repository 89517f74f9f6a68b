package team

import (
	"strings"
)

// Turn describes one completed turn as seen by a termination rule.
type Turn struct {
	Agent    string // producing endpoint
	Text     string // final text of the turn
	Index    int    // 1-based turn number within the current run
	TeamSize int    // number of participants
}

// Round returns the 1-based round the turn belongs to.
func (t Turn) Round() int {
	if t.TeamSize <= 0 {
		return t.Index
	}
	return (t.Index-1)/t.TeamSize + 1
}

// Termination decides, after each completed turn, whether the run is done.
type Termination interface {
	ShouldStop(turn Turn) bool
}

// TerminationFunc adapts an ordinary function to the Termination interface.
type TerminationFunc func(turn Turn) bool

// ShouldStop implements Termination.
func (f TerminationFunc) ShouldStop(turn Turn) bool { return f(turn) }

// SourceMatch stops the run after any of the given agents completed a turn.
func SourceMatch(agents ...string) Termination {
	set := make(map[string]struct{}, len(agents))
	for _, a := range agents {
		set[a] = struct{}{}
	}
	return TerminationFunc(func(t Turn) bool {
		_, ok := set[t.Agent]
		return ok
	})
}

// TextMention stops the run once a turn's text contains keyword, e.g. an
// explicit "APPROVE" from a reviewer.
func TextMention(keyword string) Termination {
	return TerminationFunc(func(t Turn) bool {
		return keyword != "" && strings.Contains(t.Text, keyword)
	})
}

// MaxRounds stops the run after n complete rounds through all participants.
func MaxRounds(n int) Termination {
	return TerminationFunc(func(t Turn) bool {
		size := t.TeamSize
		if size <= 0 {
			size = 1
		}
		return n > 0 && t.Index >= n*size
	})
}

// Any stops the run as soon as one of conds does. Nil conditions are skipped.
func Any(conds ...Termination) Termination {
	return TerminationFunc(func(t Turn) bool {
		for _, c := range conds {
			if c != nil && c.ShouldStop(t) {
				return true
			}
		}
		return false
	})
}

// Never is a rule that never matches; the turn cap alone ends the run.
func Never() Termination {
	return TerminationFunc(func(Turn) bool { return false })
}
