package intent

import (
	"strings"
	"sync/atomic"

	"github.com/hupe1980/agentrelay/logging"
)

// Route is the classification outcome for a message.
type Route string

const (
	// RouteSolo sends the message to a single general-purpose endpoint.
	RouteSolo Route = "solo"
	// RoutePipeline sends the message to the producer/reviewer pipeline.
	RoutePipeline Route = "pipeline"
)

// String implements fmt.Stringer.
func (r Route) String() string { return string(r) }

// Classifier decides where a message is routed. Implementations must be
// pure with respect to the message and safe for concurrent use.
type Classifier interface {
	Classify(message string) Route
}

// ClassifierFunc adapts an ordinary function to the Classifier interface.
type ClassifierFunc func(message string) Route

// Classify implements Classifier.
func (f ClassifierFunc) Classify(message string) Route { return f(message) }

// Static returns a classifier that always yields route.
func Static(route Route) Classifier {
	return ClassifierFunc(func(string) Route { return route })
}

// PhraseClassifierOptions configures a PhraseClassifier.
type PhraseClassifierOptions struct {
	Logger logging.Logger
}

// PhraseClassifier is the two-stage, case-insensitive substring heuristic:
//
//  1. no trigger phrase ⇒ RouteSolo
//  2. any exclusion phrase ⇒ RouteSolo; otherwise RoutePipeline iff at least
//     one action phrase and at least one subject phrase occur
//
// The phrase lists can be swapped at runtime with Update; classification
// never blocks on a swap.
type PhraseClassifier struct {
	phrases atomic.Pointer[Phrases]
	logger  logging.Logger
}

// NewPhraseClassifier creates a classifier for the given phrase lists.
func NewPhraseClassifier(p Phrases, optFns ...func(o *PhraseClassifierOptions)) *PhraseClassifier {
	opts := PhraseClassifierOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &PhraseClassifier{logger: logging.OrNoOp(opts.Logger)}
	c.Update(p)

	return c
}

// Update atomically replaces the phrase lists.
func (c *PhraseClassifier) Update(p Phrases) {
	n := p.Normalize()
	c.phrases.Store(&n)
	c.logger.Info("intent.phrases.update",
		"triggers", len(n.Triggers),
		"exclusions", len(n.Exclusions),
		"actions", len(n.Actions),
		"subjects", len(n.Subjects),
	)
	if n.Empty() {
		c.logger.Warn("intent.phrases.empty", "route", RouteSolo)
	}
}

// Phrases returns the phrase lists currently in use.
func (c *PhraseClassifier) Phrases() Phrases { return *c.phrases.Load() }

// Classify implements Classifier.
func (c *PhraseClassifier) Classify(message string) Route {
	p := c.phrases.Load()
	text := strings.ToLower(message)

	if !containsAny(text, p.Triggers) {
		return RouteSolo
	}

	if containsAny(text, p.Exclusions) {
		c.logger.Debug("intent.classify.excluded", "route", RouteSolo)
		return RouteSolo
	}

	if containsAny(text, p.Actions) && containsAny(text, p.Subjects) {
		return RoutePipeline
	}

	return RouteSolo
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
