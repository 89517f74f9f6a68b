package core

// RawKind classifies a raw generation event.
type RawKind int

const (
	// RawFragment is an incremental, partial piece of text.
	RawFragment RawKind = iota
	// RawFinal is a complete turn text; it closes out the preceding fragments
	// of the same producer.
	RawFinal
	// RawFailure reports a generation fault caught at the endpoint or
	// coordinator boundary. Err is always set.
	RawFailure
)

// String returns a short, log friendly name.
func (k RawKind) String() string {
	switch k {
	case RawFragment:
		return "fragment"
	case RawFinal:
		return "final"
	case RawFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// RawEvent is the low-level generation event produced by driving an endpoint
// or a pipeline. Source is the producing agent's identity.
type RawEvent struct {
	Kind   RawKind
	Source string
	Text   string
	Err    error
}

// NewFragment builds a fragment event.
func NewFragment(source, text string) RawEvent {
	return RawEvent{Kind: RawFragment, Source: source, Text: text}
}

// NewFinal builds a final message event.
func NewFinal(source, text string) RawEvent {
	return RawEvent{Kind: RawFinal, Source: source, Text: text}
}

// NewFailure builds a failure event.
func NewFailure(source string, err error) RawEvent {
	return RawEvent{Kind: RawFailure, Source: source, Err: err}
}
