package core

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrGeneration marks a model or transport failure during a turn.
	ErrGeneration = errors.New("generation failed")
	// ErrTimeout marks a model call that exceeded its deadline.
	ErrTimeout = errors.New("model call timed out")
	// ErrLivenessViolation marks a pipeline that hit its turn cap without
	// satisfying its termination predicate.
	ErrLivenessViolation = errors.New("pipeline liveness violation")
	// ErrEmptyTeam is returned when a pipeline is built without participants.
	ErrEmptyTeam = errors.New("pipeline requires at least one participant")
	// ErrCanceled marks a stream stopped because the caller went away.
	ErrCanceled = errors.New("request canceled")
)

// Reason codes attached to canonical error events.
const (
	CodeGeneration = "generation_failed"
	CodeTimeout    = "timeout"
	CodeLiveness   = "liveness_violation"
	CodeCanceled   = "canceled"
	CodeInternal   = "internal"
)

// ErrorCode maps an error onto its canonical reason code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLivenessViolation):
		return CodeLiveness
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.Is(err, ErrGeneration):
		return CodeGeneration
	default:
		return CodeInternal
	}
}

// NewID returns a random identifier used for runs, uploads and log
// correlation.
func NewID() string { return uuid.NewString() }
