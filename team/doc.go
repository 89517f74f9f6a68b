// Package team implements the pipeline coordinator: an ordered list of
// endpoints taking turns on a shared task until a termination rule matches.
//
// A RoundRobin moves READY → RUNNING → DONE | FAILED per run. The rule is
// evaluated after every completed turn; a hard turn cap (default 50) turns
// a rule that never matches into a core.ErrLivenessViolation failure
// instead of an endless loop.
package team
