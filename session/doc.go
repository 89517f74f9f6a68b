// Package session owns the mapping from session id to conversation target.
//
// A Target is a closed sum type with exactly two cases: *Solo (one endpoint
// plus its history) and *Pipeline (a team.RoundRobin). The Registry creates
// targets lazily on the first message of a session, using an
// intent.Classifier to pick the case, and returns the same target for every
// later message (sticky classification). Creation is serialized per key via
// sharded locks, so concurrent first messages never build two targets.
//
// Targets live for the process lifetime or until Clear.
package session
