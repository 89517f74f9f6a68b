// Package core provides the foundational domain types shared by every layer
// of agentrelay. It defines:
//
//   - Canonical events (the client-facing agent_start / chunk / agent_end /
//     complete / error protocol)
//   - Raw generation events (fragments, final messages and failures produced
//     by endpoints and pipelines)
//   - The agent Directory holding presentation metadata
//   - Conversation Messages and the process-local Transcript
//   - Error sentinels and their canonical reason codes
//
// The package keeps model vendors, transports and orchestration out of scope
// so that every other package can depend on it without cycles.
package core
