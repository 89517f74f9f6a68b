// Package agent contains the Endpoint, agentrelay's single configured
// persona: a role prompt, a generation capability (model.Model) and display
// metadata. The package focuses on three concerns:
//
//  1. Turn execution: Generate streams core.RawEvent values, GenerateSync
//     blocks for the final text
//  2. Fault containment: every model or transport failure is caught at the
//     endpoint boundary and surfaced as a value, never as a panic or an
//     unclosed channel
//  3. Instructions: static text, runtime providers or text/template prompts
//
// Execution Model:
//   - Each Generate call runs in its own goroutine with a per-call deadline
//   - History is trimmed to a fixed window before the request is built
//   - Endpoints hold no conversation state; transcripts belong to the
//     session target that drives the endpoint
//
// Pipelines of endpoints live in package team.
package agent
