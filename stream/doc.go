// Package stream turns the raw generation events of endpoints and pipelines
// into agentrelay's canonical event protocol:
//
//	agent_start{agent, agent_info}  chunk{agent, content}  agent_end{agent, content}
//	complete{}                      error{message, agent?, code}
//
// The Normalizer holds the protocol rules as a pure state machine; Run,
// Attributed and Plain wrap it in a goroutine between bounded channels so
// events reach the caller as they happen. WriteNDJSON and WriteSSE put
// canonical events on the wire.
package stream
