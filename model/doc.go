// Package model defines the provider‑agnostic abstractions and concrete
// helpers for interacting with language models inside agentrelay.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI compatible endpoints, Anthropic) implement the Model
// interface from this package so endpoints remain decoupled from vendor SDKs.
package model
