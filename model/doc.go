// Package model defines the provider-agnostic surface Parley uses to
// drive text generation.
//
// Core goals:
//   - Normalize every backend to one return shape: a tagged Outcome that
//     is either a FinalAnswer or a ToolCall, decided by a single
//     classification step after each model call
//   - Keep request shapes minimal and transport independent
//   - Report backend failures as typed errors instead of throwing them
//     silently into the orchestration loop
//   - Facilitate scripted mocking for tests (MockBackend)
//
// Providers (OpenAI, Anthropic) implement the Backend interface in their
// own subpackages so the orchestrator stays decoupled from vendor SDKs.
package model
