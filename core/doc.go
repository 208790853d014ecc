// Package core defines the shared data model of the Parley orchestration
// engine: conversation messages, tool requests/results, output chunks and
// the typed error kinds every component reports through.
//
// Core goals:
//   - Keep message and chunk shapes minimal and transport independent
//   - Represent every failure as a Kind-tagged error so the orchestrator
//     can surface it verbatim to clients without string matching
//   - Define the storage collaborator interface (HistoryStore) consumed
//     by the orchestrator without binding it to a concrete store
//
// Higher layers (protocol, registry, model, orchestrator, stream) depend
// on this package; it depends on nothing inside the module.
package core
