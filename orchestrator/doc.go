// Package orchestrator drives the iterative response loop that turns one
// inbound user message into a final streamed answer.
//
// Each orchestration is an explicit state machine:
//
//	Building -> Generating -> {ToolDispatch -> Generating}* -> Finalizing -> Done | Failed
//
// Building assembles the message sequence, Generating calls the model
// backend, ToolDispatch routes a tool request to a registered expert
// through the service registry, and Finalizing persists and streams the
// answer. Enumerated states keep cancellation and iteration-cap
// enforcement at single, obvious checkpoints instead of scattered
// recursive calls.
//
// Terminal states both feed the stream broker, with either the final
// content or the verbatim error, so a subscribed client never receives
// silence. The Supervisor runs orchestrations as independent concurrent
// tasks with bounded parallelism and cooperative cancellation.
package orchestrator
