// Package registry tracks the domain expert endpoints available to the
// orchestrator and gates traffic to failing ones.
//
// Each registered endpoint owns an independent circuit breaker state
// machine (closed, open, half-open) so one consistently failing expert
// cannot block calls to others. Invocations are routed over the
// endpoint's protocol engine connection; any invocation error, timeouts
// included, counts as a breaker failure regardless of cause.
//
// Capabilities may declare a JSON Schema for their input. When present,
// tool input is validated before any wire traffic; a validation failure
// is reported to the caller but does not count against the breaker since
// the endpoint was never contacted.
package registry
