// Package protocol implements the JSON-RPC-style request/response and
// notification engine Parley uses to talk to domain expert services over
// a long-lived bidirectional channel.
//
// Core goals:
//   - Correlate outstanding requests to responses via unique ids
//   - Support many concurrent outstanding calls per connection
//   - Fail calls locally with a timeout instead of blocking forever
//   - Route inbound requests and notifications to registered handlers
//     without ever crashing the engine on malformed or unknown traffic
//
// Framing is newline-delimited JSON envelopes over any
// io.ReadWriteCloser; Dial provides a TCP transport and Pipe an
// in-process one for tests.
package protocol
