// Package stream delivers orchestration output to subscribed clients
// incrementally and in order.
//
// The Broker assigns strictly increasing sequence numbers per
// conversation and fans chunks out to every subscriber of that
// conversation. Each answer segment is closed by exactly one chunk with
// Final set; failed orchestrations surface a single final error chunk so
// a client never receives silence.
package stream
