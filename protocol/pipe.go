package protocol

import "net"

// Pipe returns two engines connected through an in-process synchronous
// duplex channel. Useful for tests and for hosting an expert in the same
// process as the orchestrator.
func Pipe(optFns ...func(o *Options)) (*Engine, *Engine) {
	a, b := net.Pipe()
	return NewEngine(a, optFns...), NewEngine(b, optFns...)
}
