package protocol

import "encoding/json"

// Envelope is the wire unit exchanged with expert services. Shape decides
// dispatch:
//
//	id + result/error  -> response to an earlier outbound call
//	method + id        -> inbound request expecting a reply
//	method, no id      -> notification, no reply
type Envelope struct {
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *WireError      `json:"error,omitempty"`
}

// WireError carries a failure across the wire in place of a result.
type WireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *WireError) Error() string { return e.Message }

// isResponse reports whether the envelope resolves an outbound call.
func (e *Envelope) isResponse() bool {
	return e.ID != "" && e.Method == "" && (e.Result != nil || e.Error != nil)
}

// isRequest reports whether the envelope expects a reply.
func (e *Envelope) isRequest() bool { return e.Method != "" && e.ID != "" }

// isNotification reports whether the envelope is fire-and-forget.
func (e *Envelope) isNotification() bool { return e.Method != "" && e.ID == "" }
