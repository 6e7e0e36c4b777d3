// Package message defines the RPC message structure exchanged between client and server.
//
// RPCMessage is the "envelope" for every RPC call. It gets serialized by the codec layer
// and wrapped in a protocol frame for transmission.
package message

// RPCMessage carries the data for a single RPC request or response.
//
//   - On request:  ServiceMethod is set, Payload contains the serialized args, Error is empty.
//   - On response: Payload contains the serialized reply, Error is non-empty if the call failed.
type RPCMessage struct {
	ServiceMethod string `json:"service_method"` // "ServiceName.MethodName", e.g. "Sheet.Read"
	Error         string `json:"error,omitempty"`
	Payload       []byte `json:"payload,omitempty"` // base64 in JSON frames
}

// IsError reports whether the message carries a handler failure.
func (m *RPCMessage) IsError() bool {
	return m.Error != ""
}
