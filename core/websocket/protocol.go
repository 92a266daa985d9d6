package websocket

import "encoding/json"

// Message is delivered to consumers from Session.Receive/iteration
// (§4.6 "Message delivery").
type Message struct {
	Type   Opcode // OpText or OpBinary
	Data   interface{}
	Raw    []byte
	Opcode Opcode
}

// ProtocolHandler is the capability interface a caller plugs in at
// handshake time to interpret frame payloads as application messages
// (§4.6 "Custom protocols"). Its Name is offered via
// Sec-WebSocket-Protocol.
type ProtocolHandler interface {
	Name() string
	Encode(msg interface{}) ([]byte, error)
	Decode(raw []byte) (interface{}, error)
}

// textHandler is a Session's handler when DialOptions.Protocol is unset:
// every TEXT and BINARY payload decodes to a plain string.
type textHandler struct{}

func (textHandler) Name() string { return "" }
func (textHandler) Encode(msg interface{}) ([]byte, error) {
	s, _ := msg.(string)
	return []byte(s), nil
}
func (textHandler) Decode(raw []byte) (interface{}, error) {
	return string(raw), nil
}

// binaryHandler passes payloads through as raw bytes. A Session uses it
// only when DialOptions.Protocol is set to DefaultBinaryHandler().
type binaryHandler struct{}

func (binaryHandler) Name() string { return "" }
func (binaryHandler) Encode(msg interface{}) ([]byte, error) {
	b, _ := msg.([]byte)
	return b, nil
}
func (binaryHandler) Decode(raw []byte) (interface{}, error) {
	return raw, nil
}

// jsonHandler is a built-in handler that (de)serializes TEXT-frame
// payloads as JSON (SPEC_FULL.md supplemented feature). Decode leaves
// the result as interface{} (whatever json.Unmarshal produces for an
// untyped target); callers needing a concrete type should type-assert
// or re-marshal.
type jsonHandler struct{}

func (jsonHandler) Name() string { return "json" }
func (jsonHandler) Encode(msg interface{}) ([]byte, error) {
	return json.Marshal(msg)
}
func (jsonHandler) Decode(raw []byte) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// DefaultTextHandler returns the built-in text codec.
func DefaultTextHandler() ProtocolHandler { return textHandler{} }

// DefaultBinaryHandler returns the built-in binary codec.
func DefaultBinaryHandler() ProtocolHandler { return binaryHandler{} }

// DefaultJSONHandler returns the built-in JSON codec (§4.6 "Custom
// protocols", SPEC_FULL.md supplemented feature).
func DefaultJSONHandler() ProtocolHandler { return jsonHandler{} }
