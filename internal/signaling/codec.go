package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Subprotocols a client may request on upgrade. JSON is the default.
const (
	SubprotocolJSON    = "oneshare.json"
	SubprotocolMsgpack = "oneshare.msgpack"
)

// Subprotocols lists what the upgrader offers, in order of preference.
var Subprotocols = []string{SubprotocolJSON, SubprotocolMsgpack}

var errMissingEvent = errors.New("frame has no event name")

// Envelope is an outbound session event.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Frame is a decoded inbound event. Data is always JSON regardless of the
// wire codec so handlers bind payloads one way.
type Frame struct {
	Event string
	Data  json.RawMessage
}

// Codec converts between websocket messages and events.
type Codec interface {
	Subprotocol() string
	MessageType() int
	Encode(env Envelope) ([]byte, error)
	Decode(msg []byte) (Frame, error)
}

// CodecFor returns the codec for a negotiated subprotocol.
func CodecFor(subprotocol string) Codec {
	if subprotocol == SubprotocolMsgpack {
		return MsgpackCodec{}
	}
	return JSONCodec{}
}

type JSONCodec struct{}

func (JSONCodec) Subprotocol() string { return SubprotocolJSON }
func (JSONCodec) MessageType() int    { return websocket.TextMessage }

func (JSONCodec) Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func (JSONCodec) Decode(msg []byte) (Frame, error) {
	var wire struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(msg, &wire); err != nil {
		return Frame{}, fmt.Errorf("decode json frame: %w", err)
	}
	if wire.Event == "" {
		return Frame{}, errMissingEvent
	}
	return Frame{Event: wire.Event, Data: wire.Data}, nil
}

// MsgpackCodec carries the same envelope as MessagePack. Struct fields are
// named by their json tags so both codecs agree on field names.
type MsgpackCodec struct{}

func (MsgpackCodec) Subprotocol() string { return SubprotocolMsgpack }
func (MsgpackCodec) MessageType() int    { return websocket.BinaryMessage }

func (MsgpackCodec) Encode(env Envelope) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(env); err != nil {
		return nil, fmt.Errorf("encode msgpack frame: %w", err)
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) Decode(msg []byte) (Frame, error) {
	var wire struct {
		Event string `msgpack:"event"`
		Data  any    `msgpack:"data"`
	}
	if err := msgpack.Unmarshal(msg, &wire); err != nil {
		return Frame{}, fmt.Errorf("decode msgpack frame: %w", err)
	}
	if wire.Event == "" {
		return Frame{}, errMissingEvent
	}
	if wire.Data == nil {
		return Frame{Event: wire.Event}, nil
	}
	data, err := json.Marshal(wire.Data)
	if err != nil {
		return Frame{}, fmt.Errorf("normalize msgpack payload: %w", err)
	}
	return Frame{Event: wire.Event, Data: data}, nil
}
