package http

import (
	"bytes"
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"quiz-room-service/internal/domain"
)

// envelope is a decoded inbound frame with its payload left encoded.
type envelope struct {
	Type    string
	Ref     string
	payload []byte
}

// codec frames events on one connection. JSON is the default; msgpack is negotiated with
// ?codec=msgpack and shares the json field names.
type codec interface {
	messageType() int
	decode(data []byte) (envelope, error)
	decodePayload(raw []byte, v any) error
	encode(ev domain.Event) ([]byte, error)
}

func codecFor(name string) codec {
	if name == "msgpack" {
		return msgpackCodec{}
	}
	return jsonCodec{}
}

type jsonCodec struct{}

func (jsonCodec) messageType() int { return websocket.TextMessage }

func (jsonCodec) decode(data []byte) (envelope, error) {
	var in struct {
		Type    string          `json:"type"`
		Ref     string          `json:"ref"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return envelope{}, err
	}
	return envelope{Type: in.Type, Ref: in.Ref, payload: in.Payload}, nil
}

func (jsonCodec) decodePayload(raw []byte, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func (jsonCodec) encode(ev domain.Event) ([]byte, error) {
	return json.Marshal(ev)
}

type msgpackCodec struct{}

func (msgpackCodec) messageType() int { return websocket.BinaryMessage }

func (c msgpackCodec) decode(data []byte) (envelope, error) {
	var in struct {
		Type    string             `json:"type"`
		Ref     string             `json:"ref"`
		Payload msgpack.RawMessage `json:"payload"`
	}
	if err := c.unmarshal(data, &in); err != nil {
		return envelope{}, err
	}
	return envelope{Type: in.Type, Ref: in.Ref, payload: in.Payload}, nil
}

func (c msgpackCodec) decodePayload(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return c.unmarshal(raw, v)
}

func (msgpackCodec) unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

func (msgpackCodec) encode(ev domain.Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(ev); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
