package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors returned by Decode.
var (
	// ErrMalformed is wrapped by every decode failure.
	ErrMalformed = errors.New("protocol: malformed envelope")

	// ErrUnknownAction is returned for actions outside the protocol.
	ErrUnknownAction = errors.New("protocol: unknown action")
)

// Envelope is a single protocol message.
type Envelope struct {
	// Type is the action tag.
	Type Action

	// Data is the raw JSON payload. Relayed actions forward it unchanged.
	Data json.RawMessage

	// Payload is the decoded payload for actions the server interprets
	// (*ConnectRequest, *DrawPayload, *ChatPayload, *StatusPayload,
	// *SaucePayload). It is nil for relayed actions and for envelopes built
	// with New.
	Payload any
}

type wireEnvelope struct {
	Type *Action        `json:"type"`
	Data json.RawMessage `json:"data"`
}

var emptyObject = json.RawMessage("{}")

// MarshalJSON encodes the envelope as {"type": n, "data": {...}}.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	data := e.Data
	if len(data) == 0 {
		data = emptyObject
	}
	t := e.Type
	return json.Marshal(wireEnvelope{Type: &t, Data: data})
}

// New builds an envelope with v marshaled as its data.
func New(a Action, v any) (*Envelope, error) {
	if v == nil {
		return &Envelope{Type: a, Data: emptyObject}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", a, err)
	}
	return &Envelope{Type: a, Data: data}, nil
}

// Encode returns the wire form of e.
func Encode(e *Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses and validates a wire envelope.
func Decode(b []byte) (*Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if w.Type == nil {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	a := *w.Type
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %w: %d", ErrMalformed, ErrUnknownAction, int(a))
	}

	data := w.Data
	if len(data) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		data = emptyObject
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: %s: data is not an object", ErrMalformed, a)
	}

	e := &Envelope{Type: a, Data: data}
	payload, err := decodePayload(a, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, a, err)
	}
	e.Payload = payload
	return e, nil
}

func decodePayload(a Action, data json.RawMessage) (any, error) {
	var p interface{ validate() error }
	switch a {
	case Connected:
		p = &ConnectRequest{}
	case Draw:
		p = &DrawPayload{}
	case Chat:
		p = &ChatPayload{}
	case Status:
		p = &StatusPayload{}
	case Sauce:
		p = &SaucePayload{}
	default:
		return nil, nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}
