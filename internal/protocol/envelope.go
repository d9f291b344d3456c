package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind distinguishes requests from responses on the wire.
type Kind string

const (
	KindRequest           Kind = "request"
	KindRequestNoResponse Kind = "request_no_response"
	KindResponse          Kind = "response"
	KindResponseVoid      Kind = "response_void"
)

func (k Kind) Valid() bool {
	switch k {
	case KindRequest, KindRequestNoResponse, KindResponse, KindResponseVoid:
		return true
	}
	return false
}

// IsRequest reports whether the kind is served by a receiver.
func (k Kind) IsRequest() bool {
	return k == KindRequest || k == KindRequestNoResponse
}

// IsResponse reports whether the kind completes a pending request.
func (k Kind) IsResponse() bool {
	return k == KindResponse || k == KindResponseVoid
}

// ExpectsResponse reports whether the receiver must answer.
func (k Kind) ExpectsResponse() bool {
	return k == KindRequest
}

// Envelope is one posted message. Transferables never live here; they travel
// next to the envelope in the PostMessage call.
type Envelope struct {
	Type    string          `json:"type"`
	ID      uint64          `json:"id"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (e Envelope) Validate() error {
	if strings.TrimSpace(e.Type) == "" {
		return ErrMissingType
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	if e.ID == 0 && e.Kind != KindRequestNoResponse {
		return fmt.Errorf("%w: kind=%s type=%s", ErrMissingID, e.Kind, e.Type)
	}
	return nil
}

// NewRequest builds a request envelope that expects a response.
func NewRequest(msgType string, id uint64, payload any) (Envelope, error) {
	return newEnvelope(msgType, id, KindRequest, payload)
}

// NewNotification builds a request envelope that expects no response.
func NewNotification(msgType string, id uint64, payload any) (Envelope, error) {
	return newEnvelope(msgType, id, KindRequestNoResponse, payload)
}

// NewResponse answers req with payload.
func NewResponse(req Envelope, payload any) (Envelope, error) {
	return newEnvelope(req.Type, req.ID, KindResponse, payload)
}

// NewVoidResponse answers req without a payload.
func NewVoidResponse(req Envelope) Envelope {
	return Envelope{Type: req.Type, ID: req.ID, Kind: KindResponseVoid}
}

func newEnvelope(msgType string, id uint64, kind Kind, payload any) (Envelope, error) {
	raw, err := MarshalPayload(payload)
	if err != nil {
		return Envelope{}, err
	}
	env := Envelope{Type: msgType, ID: id, Kind: kind, Payload: raw}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// MarshalPayload encodes payload. A json.RawMessage is passed through
// untouched once it is known to be valid JSON; a nil payload encodes as
// nothing. Plain []byte follows encoding/json and becomes a base64 string.
func MarshalPayload(payload any) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if len(v) == 0 {
			return nil, nil
		}
		if !json.Valid(v) {
			return nil, fmt.Errorf("%w: raw payload is not valid JSON", ErrPayloadEncode)
		}
		return v, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadEncode, err)
	}
	return raw, nil
}

// Encode serializes one envelope for PostMessage.
func Encode(e Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// Decode parses one posted message. Anything that is not an object with a
// known kind and a type is malformed.
func Decode(data []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, ErrMalformedEnvelope
	}
	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if isJSONNull(env.Payload) {
		env.Payload = nil
	}
	return env, nil
}

// IsEmptyPayload reports whether raw carries no value.
func IsEmptyPayload(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || isJSONNull(raw)
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
