package protocol

import "errors"

var (
	ErrMalformedEnvelope = errors.New("protocol: malformed envelope")
	ErrUnknownKind       = errors.New("protocol: unknown envelope kind")
	ErrMissingType       = errors.New("protocol: missing message type")
	ErrMissingID         = errors.New("protocol: missing correlation id")
	ErrPayloadEncode     = errors.New("protocol: payload encode failed")
)
