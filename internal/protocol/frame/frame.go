// Package frame encodes one posted message for a byte stream.
//
// Layout: 32-byte fixed header, target-origin section, payload.
package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	Magic          uint32 = 0x474C4943 // "GLIC"
	Version        uint16 = 1
	FixedHeaderLen uint16 = 32

	TypePost uint32 = 1

	FlagHasOrigin uint32 = 0x01
)

var (
	ErrShortHeader       = errors.New("frame: short fixed header")
	ErrInvalidMagic      = errors.New("frame: invalid magic")
	ErrUnsupportedVer    = errors.New("frame: unsupported version")
	ErrHeaderLenTooSmall = errors.New("frame: header_len smaller than fixed header")
	ErrHeaderLenMismatch = errors.New("frame: origin flag set but header_len has no origin bytes")
	ErrPayloadTooLarge   = errors.New("frame: payload too large")
	ErrOriginTooLarge    = errors.New("frame: origin too large")
	ErrTrailingBytes     = errors.New("frame: trailing bytes after payload")
)

// Header is the fixed wire header.
type Header struct {
	Magic       uint32
	Version     uint16
	HeaderLen   uint16
	MessageID   uint64
	MessageType uint32
	Flags       uint32
	PayloadLen  uint64
}

// Frame is one complete posted message.
type Frame struct {
	Header Header
	// TargetOrigin is the origin the sender required of the receiving window.
	TargetOrigin string
	Payload      []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxOriginBytes  uint64
	MaxPayloadBytes uint64
}

func DefaultLimits() Limits {
	return Limits{
		MaxOriginBytes:  2 * 1024,
		MaxPayloadBytes: 8 * 1024 * 1024,
	}
}

// NewPost builds a post frame for payload addressed to targetOrigin.
func NewPost(messageID uint64, targetOrigin string, payload []byte) Frame {
	return Frame{
		Header: Header{
			Magic:       Magic,
			Version:     Version,
			MessageID:   messageID,
			MessageType: TypePost,
		},
		TargetOrigin: targetOrigin,
		Payload:      payload,
	}
}

func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [FixedHeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}

	h, err := DecodeHeader(fixed[:])
	if err != nil {
		return Frame{}, err
	}
	if h.Magic != Magic {
		return Frame{}, ErrInvalidMagic
	}
	if h.Version != Version {
		return Frame{}, fmt.Errorf("%w: %d", ErrUnsupportedVer, h.Version)
	}
	if h.HeaderLen < FixedHeaderLen {
		return Frame{}, ErrHeaderLenTooSmall
	}

	originLen := uint64(h.HeaderLen - FixedHeaderLen)
	if h.Flags&FlagHasOrigin != 0 && originLen == 0 {
		return Frame{}, ErrHeaderLenMismatch
	}
	if originLen > limits.MaxOriginBytes {
		return Frame{}, ErrOriginTooLarge
	}
	if h.PayloadLen > limits.MaxPayloadBytes {
		return Frame{}, ErrPayloadTooLarge
	}

	origin := make([]byte, originLen)
	if originLen > 0 {
		if _, err := io.ReadFull(r, origin); err != nil {
			return Frame{}, err
		}
	}

	payload := make([]byte, h.PayloadLen)
	if h.PayloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, err
		}
	}

	return Frame{Header: h, TargetOrigin: string(origin), Payload: payload}, nil
}

func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	originLen := uint64(len(f.TargetOrigin))
	payloadLen := uint64(len(f.Payload))
	if originLen > limits.MaxOriginBytes || originLen > uint64(^uint16(0)-FixedHeaderLen) {
		return ErrOriginTooLarge
	}
	if payloadLen > limits.MaxPayloadBytes {
		return ErrPayloadTooLarge
	}

	h := f.Header
	if h.Magic == 0 {
		h.Magic = Magic
	}
	if h.Version == 0 {
		h.Version = Version
	}
	h.HeaderLen = FixedHeaderLen + uint16(originLen)
	h.PayloadLen = payloadLen
	if originLen > 0 {
		h.Flags |= FlagHasOrigin
	} else {
		h.Flags &^= FlagHasOrigin
	}

	if _, err := w.Write(EncodeHeader(h)); err != nil {
		return err
	}
	if originLen > 0 {
		if _, err := io.WriteString(w, f.TargetOrigin); err != nil {
			return err
		}
	}
	if payloadLen > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return err
		}
	}
	return nil
}

// Marshal encodes f into one buffer, sized for a single WebSocket message.
func Marshal(f Frame, limits Limits) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(FixedHeaderLen) + len(f.TargetOrigin) + len(f.Payload))
	if err := WriteFrame(&buf, f, limits); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes exactly one frame from b.
func Unmarshal(b []byte, limits Limits) (Frame, error) {
	r := bytes.NewReader(b)
	f, err := ReadFrame(r, limits)
	if err != nil {
		return Frame{}, err
	}
	if r.Len() != 0 {
		return Frame{}, ErrTrailingBytes
	}
	return f, nil
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, FixedHeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.BigEndian.PutUint16(buf[4:6], h.Version)
	binary.BigEndian.PutUint16(buf[6:8], h.HeaderLen)
	binary.BigEndian.PutUint64(buf[8:16], h.MessageID)
	binary.BigEndian.PutUint32(buf[16:20], h.MessageType)
	binary.BigEndian.PutUint32(buf[20:24], h.Flags)
	binary.BigEndian.PutUint64(buf[24:32], h.PayloadLen)
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != int(FixedHeaderLen) {
		return Header{}, fmt.Errorf("frame: invalid fixed header length: %d", len(b))
	}
	return Header{
		Magic:       binary.BigEndian.Uint32(b[0:4]),
		Version:     binary.BigEndian.Uint16(b[4:6]),
		HeaderLen:   binary.BigEndian.Uint16(b[6:8]),
		MessageID:   binary.BigEndian.Uint64(b[8:16]),
		MessageType: binary.BigEndian.Uint32(b[16:20]),
		Flags:       binary.BigEndian.Uint32(b[20:24]),
		PayloadLen:  binary.BigEndian.Uint64(b[24:32]),
	}, nil
}
