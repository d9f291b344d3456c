// Package window models the cross-window messaging boundary: a window proxy
// that accepts posted messages, and an event target that delivers message
// events on a single-goroutine event loop.
package window

import "errors"

var (
	ErrWildcardOrigin = errors.New("window: wildcard target origin refused")
	ErrEmptyOrigin    = errors.New("window: empty target origin")
	ErrClosed         = errors.New("window: closed")
)

// Wildcard is the target origin that matches any window. It is never used by
// this module and always refused.
const Wildcard = "*"

// Transferable is an opaque handle moved alongside a message rather than
// copied into it.
type Transferable any

// Window accepts posted messages, like a browser WindowProxy.
//
// PostMessage never blocks. If the receiving window's origin differs from
// targetOrigin, the message is dropped without error.
type Window interface {
	PostMessage(data []byte, targetOrigin string, transfer []Transferable) error
}

// MessageEvent is one delivered message.
type MessageEvent struct {
	// Origin is the origin of the posting window, set by the channel, never
	// by the sender's payload.
	Origin string
	// Source replies to the posting window. May be nil.
	Source   Window
	Data     []byte
	Transfer []Transferable
}

// Listener observes message events on the owning window's event loop.
type Listener func(MessageEvent)

// EventTarget is the subscribe side of a window.
type EventTarget interface {
	AddMessageListener(l Listener) (remove func())
}

// CheckTargetOrigin validates the target origin passed to PostMessage.
func CheckTargetOrigin(targetOrigin string) error {
	switch targetOrigin {
	case "":
		return ErrEmptyOrigin
	case Wildcard:
		return ErrWildcardOrigin
	}
	return nil
}
