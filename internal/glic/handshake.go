package glic

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/danmuck/glicbridge/internal/window"
	"github.com/rs/zerolog/log"
)

// HostOrigin is the only origin the web client accepts the bootstrap
// message, requests, and responses from.
const HostOrigin = "chrome://glic"

// BootstrapMessageType marks the host's "bootstrap ready" message.
const BootstrapMessageType = "glic-bootstrap"

type HandshakeState int

const (
	AwaitingHandshake HandshakeState = iota
	Bound
)

func (s HandshakeState) String() string {
	switch s {
	case AwaitingHandshake:
		return "awaiting_handshake"
	case Bound:
		return "bound"
	default:
		return "unknown"
	}
}

type bootstrapMessage struct {
	Type string `json:"type"`
}

// BootstrapMessage returns the data the host posts to start the handshake.
func BootstrapMessage() []byte {
	data, _ := json.Marshal(bootstrapMessage{Type: BootstrapMessageType})
	return data
}

// IsBootstrap reports whether data is the bootstrap message.
func IsBootstrap(data []byte) bool {
	var msg bootstrapMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return false
	}
	return msg.Type == BootstrapMessageType
}

// Handshake waits for the host's bootstrap message and captures the window
// that sent it. It binds at most once.
type Handshake struct {
	mu     sync.Mutex
	state  HandshakeState
	events window.EventTarget
	remote window.Window
	remove func()
	bound  chan struct{}
}

func NewHandshake() *Handshake {
	return &Handshake{bound: make(chan struct{})}
}

// Listen subscribes to events. Only the first call has an effect. A nil
// target is ignored.
func (h *Handshake) Listen(events window.EventTarget) {
	if events == nil {
		return
	}
	h.mu.Lock()
	if h.events != nil || h.state == Bound {
		h.mu.Unlock()
		return
	}
	h.events = events
	h.mu.Unlock()

	remove := events.AddMessageListener(h.onMessage)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Bound {
		remove()
		return
	}
	h.remove = remove
}

func (h *Handshake) State() HandshakeState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Wait blocks until the handshake binds or ctx ends. There is no timeout of
// its own.
func (h *Handshake) Wait(ctx context.Context) (window.Window, error) {
	select {
	case <-h.bound:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.remote, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Registry waits for the handshake and returns a registry bound to the host
// window.
func (h *Handshake) Registry(ctx context.Context) (*HostRegistry, error) {
	remote, err := h.Wait(ctx)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	events := h.events
	h.mu.Unlock()
	return newHostRegistry(remote, events), nil
}

// Stop detaches the listener without binding.
func (h *Handshake) Stop() {
	h.mu.Lock()
	remove := h.remove
	h.remove = nil
	h.mu.Unlock()
	if remove != nil {
		remove()
	}
}

func (h *Handshake) onMessage(ev window.MessageEvent) {
	if ev.Origin != HostOrigin || ev.Source == nil || !IsBootstrap(ev.Data) {
		return
	}

	h.mu.Lock()
	if h.state == Bound {
		h.mu.Unlock()
		return
	}
	h.state = Bound
	h.remote = ev.Source
	remove := h.remove
	h.remove = nil
	close(h.bound)
	h.mu.Unlock()

	if remove != nil {
		remove()
	}
	log.Debug().Str("origin", ev.Origin).Msg("glic: handshake bound")
}

// CreateHostRegistryOnLoad waits for the host bootstrap message on events and
// returns a registry bound to the host window.
func CreateHostRegistryOnLoad(ctx context.Context, events window.EventTarget) (*HostRegistry, error) {
	if events == nil {
		return nil, ErrNilEventTarget
	}
	h := NewHandshake()
	h.Listen(events)
	reg, err := h.Registry(ctx)
	if err != nil {
		h.Stop()
		return nil, err
	}
	return reg, nil
}

// Boot returns a registry bound to an already known host window.
//
// Deprecated: use CreateHostRegistryOnLoad. Boot skips the handshake and
// exists for test harnesses.
func Boot(host window.Window, events window.EventTarget) *HostRegistry {
	return newHostRegistry(host, events)
}
