package glic

import (
	"context"
	"fmt"
	"sync"

	"github.com/danmuck/glicbridge/internal/window"
	"github.com/rs/zerolog/log"
)

// HostRegistry is the web client's entry point once the host window is
// known. It accepts a single WebClient.
type HostRegistry struct {
	remote window.Window
	events window.EventTarget

	mu         sync.Mutex
	host       *BrowserHost
	registered bool
	destroyed  bool
}

func newHostRegistry(remote window.Window, events window.EventTarget) *HostRegistry {
	return &HostRegistry{remote: remote, events: events}
}

// RegisterWebClient builds the BrowserHost for wc, hands it to
// wc.Initialize, and then tells the host the client is ready. If Initialize
// fails the BrowserHost is destroyed and the error returned.
func (r *HostRegistry) RegisterWebClient(ctx context.Context, wc WebClient) error {
	if wc == nil {
		return ErrNilWebClient
	}
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return ErrRegistryDestroyed
	}
	if r.registered {
		r.mu.Unlock()
		return ErrAlreadyRegistered
	}
	host, err := newBrowserHost(r.remote, r.events, wc)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.registered = true
	r.host = host
	r.mu.Unlock()

	if err := wc.Initialize(ctx, host); err != nil {
		host.Destroy()
		log.Warn().Err(err).Msg("glic: web client initialize failed")
		return fmt.Errorf("glic: initialize: %w", err)
	}
	return host.webClientInitialized()
}

// Host returns the registered client's BrowserHost, or nil.
func (r *HostRegistry) Host() *BrowserHost {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.host
}

func (r *HostRegistry) Destroy() {
	r.mu.Lock()
	host := r.host
	r.destroyed = true
	r.mu.Unlock()
	if host != nil {
		host.Destroy()
	}
}
