package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/glicbridge/internal/observability"
	"github.com/danmuck/glicbridge/internal/protocol"
	"github.com/danmuck/glicbridge/internal/window"
	"github.com/rs/zerolog/log"
)

// Receiver accepts requests from one origin and answers them through the
// bound window.
type Receiver struct {
	name     string
	origin   string
	target   window.Window
	handlers *HandlerTable

	ctx    context.Context
	cancel context.CancelFunc

	// mu orders dispatch against Destroy: dispatch decisions and response
	// posts hold the read lock, Destroy holds the write lock.
	mu             sync.RWMutex
	destroyed      bool
	removeListener func()
}

// NewReceiver subscribes to events immediately. Responses are posted to
// target at origin.
func NewReceiver(name, origin string, target window.Window, events window.EventTarget, handlers *HandlerTable) (*Receiver, error) {
	if err := checkOrigin(origin); err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrNilWindow
	}
	if events == nil {
		return nil, ErrNilEventTarget
	}
	if handlers == nil {
		return nil, ErrNilHandlerTable
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Receiver{
		name:     name,
		origin:   origin,
		target:   target,
		handlers: handlers,
		ctx:      ctx,
		cancel:   cancel,
	}
	r.removeListener = events.AddMessageListener(r.onMessage)
	return r, nil
}

func (r *Receiver) Name() string {
	return r.name
}

func (r *Receiver) Origin() string {
	return r.origin
}

// Destroy stops all further dispatch. Handlers already running see their
// context cancelled and their responses are discarded. Safe to call more
// than once.
func (r *Receiver) Destroy() {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	r.destroyed = true
	r.mu.Unlock()

	r.cancel()
	r.removeListener()
	log.Debug().Str("endpoint", r.name).Msg("transport: receiver destroyed")
}

func (r *Receiver) onMessage(ev window.MessageEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.destroyed {
		observability.RecordInboundDropped(r.name, observability.DropDestroyed)
		return
	}
	if ev.Origin != r.origin {
		observability.RecordInboundDropped(r.name, observability.DropOriginMismatch)
		log.Debug().
			Str("endpoint", r.name).
			Str("origin", ev.Origin).
			Msg("transport: message from untrusted origin dropped")
		return
	}
	env, err := protocol.Decode(ev.Data)
	if err != nil {
		observability.RecordInboundDropped(r.name, observability.DropMalformed)
		return
	}
	if !env.Kind.IsRequest() {
		// Responses on a shared event target belong to the Sender.
		return
	}
	handler, ok := r.handlers.Lookup(env.Type)
	if !ok {
		observability.RecordInboundDropped(r.name, observability.DropUnknownType)
		log.Debug().
			Str("endpoint", r.name).
			Str("type", env.Type).
			Msg("transport: no handler for message type")
		return
	}
	go r.serve(env, handler)
}

func (r *Receiver) serve(env protocol.Envelope, handler HandlerFunc) {
	logger := log.With().
		Str("endpoint", r.name).
		Str("type", env.Type).
		Uint64("id", env.ID).
		Logger()

	// Dispatch may have been accepted just before Destroy; the handler goroutine
	// can still be scheduled after it returns.
	r.mu.RLock()
	destroyed := r.destroyed
	r.mu.RUnlock()
	if destroyed {
		observability.RecordInboundDropped(r.name, observability.DropDestroyed)
		return
	}

	if err := r.handlers.Catalog().ValidateRequest(env.Type, env.Payload); err != nil {
		observability.RecordHandlerCall(r.name, env.Type, false)
		logger.Warn().Err(err).Msg("transport: request rejected")
		return
	}

	transfer := &TransferList{}
	result, err := invoke(r.ctx, handler, env, transfer)
	observability.RecordHandlerCall(r.name, env.Type, err == nil)
	if err != nil {
		if errors.Is(err, context.Canceled) && r.ctx.Err() != nil {
			logger.Debug().Msg("transport: handler cancelled by destroy")
			return
		}
		logger.Warn().Err(err).Msg("transport: handler failed")
		return
	}
	if !env.Kind.ExpectsResponse() {
		return
	}

	var resp protocol.Envelope
	if result == nil {
		resp = protocol.NewVoidResponse(env)
	} else {
		resp, err = protocol.NewResponse(env, result)
		if err != nil {
			logger.Warn().Err(err).Msg("transport: response encode failed")
			return
		}
		if protocol.IsEmptyPayload(resp.Payload) {
			resp = protocol.NewVoidResponse(env)
		}
	}
	data, err := protocol.Encode(resp)
	if err != nil {
		logger.Warn().Err(err).Msg("transport: response encode failed")
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.destroyed {
		return
	}
	if err := r.target.PostMessage(data, r.origin, transfer.Items()); err != nil {
		logger.Warn().Err(err).Msg("transport: response post failed")
	}
}

func invoke(ctx context.Context, handler HandlerFunc, env protocol.Envelope, transfer *TransferList) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("%w: %s: %v", ErrHandlerPanic, env.Type, rec)
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return handler(ctx, env.Payload, transfer)
}
