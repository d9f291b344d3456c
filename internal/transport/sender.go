package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/glicbridge/internal/observability"
	"github.com/danmuck/glicbridge/internal/protocol"
	"github.com/danmuck/glicbridge/internal/window"
	"github.com/rs/zerolog/log"
)

// Sender posts requests to one window at one origin and matches responses
// by correlation id.
type Sender struct {
	name    string
	target  window.Window
	origin  string
	pending *pendingTable
	nextID  atomic.Uint64

	removeListener func()
	destroyOnce    sync.Once
	destroyed      atomic.Bool
}

// NewSender binds a sender to target at origin. Responses are observed on
// events, and only when they come from origin.
func NewSender(name string, target window.Window, events window.EventTarget, origin string) (*Sender, error) {
	if err := checkOrigin(origin); err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrNilWindow
	}
	if events == nil {
		return nil, ErrNilEventTarget
	}
	s := &Sender{
		name:    name,
		target:  target,
		origin:  origin,
		pending: newPendingTable(),
	}
	s.removeListener = events.AddMessageListener(s.onMessage)
	return s, nil
}

func (s *Sender) Name() string {
	return s.name
}

func (s *Sender) Origin() string {
	return s.origin
}

// Go posts a request that expects a response and returns its Call. Post
// failures are logged, not returned: the call then never completes unless
// the sender is destroyed.
func (s *Sender) Go(msgType string, payload any, transfer []window.Transferable) *Call {
	call := newCall(msgType)
	if s.destroyed.Load() {
		call.finish(nil, nil, ErrTransportClosed)
		return call
	}

	call.ID = s.nextID.Add(1)
	env, err := protocol.NewRequest(msgType, call.ID, payload)
	if err != nil {
		call.finish(nil, nil, err)
		return call
	}
	data, err := protocol.Encode(env)
	if err != nil {
		call.finish(nil, nil, err)
		return call
	}

	if !s.pending.add(call, time.Now()) {
		call.finish(nil, nil, ErrTransportClosed)
		return call
	}
	observability.SetPendingRequests(s.name, s.pending.len())
	observability.RecordRequestSent(s.name, msgType, true)

	if err := s.target.PostMessage(data, s.origin, transfer); err != nil {
		log.Warn().
			Str("endpoint", s.name).
			Str("type", msgType).
			Uint64("id", call.ID).
			Err(err).
			Msg("transport: post failed; request stays pending")
	}
	return call
}

// RequestWithResponse posts a request and waits for its response payload.
// The payload is nil for void responses.
func (s *Sender) RequestWithResponse(ctx context.Context, msgType string, payload any, transfer []window.Transferable) (json.RawMessage, error) {
	return s.Go(msgType, payload, transfer).Wait(ctx)
}

// RequestNoResponse posts a request that is never answered. Only local
// encoding failures and a destroyed sender are reported.
func (s *Sender) RequestNoResponse(msgType string, payload any) error {
	if s.destroyed.Load() {
		return ErrTransportClosed
	}
	env, err := protocol.NewNotification(msgType, 0, payload)
	if err != nil {
		return err
	}
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	observability.RecordRequestSent(s.name, msgType, false)
	if err := s.target.PostMessage(data, s.origin, nil); err != nil {
		log.Warn().
			Str("endpoint", s.name).
			Str("type", msgType).
			Err(err).
			Msg("transport: post failed")
	}
	return nil
}

// Pending lists in-flight requests ordered by id.
func (s *Sender) Pending() []PendingInfo {
	return s.pending.list()
}

// Destroy stops observing responses and fails every pending request with
// ErrTransportClosed. Safe to call more than once.
func (s *Sender) Destroy() {
	s.destroyOnce.Do(func() {
		s.destroyed.Store(true)
		s.removeListener()
		entries := s.pending.drain()
		for _, entry := range entries {
			entry.call.finish(nil, nil, ErrTransportClosed)
		}
		observability.SetPendingRequests(s.name, 0)
		if len(entries) > 0 {
			log.Debug().
				Str("endpoint", s.name).
				Int("pending", len(entries)).
				Msg("transport: sender destroyed with pending requests")
		}
	})
}

func (s *Sender) onMessage(ev window.MessageEvent) {
	if s.destroyed.Load() || ev.Origin != s.origin {
		return
	}
	env, err := protocol.Decode(ev.Data)
	if err != nil || !env.Kind.IsResponse() {
		return
	}
	entry, ok := s.pending.take(env.ID)
	if !ok {
		observability.RecordInboundDropped(s.name, observability.DropUnmatched)
		log.Debug().
			Str("endpoint", s.name).
			Str("type", env.Type).
			Uint64("id", env.ID).
			Msg("transport: response matches no pending request")
		return
	}
	observability.SetPendingRequests(s.name, s.pending.len())
	observability.RecordResponseMatched(s.name, entry.call.Type, time.Since(entry.queuedAt))
	if env.Type != entry.call.Type {
		log.Warn().
			Str("endpoint", s.name).
			Uint64("id", env.ID).
			Str("type", entry.call.Type).
			Str("response_type", env.Type).
			Msg("transport: response type differs from request")
	}

	var reply json.RawMessage
	if env.Kind == protocol.KindResponse && !protocol.IsEmptyPayload(env.Payload) {
		reply = env.Payload
	}
	entry.call.finish(reply, ev.Transfer, nil)
}

// Request sends req and decodes the response into Resp. Void responses
// yield the zero Resp.
func Request[Resp any](ctx context.Context, s *Sender, msgType string, req any) (Resp, error) {
	var out Resp
	raw, err := s.RequestWithResponse(ctx, msgType, req, nil)
	if err != nil {
		return out, err
	}
	if protocol.IsEmptyPayload(raw) {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrBadResponse, msgType, err)
	}
	return out, nil
}

func checkOrigin(origin string) error {
	if err := window.CheckTargetOrigin(origin); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidOrigin, origin)
	}
	return nil
}
