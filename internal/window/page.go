package window

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Page is an in-process window with its own origin and event loop.
type Page struct {
	id     string
	origin string
	loop   *Loop
	closed atomic.Bool

	listeners ListenerSet
}

func NewPage(origin string) *Page {
	return &Page{
		id:     uuid.NewString(),
		origin: origin,
		loop:   NewLoop(),
	}
}

// ID identifies the page in logs.
func (p *Page) ID() string {
	return p.id
}

func (p *Page) Origin() string {
	return p.origin
}

// AddMessageListener subscribes l. See ListenerSet.Add.
func (p *Page) AddMessageListener(l Listener) func() {
	return p.listeners.Add(l)
}

// ProxyFrom returns a handle that posts into p on behalf of source. Events
// delivered through it carry source's origin and a Source that replies into
// source. A nil source posts as an opaque origin with no reply path.
func (p *Page) ProxyFrom(source *Page) *Proxy {
	return &Proxy{target: p, source: source}
}

// Dispatch queues ev on p's event loop as-is.
func (p *Page) Dispatch(ev MessageEvent) {
	if p.closed.Load() {
		return
	}
	p.loop.Post(func() { p.deliver(ev) })
}

// Flush waits until every event queued so far has been delivered.
func (p *Page) Flush() bool {
	return p.loop.Flush()
}

// Close navigates the page away: queued events are dropped and later posts
// are silently discarded.
func (p *Page) Close() {
	if p.closed.Swap(true) {
		return
	}
	p.loop.Close()
	log.Debug().Str("page", p.id).Str("origin", p.origin).Msg("window: page closed")
}

func (p *Page) Closed() bool {
	return p.closed.Load()
}

func (p *Page) deliver(ev MessageEvent) {
	if p.closed.Load() {
		return
	}
	p.listeners.Deliver(ev)
}

// Proxy is a WindowProxy-like handle onto a Page.
type Proxy struct {
	target *Page
	source *Page
}

var _ Window = (*Proxy)(nil)

func (x *Proxy) PostMessage(data []byte, targetOrigin string, transfer []Transferable) error {
	if err := CheckTargetOrigin(targetOrigin); err != nil {
		return err
	}
	if x.target.closed.Load() {
		return nil
	}
	if targetOrigin != x.target.origin {
		event := log.Debug().
			Str("page", x.target.id).
			Str("origin", x.target.origin).
			Str("target_origin", targetOrigin)
		if x.source != nil {
			event = event.Str("source_page", x.source.id)
		}
		event.Msg("window: message for another origin not delivered")
		return nil
	}

	ev := MessageEvent{
		Data: append([]byte(nil), data...),
	}
	if len(transfer) > 0 {
		ev.Transfer = append([]Transferable(nil), transfer...)
	}
	if x.source != nil {
		ev.Origin = x.source.origin
		ev.Source = x.source.ProxyFrom(x.target)
	} else {
		ev.Origin = "null"
	}
	x.target.Dispatch(ev)
	return nil
}
