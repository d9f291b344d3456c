// Package wsbridge carries window messaging over a WebSocket so the host and
// the web client can run in separate processes.
//
// Each PostMessage becomes one binary WebSocket message holding one frame:
// fixed header, target origin, JSON envelope. The receiving side stamps the
// event origin from the connection, never from the frame.
package wsbridge

import (
	"errors"
	mathrand "math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/glicbridge/internal/observability"
	"github.com/danmuck/glicbridge/internal/protocol/frame"
	"github.com/danmuck/glicbridge/internal/window"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
)

const (
	SideServer = "server"
	SideClient = "client"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

func newConnID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Conn is one end of a WebSocket window channel. It is both the window the
// local side posts into and the event target remote posts arrive on.
type Conn struct {
	id           string
	side         string
	localOrigin  string
	remoteOrigin string
	cfg          Config

	ws      *websocket.Conn
	writeMu sync.Mutex
	nextID  atomic.Uint64

	loop      *window.Loop
	listeners window.ListenerSet

	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
	errMu     sync.Mutex
	err       error
}

var (
	_ window.Window      = (*Conn)(nil)
	_ window.EventTarget = (*Conn)(nil)
)

func newConn(ws *websocket.Conn, side, localOrigin, remoteOrigin string, cfg Config) *Conn {
	c := &Conn{
		id:           newConnID(),
		side:         side,
		localOrigin:  localOrigin,
		remoteOrigin: remoteOrigin,
		cfg:          cfg,
		ws:           ws,
		loop:         window.NewLoop(),
		done:         make(chan struct{}),
	}
	observability.AddConnections(side, 1)
	ws.SetReadLimit(cfg.readLimit())
	_ = ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})
	go c.readLoop()
	go c.pingLoop()
	log.Debug().
		Str("conn", c.id).
		Str("side", side).
		Str("remote_origin", remoteOrigin).
		Msg("wsbridge: connection open")
	return c
}

func (c *Conn) ID() string {
	return c.id
}

// LocalOrigin is the origin frames must target to be delivered here.
func (c *Conn) LocalOrigin() string {
	return c.localOrigin
}

// RemoteOrigin is stamped on every delivered event.
func (c *Conn) RemoteOrigin() string {
	return c.remoteOrigin
}

// PostMessage writes data to the peer. Transfer lists are refused; a closed
// connection discards the message like a navigated-away window.
func (c *Conn) PostMessage(data []byte, targetOrigin string, transfer []window.Transferable) error {
	if err := window.CheckTargetOrigin(targetOrigin); err != nil {
		return err
	}
	if len(transfer) > 0 {
		return ErrTransferUnsupported
	}
	if c.closed.Load() {
		return nil
	}
	msg, err := frame.Marshal(frame.NewPost(c.nextID.Add(1), targetOrigin, data), c.cfg.Limits)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	err = c.ws.WriteMessage(websocket.BinaryMessage, msg)
	c.writeMu.Unlock()
	if err != nil {
		c.closeWith(err)
		return err
	}
	return nil
}

func (c *Conn) AddMessageListener(l window.Listener) func() {
	return c.listeners.Add(l)
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection closed, nil for a local Close.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Flush waits until every delivered event queued so far has run.
func (c *Conn) Flush() bool {
	return c.loop.Flush()
}

func (c *Conn) Close() error {
	c.closeWith(nil)
	return nil
}

func (c *Conn) closeWith(cause error) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.errMu.Lock()
		c.err = cause
		c.errMu.Unlock()

		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.ws.Close()
		c.loop.Close()
		close(c.done)
		observability.AddConnections(c.side, -1)

		event := log.Debug()
		if cause != nil && !isNormalClose(cause) {
			event = log.Warn().Err(cause)
		}
		event.Str("conn", c.id).Str("side", c.side).Msg("wsbridge: connection closed")
	})
}

func (c *Conn) readLoop() {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			c.closeWith(err)
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		f, err := frame.Unmarshal(data, c.cfg.Limits)
		if err != nil {
			observability.RecordInboundDropped(c.side, observability.DropMalformed)
			log.Debug().Str("conn", c.id).Err(err).Msg("wsbridge: bad frame dropped")
			continue
		}
		if f.Header.MessageType != frame.TypePost {
			continue
		}
		if f.TargetOrigin != c.localOrigin {
			observability.RecordInboundDropped(c.side, observability.DropOriginMismatch)
			continue
		}
		ev := window.MessageEvent{
			Origin: c.remoteOrigin,
			Source: c,
			Data:   f.Payload,
		}
		c.loop.Post(func() {
			if !c.closed.Load() {
				c.listeners.Deliver(ev)
			}
		})
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.closeWith(err)
				return
			}
		}
	}
}

func isNormalClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	return errors.Is(err, websocket.ErrCloseSent)
}
