package transport

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/danmuck/glicbridge/internal/window"
)

// Call is one outstanding request. Done receives the call once it completes.
type Call struct {
	ID   uint64
	Type string

	// Reply is the response payload, nil for void responses.
	Reply json.RawMessage
	// Transfer holds transferables attached to the response.
	Transfer []window.Transferable
	Error    error
	Done     chan *Call

	once  sync.Once
	ready chan struct{}
}

func newCall(msgType string) *Call {
	return &Call{Type: msgType, Done: make(chan *Call, 1), ready: make(chan struct{})}
}

func (c *Call) finish(reply json.RawMessage, transfer []window.Transferable, err error) {
	c.once.Do(func() {
		c.Reply = reply
		c.Transfer = transfer
		c.Error = err
		close(c.ready)
		c.Done <- c
	})
}

// Wait blocks until the call completes or ctx ends. A context error leaves
// the request pending on its Sender until a response arrives or the Sender
// is destroyed.
func (c *Call) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-c.ready:
		return c.Reply, c.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
