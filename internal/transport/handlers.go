package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/danmuck/glicbridge/internal/protocol"
	"github.com/danmuck/glicbridge/internal/protocol/catalog"
	"github.com/danmuck/glicbridge/internal/window"
)

// TransferList collects transferables a handler attaches to its response.
type TransferList struct {
	mu    sync.Mutex
	items []window.Transferable
}

func (l *TransferList) Add(items ...window.Transferable) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.items = append(l.items, items...)
	l.mu.Unlock()
}

func (l *TransferList) Items() []window.Transferable {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.items) == 0 {
		return nil
	}
	return append([]window.Transferable(nil), l.items...)
}

// HandlerFunc serves one request type. A nil result with a nil error is a
// void response.
type HandlerFunc func(ctx context.Context, payload json.RawMessage, transfer *TransferList) (any, error)

// HandlerTable is an immutable name-keyed dispatch table that covers its
// catalog exactly.
type HandlerTable struct {
	cat      catalog.Catalog
	handlers map[string]HandlerFunc
}

func NewHandlerTable(cat catalog.Catalog, handlers map[string]HandlerFunc) (*HandlerTable, error) {
	table := &HandlerTable{cat: cat, handlers: make(map[string]HandlerFunc, len(handlers))}
	for name, fn := range handlers {
		if fn == nil {
			return nil, fmt.Errorf("%w: %s", ErrNilHandler, name)
		}
		if !cat.Has(name) {
			return nil, fmt.Errorf("%w: %s/%s", ErrUnknownHandler, cat.Name(), name)
		}
		table.handlers[name] = fn
	}
	for _, name := range cat.Names() {
		if _, ok := table.handlers[name]; !ok {
			return nil, fmt.Errorf("%w: %s/%s", ErrMissingHandler, cat.Name(), name)
		}
	}
	return table, nil
}

func (t *HandlerTable) Lookup(name string) (HandlerFunc, bool) {
	fn, ok := t.handlers[name]
	return fn, ok
}

func (t *HandlerTable) Names() []string {
	out := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (t *HandlerTable) Catalog() catalog.Catalog {
	return t.cat
}

// Handle adapts a typed handler. The request payload is decoded into Req; an
// absent payload leaves Req zero.
func Handle[Req, Resp any](fn func(ctx context.Context, req Req, transfer *TransferList) (Resp, error)) HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage, transfer *TransferList) (any, error) {
		req, err := decodeRequest[Req](payload)
		if err != nil {
			return nil, err
		}
		return fn(ctx, req, transfer)
	}
}

// HandleVoid adapts a typed handler with no response payload.
func HandleVoid[Req any](fn func(ctx context.Context, req Req) error) HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage, _ *TransferList) (any, error) {
		req, err := decodeRequest[Req](payload)
		if err != nil {
			return nil, err
		}
		return nil, fn(ctx, req)
	}
}

func decodeRequest[Req any](payload json.RawMessage) (Req, error) {
	var req Req
	if protocol.IsEmptyPayload(payload) {
		return req, nil
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return req, nil
}
