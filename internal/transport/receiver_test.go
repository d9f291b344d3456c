package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/glicbridge/internal/protocol"
	"github.com/danmuck/glicbridge/internal/protocol/catalog"
	"github.com/danmuck/glicbridge/internal/testutil/testlog"
	"github.com/danmuck/glicbridge/internal/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingHandlers(calls *atomic.Int32) map[string]HandlerFunc {
	out := make(map[string]HandlerFunc)
	for _, name := range catalog.HostRequests.Names() {
		out[name] = func(context.Context, json.RawMessage, *TransferList) (any, error) {
			calls.Add(1)
			return catalog.Empty{}, nil
		}
	}
	return out
}

func encodeRequest(t *testing.T, msgType string, id uint64, payload any) []byte {
	t.Helper()
	env, err := protocol.NewRequest(msgType, id, payload)
	require.NoError(t, err)
	data, err := protocol.Encode(env)
	require.NoError(t, err)
	return data
}

func TestReceiverIgnoresSpoofedOrigins(t *testing.T) {
	var calls atomic.Int32
	b := newBridge(t, countingHandlers(&calls))

	var replies atomic.Int32
	remove := b.client.AddMessageListener(func(window.MessageEvent) { replies.Add(1) })
	defer remove()

	evil := window.NewPage("https://evil.test")
	defer evil.Close()

	data := encodeRequest(t, catalog.BrowserGetChromeVersion, 1, nil)
	require.NoError(t, b.host.ProxyFrom(evil).PostMessage(data, hostOrigin, nil))
	require.NoError(t, b.host.ProxyFrom(nil).PostMessage(data, hostOrigin, nil))
	// A payload claiming the trusted origin does not change the event origin.
	b.host.Dispatch(window.MessageEvent{Origin: "https://client.glic.test.evil.test", Data: data})
	b.host.Dispatch(window.MessageEvent{Origin: "", Data: data})

	require.True(t, b.host.Flush())
	require.True(t, b.client.Flush())
	assert.Zero(t, calls.Load())
	assert.Zero(t, replies.Load())
}

func TestReceiverDropsMalformedMessages(t *testing.T) {
	var calls atomic.Int32
	b := newBridge(t, countingHandlers(&calls))

	inputs := [][]byte{
		nil,
		[]byte("not json"),
		[]byte(`"glicBrowserGetChromeVersion"`),
		[]byte(`{"type":"glicBrowserGetChromeVersion","id":1}`),
		[]byte(`{"type":"glicBrowserGetChromeVersion","id":1,"kind":"shout"}`),
		[]byte(`{"id":1,"kind":"request"}`),
		[]byte(`{"type":"glicBrowserGetChromeVersion","kind":"request"}`),
	}
	proxy := b.host.ProxyFrom(b.client)
	for _, data := range inputs {
		require.NoError(t, proxy.PostMessage(data, hostOrigin, nil))
	}
	require.True(t, b.host.Flush())
	assert.Zero(t, calls.Load())
}

func TestReceiverUnknownTypeIsNoop(t *testing.T) {
	var calls atomic.Int32
	b := newBridge(t, countingHandlers(&calls))

	var replies atomic.Int32
	remove := b.client.AddMessageListener(func(window.MessageEvent) { replies.Add(1) })
	defer remove()

	call := b.sender.Go("glicBrowserFromTheFuture", map[string]int{"x": 1}, nil)
	require.NoError(t, call.Error)

	require.True(t, b.host.Flush())
	require.True(t, b.client.Flush())
	assert.Zero(t, calls.Load())
	assert.Zero(t, replies.Load())
	assert.Len(t, b.sender.Pending(), 1)
}

func TestReceiverDestroyStopsQueuedDispatch(t *testing.T) {
	testlog.Start(t)
	var calls atomic.Int32

	host := window.NewPage(hostOrigin)
	client := window.NewPage(clientOrigin)
	defer host.Close()
	defer client.Close()

	// Registered first, so it runs ahead of the receiver on every event.
	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	var gated atomic.Bool
	removeGate := host.AddMessageListener(func(window.MessageEvent) {
		if gated.CompareAndSwap(false, true) {
			entered <- struct{}{}
			<-gate
		}
	})
	defer removeGate()

	table, err := NewHandlerTable(catalog.HostRequests, countingHandlers(&calls))
	require.NoError(t, err)
	receiver, err := NewReceiver("host", clientOrigin, client.ProxyFrom(host), host, table)
	require.NoError(t, err)

	proxy := host.ProxyFrom(client)
	for id := uint64(1); id <= 3; id++ {
		require.NoError(t, proxy.PostMessage(encodeRequest(t, catalog.BrowserGetChromeVersion, id, nil), hostOrigin, nil))
	}

	<-entered
	receiver.Destroy()
	receiver.Destroy()
	close(gate)

	require.True(t, host.Flush())
	assert.Zero(t, calls.Load())
}

func TestReceiverDestroyDiscardsInFlightResponse(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	b := newBridge(t, map[string]HandlerFunc{
		catalog.BrowserGetChromeVersion: func(context.Context, json.RawMessage, *TransferList) (any, error) {
			close(started)
			<-release
			return catalog.ChromeVersion{Major: 1}, nil
		},
	})

	call := b.sender.Go(catalog.BrowserGetChromeVersion, nil, nil)
	<-started
	b.receiver.Destroy()
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := call.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReceiverHandlerFailureIsNotAnswered(t *testing.T) {
	var failures atomic.Int32
	b := newBridge(t, map[string]HandlerFunc{
		catalog.BrowserGetChromeVersion: func(context.Context, json.RawMessage, *TransferList) (any, error) {
			failures.Add(1)
			return nil, errors.New("version unavailable")
		},
		catalog.BrowserClosePanel: func(context.Context, json.RawMessage, *TransferList) (any, error) {
			failures.Add(1)
			panic("boom")
		},
	})

	failed := b.sender.Go(catalog.BrowserGetChromeVersion, nil, nil)
	panicked := b.sender.Go(catalog.BrowserClosePanel, nil, nil)

	require.Eventually(t, func() bool { return failures.Load() == 2 }, 5*time.Second, 5*time.Millisecond)
	require.True(t, b.client.Flush())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := failed.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, err = panicked.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, b.sender.Pending(), 2)
}

func TestReceiverRejectsInvalidRequestShape(t *testing.T) {
	var calls atomic.Int32
	b := newBridge(t, countingHandlers(&calls))

	call := b.sender.Go(catalog.BrowserCreateTab, map[string]any{"options": map[string]any{}}, nil)
	require.NoError(t, call.Error)
	require.True(t, b.host.Flush())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := call.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, calls.Load())
}

func TestNewReceiverValidation(t *testing.T) {
	page := window.NewPage(hostOrigin)
	defer page.Close()
	table, err := NewHandlerTable(catalog.WebClientRequests, map[string]HandlerFunc{
		catalog.WebClientNotifyPanelOpened: HandleVoid(func(context.Context, catalog.NotifyPanelOpenedRequest) error { return nil }),
		catalog.WebClientNotifyPanelClosed: HandleVoid(func(context.Context, catalog.Empty) error { return nil }),
	})
	require.NoError(t, err)

	_, err = NewReceiver("r", window.Wildcard, page.ProxyFrom(page), page, table)
	assert.ErrorIs(t, err, ErrInvalidOrigin)
	_, err = NewReceiver("r", "", page.ProxyFrom(page), page, table)
	assert.ErrorIs(t, err, ErrInvalidOrigin)
	_, err = NewReceiver("r", hostOrigin, nil, page, table)
	assert.ErrorIs(t, err, ErrNilWindow)
	_, err = NewReceiver("r", hostOrigin, page.ProxyFrom(page), nil, table)
	assert.ErrorIs(t, err, ErrNilEventTarget)
	_, err = NewReceiver("r", hostOrigin, page.ProxyFrom(page), page, nil)
	assert.ErrorIs(t, err, ErrNilHandlerTable)
}

func TestReceiverDestroyStopsAcceptedDispatch(t *testing.T) {
	testlog.Start(t)
	var calls atomic.Int32

	host := window.NewPage(hostOrigin)
	client := window.NewPage(clientOrigin)
	defer host.Close()
	defer client.Close()

	var replies atomic.Int32
	remove := client.AddMessageListener(func(window.MessageEvent) { replies.Add(1) })
	defer remove()

	table, err := NewHandlerTable(catalog.HostRequests, countingHandlers(&calls))
	require.NoError(t, err)
	receiver, err := NewReceiver("host", clientOrigin, client.ProxyFrom(host), host, table)
	require.NoError(t, err)

	env, err := protocol.NewRequest(catalog.BrowserClosePanel, 1, nil)
	require.NoError(t, err)
	handler, ok := table.Lookup(catalog.BrowserClosePanel)
	require.True(t, ok)

	// The message was accepted, then the receiver was destroyed before the
	// handler goroutine got to run.
	receiver.Destroy()
	receiver.serve(env, handler)
	require.True(t, client.Flush())
	assert.Zero(t, calls.Load())
	assert.Zero(t, replies.Load())

	// Back to back through the event path the handler either ran before
	// Destroy or not at all.
	receiver2, err := NewReceiver("host", clientOrigin, client.ProxyFrom(host), host, table)
	require.NoError(t, err)
	receiver2.onMessage(window.MessageEvent{
		Origin: clientOrigin,
		Data:   encodeRequest(t, catalog.BrowserClosePanel, 2, nil),
	})
	receiver2.Destroy()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), int32(1))
}

func TestInvokeSkipsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var called bool
	handler := func(context.Context, json.RawMessage, *TransferList) (any, error) {
		called = true
		return nil, nil
	}
	_, err := invoke(ctx, handler, protocol.Envelope{Type: catalog.BrowserClosePanel, ID: 1}, &TransferList{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
