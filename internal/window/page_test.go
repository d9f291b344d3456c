package window

import (
	"bytes"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []MessageEvent
}

func (r *recorder) listen(ev MessageEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []MessageEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MessageEvent(nil), r.events...)
}

func TestProxyDeliversWithSourceOrigin(t *testing.T) {
	host := NewPage("chrome://glic")
	client := NewPage("https://client.example")
	defer host.Close()
	defer client.Close()

	var rec recorder
	client.AddMessageListener(rec.listen)

	data := []byte(`{"type":"glic-bootstrap"}`)
	require.NoError(t, client.ProxyFrom(host).PostMessage(data, "https://client.example", nil))
	data[0] = 'X'
	require.True(t, client.Flush())

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, "chrome://glic", events[0].Origin)
	assert.Equal(t, `{"type":"glic-bootstrap"}`, string(events[0].Data), "data must be copied")
	require.NotNil(t, events[0].Source)

	var back recorder
	host.AddMessageListener(back.listen)
	require.NoError(t, events[0].Source.PostMessage([]byte("reply"), "chrome://glic", nil))
	require.True(t, host.Flush())
	require.Len(t, back.all(), 1)
	assert.Equal(t, "https://client.example", back.all()[0].Origin)
}

func TestProxyDropsMismatchedTargetOrigin(t *testing.T) {
	client := NewPage("https://client.example")
	defer client.Close()
	var rec recorder
	client.AddMessageListener(rec.listen)

	require.NoError(t, client.ProxyFrom(nil).PostMessage([]byte("x"), "https://other.example", nil))
	require.True(t, client.Flush())
	assert.Empty(t, rec.all())
}

func TestProxyRefusesWildcardAndEmpty(t *testing.T) {
	client := NewPage("https://client.example")
	defer client.Close()
	assert.ErrorIs(t, client.ProxyFrom(nil).PostMessage(nil, Wildcard, nil), ErrWildcardOrigin)
	assert.ErrorIs(t, client.ProxyFrom(nil).PostMessage(nil, "", nil), ErrEmptyOrigin)
}

func TestPostToClosedPageIsSilent(t *testing.T) {
	client := NewPage("https://client.example")
	client.Close()
	assert.NoError(t, client.ProxyFrom(nil).PostMessage([]byte("x"), "https://client.example", nil))
	assert.False(t, client.Flush())
}

func TestRemovedListenerSkipsQueuedEvents(t *testing.T) {
	client := NewPage("https://client.example")
	defer client.Close()

	var first, second recorder
	var remove func()
	remove = client.AddMessageListener(func(ev MessageEvent) {
		first.listen(ev)
		remove()
	})
	client.AddMessageListener(second.listen)

	proxy := client.ProxyFrom(nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, proxy.PostMessage([]byte{byte('a' + i)}, "https://client.example", nil))
	}
	require.True(t, client.Flush())
	assert.Len(t, first.all(), 1)
	assert.Len(t, second.all(), 3)
	remove()
}

func TestTransferListTravelsOutOfBand(t *testing.T) {
	client := NewPage("https://client.example")
	defer client.Close()
	var rec recorder
	client.AddMessageListener(rec.listen)

	port := &struct{ name string }{name: "port"}
	require.NoError(t, client.ProxyFrom(nil).PostMessage([]byte("{}"), "https://client.example", []Transferable{port}))
	require.True(t, client.Flush())
	require.Len(t, rec.all(), 1)
	require.Len(t, rec.all()[0].Transfer, 1)
	assert.Same(t, port, rec.all()[0].Transfer[0])
	assert.Equal(t, "null", rec.all()[0].Origin)
}

func TestPageIDsAppearInLogs(t *testing.T) {
	var buf bytes.Buffer
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	}()

	host := NewPage("chrome://glic")
	client := NewPage("https://client.example")
	require.NotEmpty(t, host.ID())
	require.NotEqual(t, host.ID(), client.ID())

	require.NoError(t, client.ProxyFrom(host).PostMessage([]byte("{}"), "https://other.example", nil))
	assert.Contains(t, buf.String(), `"page":"`+client.ID()+`"`)
	assert.Contains(t, buf.String(), `"source_page":"`+host.ID()+`"`)

	buf.Reset()
	client.Close()
	host.Close()
	assert.Contains(t, buf.String(), client.ID())
	assert.Contains(t, buf.String(), host.ID())
	assert.Contains(t, buf.String(), "window: page closed")
}
