package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/danmuck/glicbridge/internal/protocol/catalog"
	"github.com/danmuck/glicbridge/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!doctype html>
<html>
<head><title>  Glic   Test Page </title><style>body{color:red}</style></head>
<body>
  <h1>Heading</h1>
  <script>var ignored = true;</script>
  <p>First   paragraph.</p>
  <ul><li>one</li><li><p>two</p></li></ul>
</body>
</html>`

func newBackend(t *testing.T, cfg Config) *Backend {
	t.Helper()
	testlog.Start(t)
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	b, err := NewBackend(context.Background(), store, cfg)
	require.NoError(t, err)
	return b
}

func pageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/article":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(articleHTML))
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("just\n  text"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestParseChromeVersion(t *testing.T) {
	got, err := ParseChromeVersion("1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, catalog.ChromeVersion{Major: 1, Minor: 2, Build: 3, Patch: 4}, got)

	for _, bad := range []string{"", "1.2.3", "1.2.3.4.5", "1.x.3.4", "1.-2.3.4"} {
		_, err := ParseChromeVersion(bad)
		assert.ErrorIs(t, err, ErrBadVersion, bad)
	}
}

func TestBackendCreateTabFetchesPage(t *testing.T) {
	srv := pageServer(t)
	b := newBackend(t, Config{Version: "120.0.6099.5", FetchPages: true})
	ctx := context.Background()

	version, err := b.ChromeVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 120, version.Major)

	tab, err := b.CreateTab(ctx, srv.URL+"/article", catalog.CreateTabOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Glic Test Page", tab.Title)
	assert.Equal(t, b.WindowID(), tab.WindowID)
	assert.NotEmpty(t, tab.TabID)

	innerText := true
	result, err := b.ContextFromFocusedTab(ctx, catalog.ContextOptions{InnerText: &innerText})
	require.NoError(t, err)
	assert.Equal(t, tab, result.TabData)
	require.NotNil(t, result.WebPageData)
	assert.Equal(t, srv.URL, result.WebPageData.MainDocument.Origin)
	assert.Equal(t, "Heading\nFirst paragraph.\none\ntwo", result.WebPageData.MainDocument.InnerText)

	withoutText, err := b.ContextFromFocusedTab(ctx, catalog.ContextOptions{})
	require.NoError(t, err)
	assert.Nil(t, withoutText.WebPageData)
}

func TestBackendBackgroundTabKeepsFocus(t *testing.T) {
	b := newBackend(t, Config{})
	ctx := context.Background()

	_, err := b.ContextFromFocusedTab(ctx, catalog.ContextOptions{})
	assert.ErrorIs(t, err, ErrNoFocusedTab)

	first, err := b.CreateTab(ctx, "https://example.com/a", catalog.CreateTabOptions{})
	require.NoError(t, err)
	background := true
	_, err = b.CreateTab(ctx, "https://example.com/b", catalog.CreateTabOptions{OpenInBackground: &background})
	require.NoError(t, err)

	result, err := b.ContextFromFocusedTab(ctx, catalog.ContextOptions{})
	require.NoError(t, err)
	assert.Equal(t, first.TabID, result.TabData.TabID)

	tabs, err := b.Tabs(ctx)
	require.NoError(t, err)
	assert.Len(t, tabs, 2)
}

func TestBackendCreateTabRejectsBadInput(t *testing.T) {
	b := newBackend(t, Config{})
	ctx := context.Background()

	_, err := b.CreateTab(ctx, "javascript:alert(1)", catalog.CreateTabOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedURL)

	missing := "no-such-window"
	_, err = b.CreateTab(ctx, "https://example.com", catalog.CreateTabOptions{WindowID: &missing})
	assert.ErrorIs(t, err, ErrWindowNotFound)
}

func TestBackendPageLoadFailureStillCreatesTab(t *testing.T) {
	srv := pageServer(t)
	b := newBackend(t, Config{FetchPages: true, FetchTimeout: 2 * time.Second})

	tab, err := b.CreateTab(context.Background(), srv.URL+"/missing", catalog.CreateTabOptions{})
	require.NoError(t, err)
	assert.Empty(t, tab.Title)
}

func TestBackendResizeClamps(t *testing.T) {
	b := newBackend(t, Config{MinWidth: 300, MinHeight: 300, MaxWidth: 1000, MaxHeight: 800})
	ctx := context.Background()

	got, err := b.ResizeWindow(ctx, 100, 5000)
	require.NoError(t, err)
	assert.Equal(t, catalog.ResizeWindowResponse{ActualWidth: 300, ActualHeight: 800}, got)

	w, err := b.store.GetWindow(ctx, b.WindowID())
	require.NoError(t, err)
	assert.Equal(t, Window{ID: b.WindowID(), Width: 300, Height: 800}, w)
}

func TestBackendPanelState(t *testing.T) {
	b := newBackend(t, Config{})
	b.SetPanelOpen(true)
	assert.True(t, b.PanelOpen())
	require.NoError(t, b.ClosePanel(context.Background()))
	assert.False(t, b.PanelOpen())
}

func TestFetcherPlainText(t *testing.T) {
	srv := pageServer(t)
	f := NewFetcher(2*time.Second, "", 4)

	page, err := f.Fetch(context.Background(), srv.URL+"/plain")
	require.NoError(t, err)
	assert.Equal(t, "just", page.InnerText)
	assert.Empty(t, page.Title)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestExtractInnerTextWithoutBlocks(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<div>loose <b>text</b></div>`))
	require.NoError(t, err)
	assert.Equal(t, "loose text", ExtractInnerText(doc))
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "h", truncate("hé", 2))
	assert.Equal(t, "hé", truncate("hé", 3))
	assert.Equal(t, "abc", truncate("abc", 0))
}

func TestOriginOf(t *testing.T) {
	got, err := OriginOf("https://example.com:8443/path?q=1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com:8443", got)

	_, err = OriginOf("chrome://glic")
	assert.ErrorIs(t, err, ErrUnsupportedURL)
}
