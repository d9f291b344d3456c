// Package browser is a small stand-in browser that serves host requests: it
// keeps windows and tabs in SQLite and fetches page content over HTTP.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/glicbridge/internal/glic"
	"github.com/danmuck/glicbridge/internal/protocol/catalog"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrBadVersion = errors.New("browser: bad version string")

type Config struct {
	// Version is the reported browser version, "major.minor.build.patch".
	Version       string
	DefaultWidth  int
	DefaultHeight int
	MinWidth      int
	MinHeight     int
	MaxWidth      int
	MaxHeight     int
	// FetchPages loads new tabs over HTTP to fill in title and text.
	FetchPages        bool
	FetchTimeout      time.Duration
	UserAgent         string
	MaxInnerTextBytes int
}

func DefaultConfig() Config {
	return Config{
		Version:           "1.0.0.0",
		DefaultWidth:      400,
		DefaultHeight:     600,
		MinWidth:          200,
		MinHeight:         200,
		MaxWidth:          3840,
		MaxHeight:         2160,
		FetchPages:        true,
		FetchTimeout:      10 * time.Second,
		UserAgent:         "glichost/1",
		MaxInnerTextBytes: 64 * 1024,
	}
}

// WithDefaults fills zero fields from DefaultConfig. FetchPages is kept as
// given.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if strings.TrimSpace(c.Version) == "" {
		c.Version = d.Version
	}
	if c.DefaultWidth <= 0 {
		c.DefaultWidth = d.DefaultWidth
	}
	if c.DefaultHeight <= 0 {
		c.DefaultHeight = d.DefaultHeight
	}
	if c.MinWidth <= 0 {
		c.MinWidth = d.MinWidth
	}
	if c.MinHeight <= 0 {
		c.MinHeight = d.MinHeight
	}
	if c.MaxWidth <= 0 {
		c.MaxWidth = d.MaxWidth
	}
	if c.MaxHeight <= 0 {
		c.MaxHeight = d.MaxHeight
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.MaxInnerTextBytes <= 0 {
		c.MaxInnerTextBytes = d.MaxInnerTextBytes
	}
	return c
}

// ParseChromeVersion parses "major.minor.build.patch".
func ParseChromeVersion(s string) (catalog.ChromeVersion, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 4 {
		return catalog.ChromeVersion{}, fmt.Errorf("%w: %q", ErrBadVersion, s)
	}
	var nums [4]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return catalog.ChromeVersion{}, fmt.Errorf("%w: %q", ErrBadVersion, s)
		}
		nums[i] = n
	}
	return catalog.ChromeVersion{Major: nums[0], Minor: nums[1], Build: nums[2], Patch: nums[3]}, nil
}

// Backend serves host requests from a Store.
type Backend struct {
	cfg      Config
	store    *Store
	fetcher  *Fetcher
	version  catalog.ChromeVersion
	windowID string
	now      func() time.Time

	mu        sync.Mutex
	panelOpen bool
}

var _ glic.BrowserBackend = (*Backend)(nil)

// NewBackend initializes store and creates the window the panel is docked
// to.
func NewBackend(ctx context.Context, store *Store, cfg Config) (*Backend, error) {
	cfg = cfg.WithDefaults()
	version, err := ParseChromeVersion(cfg.Version)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	b := &Backend{
		cfg:      cfg,
		store:    store,
		version:  version,
		windowID: uuid.NewString(),
		now:      time.Now,
	}
	if cfg.FetchPages {
		b.fetcher = NewFetcher(cfg.FetchTimeout, cfg.UserAgent, cfg.MaxInnerTextBytes)
	}
	if err := store.PutWindow(ctx, Window{ID: b.windowID, Width: cfg.DefaultWidth, Height: cfg.DefaultHeight}); err != nil {
		return nil, err
	}
	return b, nil
}

// WindowID is the window the panel is attached to.
func (b *Backend) WindowID() string {
	return b.windowID
}

func (b *Backend) PanelOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.panelOpen
}

func (b *Backend) SetPanelOpen(open bool) {
	b.mu.Lock()
	b.panelOpen = open
	b.mu.Unlock()
}

func (b *Backend) Tabs(ctx context.Context) ([]Tab, error) {
	return b.store.ListTabs(ctx)
}

func (b *Backend) ChromeVersion(context.Context) (catalog.ChromeVersion, error) {
	return b.version, nil
}

// CreateTab stores a new tab. A page that fails to load still gets a tab,
// with no title or text.
func (b *Backend) CreateTab(ctx context.Context, rawURL string, opts catalog.CreateTabOptions) (catalog.TabData, error) {
	if _, err := OriginOf(rawURL); err != nil {
		return catalog.TabData{}, err
	}
	windowID := b.windowID
	if opts.WindowID != nil && *opts.WindowID != "" {
		windowID = *opts.WindowID
	}
	if _, err := b.store.GetWindow(ctx, windowID); err != nil {
		return catalog.TabData{}, err
	}

	now := b.now()
	tab := Tab{
		ID:        uuid.NewString(),
		WindowID:  windowID,
		URL:       rawURL,
		CreatedAt: now,
	}
	if opts.OpenInBackground == nil || !*opts.OpenInBackground {
		tab.FocusedAt = now
	}
	if b.fetcher != nil {
		page, err := b.fetcher.Fetch(ctx, rawURL)
		if err != nil {
			log.Warn().Str("url", rawURL).Err(err).Msg("browser: page load failed")
		} else {
			tab.Title = page.Title
			tab.InnerText = page.InnerText
		}
	}
	if err := b.store.InsertTab(ctx, tab); err != nil {
		return catalog.TabData{}, err
	}
	log.Info().Str("tab", tab.ID).Str("url", rawURL).Bool("focused", !tab.FocusedAt.IsZero()).Msg("browser: tab created")
	return tabData(tab), nil
}

func (b *Backend) ClosePanel(context.Context) error {
	b.SetPanelOpen(false)
	log.Info().Msg("browser: panel closed by web client")
	return nil
}

func (b *Backend) ContextFromFocusedTab(ctx context.Context, opts catalog.ContextOptions) (catalog.TabContextResult, error) {
	tab, err := b.store.FocusedTab(ctx)
	if err != nil {
		return catalog.TabContextResult{}, err
	}
	result := catalog.TabContextResult{TabData: tabData(tab)}
	if opts.InnerText != nil && *opts.InnerText {
		origin, err := OriginOf(tab.URL)
		if err != nil {
			return catalog.TabContextResult{}, err
		}
		result.WebPageData = &catalog.WebPageData{
			MainDocument: catalog.DocumentData{Origin: origin, InnerText: tab.InnerText},
		}
	}
	return result, nil
}

// ResizeWindow clamps the requested size to the configured bounds and
// reports the size applied.
func (b *Backend) ResizeWindow(ctx context.Context, width, height int) (catalog.ResizeWindowResponse, error) {
	w := clamp(width, b.cfg.MinWidth, b.cfg.MaxWidth)
	h := clamp(height, b.cfg.MinHeight, b.cfg.MaxHeight)
	if err := b.store.PutWindow(ctx, Window{ID: b.windowID, Width: w, Height: h}); err != nil {
		return catalog.ResizeWindowResponse{}, err
	}
	return catalog.ResizeWindowResponse{ActualWidth: w, ActualHeight: h}, nil
}

func tabData(t Tab) catalog.TabData {
	return catalog.TabData{TabID: t.ID, WindowID: t.WindowID, URL: t.URL, Title: t.Title}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
