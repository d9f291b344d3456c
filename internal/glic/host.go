package glic

import (
	"context"
	"sync"

	"github.com/danmuck/glicbridge/internal/protocol/catalog"
	"github.com/danmuck/glicbridge/internal/transport"
	"github.com/danmuck/glicbridge/internal/window"
	"github.com/rs/zerolog/log"
)

// BrowserBackend performs host requests on behalf of the web client.
type BrowserBackend interface {
	ChromeVersion(ctx context.Context) (catalog.ChromeVersion, error)
	CreateTab(ctx context.Context, url string, opts catalog.CreateTabOptions) (catalog.TabData, error)
	ClosePanel(ctx context.Context) error
	ContextFromFocusedTab(ctx context.Context, opts catalog.ContextOptions) (catalog.TabContextResult, error)
	ResizeWindow(ctx context.Context, width, height int) (catalog.ResizeWindowResponse, error)
}

type HostConfig struct {
	// Name labels logs and metrics. Defaults to "host".
	Name         string
	ClientOrigin string
	// Client posts into the web client's window.
	Client window.Window
	// Events delivers messages posted to the host's window.
	Events  window.EventTarget
	Backend BrowserBackend
}

// Host is the browser side of the bridge for one web client.
type Host struct {
	name         string
	clientOrigin string
	client       window.Window
	backend      BrowserBackend
	sender       *transport.Sender
	receiver     *transport.Receiver

	initOnce    sync.Once
	initialized chan struct{}
}

func NewHost(cfg HostConfig) (*Host, error) {
	if cfg.Backend == nil {
		return nil, ErrNilBackend
	}
	if cfg.Name == "" {
		cfg.Name = "host"
	}
	h := &Host{
		name:         cfg.Name,
		clientOrigin: cfg.ClientOrigin,
		client:       cfg.Client,
		backend:      cfg.Backend,
		initialized:  make(chan struct{}),
	}

	table, err := transport.NewHandlerTable(catalog.HostRequests, h.handlers())
	if err != nil {
		return nil, err
	}
	sender, err := transport.NewSender(cfg.Name, cfg.Client, cfg.Events, cfg.ClientOrigin)
	if err != nil {
		return nil, err
	}
	receiver, err := transport.NewReceiver(cfg.Name, cfg.ClientOrigin, cfg.Client, cfg.Events, table)
	if err != nil {
		sender.Destroy()
		return nil, err
	}
	h.sender = sender
	h.receiver = receiver
	return h, nil
}

func (h *Host) Name() string {
	return h.name
}

func (h *Host) ClientOrigin() string {
	return h.clientOrigin
}

// SendBootstrap posts the bootstrap message that completes the web client's
// handshake.
func (h *Host) SendBootstrap() error {
	return h.client.PostMessage(BootstrapMessage(), h.clientOrigin, nil)
}

// Initialized is closed once the web client reports it has initialized.
func (h *Host) Initialized() <-chan struct{} {
	return h.initialized
}

func (h *Host) NotifyPanelOpened(ctx context.Context, dockedToWindowID *string) error {
	_, err := h.sender.RequestWithResponse(ctx, catalog.WebClientNotifyPanelOpened,
		catalog.NotifyPanelOpenedRequest{DockedToWindowID: dockedToWindowID}, nil)
	return err
}

func (h *Host) NotifyPanelClosed(ctx context.Context) error {
	_, err := h.sender.RequestWithResponse(ctx, catalog.WebClientNotifyPanelClosed, catalog.Empty{}, nil)
	return err
}

func (h *Host) Pending() []transport.PendingInfo {
	return h.sender.Pending()
}

func (h *Host) Destroy() {
	h.receiver.Destroy()
	h.sender.Destroy()
}

func (h *Host) handlers() map[string]transport.HandlerFunc {
	return map[string]transport.HandlerFunc{
		catalog.BrowserWebClientInitialized: transport.HandleVoid(func(context.Context, catalog.Empty) error {
			h.initOnce.Do(func() { close(h.initialized) })
			log.Info().Str("host", h.name).Str("client_origin", h.clientOrigin).Msg("glic: web client initialized")
			return nil
		}),
		catalog.BrowserGetChromeVersion: transport.Handle(func(ctx context.Context, _ catalog.Empty, _ *transport.TransferList) (catalog.ChromeVersion, error) {
			return h.backend.ChromeVersion(ctx)
		}),
		catalog.BrowserCreateTab: transport.Handle(func(ctx context.Context, req catalog.CreateTabRequest, _ *transport.TransferList) (catalog.CreateTabResponse, error) {
			tab, err := h.backend.CreateTab(ctx, req.URL, req.Options)
			if err != nil {
				log.Warn().Str("host", h.name).Str("url", req.URL).Err(err).Msg("glic: create tab failed")
				return catalog.CreateTabResponse{}, nil
			}
			return catalog.CreateTabResponse{TabData: &tab}, nil
		}),
		catalog.BrowserClosePanel: transport.HandleVoid(func(ctx context.Context, _ catalog.Empty) error {
			return h.backend.ClosePanel(ctx)
		}),
		catalog.BrowserGetContextFromFocusTab: transport.Handle(func(ctx context.Context, req catalog.GetContextRequest, _ *transport.TransferList) (catalog.GetContextResponse, error) {
			result, err := h.backend.ContextFromFocusedTab(ctx, req.Options)
			if err != nil {
				log.Warn().Str("host", h.name).Err(err).Msg("glic: focused tab context failed")
				return catalog.GetContextResponse{}, nil
			}
			return catalog.GetContextResponse{TabContextResult: &result}, nil
		}),
		catalog.BrowserResizeWindow: transport.Handle(func(ctx context.Context, req catalog.ResizeWindowRequest, _ *transport.TransferList) (catalog.ResizeWindowResponse, error) {
			return h.backend.ResizeWindow(ctx, req.Width, req.Height)
		}),
	}
}
