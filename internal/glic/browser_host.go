package glic

import (
	"context"
	"encoding/json"

	"github.com/danmuck/glicbridge/internal/protocol/catalog"
	"github.com/danmuck/glicbridge/internal/transport"
	"github.com/danmuck/glicbridge/internal/window"
)

// WebClient is the page-side application that receives a BrowserHost.
type WebClient interface {
	Initialize(ctx context.Context, host *BrowserHost) error
}

// PanelOpenedNotifier is implemented by web clients that want to know when
// the panel opens.
type PanelOpenedNotifier interface {
	NotifyPanelOpened(ctx context.Context, dockedToWindowID *string) error
}

// PanelClosedNotifier is implemented by web clients that want to know when
// the panel closes.
type PanelClosedNotifier interface {
	NotifyPanelClosed(ctx context.Context) error
}

// BrowserHost is the web client's typed view of the host.
type BrowserHost struct {
	sender   *transport.Sender
	receiver *transport.Receiver
}

func newBrowserHost(remote window.Window, events window.EventTarget, wc WebClient) (*BrowserHost, error) {
	table, err := transport.NewHandlerTable(catalog.WebClientRequests, webClientHandlers(wc))
	if err != nil {
		return nil, err
	}
	sender, err := transport.NewSender("web_client", remote, events, HostOrigin)
	if err != nil {
		return nil, err
	}
	receiver, err := transport.NewReceiver("web_client", HostOrigin, remote, events, table)
	if err != nil {
		sender.Destroy()
		return nil, err
	}
	return &BrowserHost{sender: sender, receiver: receiver}, nil
}

func (h *BrowserHost) GetChromeVersion(ctx context.Context) (catalog.ChromeVersion, error) {
	return transport.Request[catalog.ChromeVersion](ctx, h.sender, catalog.BrowserGetChromeVersion, catalog.Empty{})
}

// CreateTab opens url in a new tab. A response without tab data fails with
// ErrCreateTabFailed.
func (h *BrowserHost) CreateTab(ctx context.Context, url string, opts catalog.CreateTabOptions) (catalog.TabData, error) {
	resp, err := transport.Request[catalog.CreateTabResponse](ctx, h.sender, catalog.BrowserCreateTab,
		catalog.CreateTabRequest{URL: url, Options: opts})
	if err != nil {
		return catalog.TabData{}, err
	}
	if resp.TabData == nil {
		return catalog.TabData{}, ErrCreateTabFailed
	}
	return *resp.TabData, nil
}

func (h *BrowserHost) ClosePanel(ctx context.Context) error {
	_, err := h.sender.RequestWithResponse(ctx, catalog.BrowserClosePanel, catalog.Empty{}, nil)
	return err
}

// GetContextFromFocusedTab fails with ErrGetContextFailed when the host
// answers without a result.
func (h *BrowserHost) GetContextFromFocusedTab(ctx context.Context, opts catalog.ContextOptions) (catalog.TabContextResult, error) {
	resp, err := transport.Request[catalog.GetContextResponse](ctx, h.sender, catalog.BrowserGetContextFromFocusTab,
		catalog.GetContextRequest{Options: opts})
	if err != nil {
		return catalog.TabContextResult{}, err
	}
	if resp.TabContextResult == nil {
		return catalog.TabContextResult{}, ErrGetContextFailed
	}
	return *resp.TabContextResult, nil
}

func (h *BrowserHost) ResizeWindow(ctx context.Context, width, height int) (catalog.ResizeWindowResponse, error) {
	return transport.Request[catalog.ResizeWindowResponse](ctx, h.sender, catalog.BrowserResizeWindow,
		catalog.ResizeWindowRequest{Width: width, Height: height})
}

// Pending lists requests still awaiting the host.
func (h *BrowserHost) Pending() []transport.PendingInfo {
	return h.sender.Pending()
}

// Destroy detaches from the host window. Outstanding requests fail with
// transport.ErrTransportClosed.
func (h *BrowserHost) Destroy() {
	h.receiver.Destroy()
	h.sender.Destroy()
}

func (h *BrowserHost) webClientInitialized() error {
	return h.sender.RequestNoResponse(catalog.BrowserWebClientInitialized, catalog.Empty{})
}

// webClientHandlers serves host notifications. Notifications the client does
// not implement are acknowledged without effect.
func webClientHandlers(wc WebClient) map[string]transport.HandlerFunc {
	return map[string]transport.HandlerFunc{
		catalog.WebClientNotifyPanelOpened: transport.HandleVoid(func(ctx context.Context, req catalog.NotifyPanelOpenedRequest) error {
			if n, ok := wc.(PanelOpenedNotifier); ok {
				return n.NotifyPanelOpened(ctx, req.DockedToWindowID)
			}
			return nil
		}),
		catalog.WebClientNotifyPanelClosed: func(ctx context.Context, _ json.RawMessage, _ *transport.TransferList) (any, error) {
			if n, ok := wc.(PanelClosedNotifier); ok {
				return nil, n.NotifyPanelClosed(ctx)
			}
			return nil, nil
		},
	}
}
