package catalog

// Version is the current catalog version shared by host and web client.
const Version = 1

// Requests to the host (browser side).
const (
	// Sent once the client returns from Initialize. Not part of the public
	// BrowserHost API.
	BrowserWebClientInitialized   = "glicBrowserWebClientInitialized"
	BrowserGetChromeVersion       = "glicBrowserGetChromeVersion"
	BrowserCreateTab              = "glicBrowserCreateTab"
	BrowserClosePanel             = "glicBrowserClosePanel"
	BrowserGetContextFromFocusTab = "glicBrowserGetContextFromFocusedTab"
	BrowserResizeWindow           = "glicBrowserResizeWindow"
)

// Requests to the web client.
const (
	WebClientNotifyPanelOpened = "glicWebClientNotifyPanelOpened"
	WebClientNotifyPanelClosed = "glicWebClientNotifyPanelClosed"
)

// HostRequests is served by the host and sent by the web client.
var HostRequests = New("host", Version,
	Entry{Name: BrowserWebClientInitialized, VoidResponse: true, Since: 1},
	Entry{Name: BrowserGetChromeVersion, Since: 1},
	Entry{Name: BrowserCreateTab, Required: []string{"url"}, Since: 1},
	Entry{Name: BrowserClosePanel, VoidResponse: true, Since: 1},
	Entry{Name: BrowserGetContextFromFocusTab, Required: []string{"options"}, Since: 1},
	Entry{Name: BrowserResizeWindow, Required: []string{"width", "height"}, Since: 1},
)

// WebClientRequests is served by the web client and sent by the host.
var WebClientRequests = New("web_client", Version,
	Entry{Name: WebClientNotifyPanelOpened, VoidResponse: true, Since: 1},
	Entry{Name: WebClientNotifyPanelClosed, VoidResponse: true, Since: 1},
)
