package catalog

// Empty is the payload of requests without arguments.
type Empty struct{}

type ChromeVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Build int `json:"build"`
	Patch int `json:"patch"`
}

type TabData struct {
	TabID    string `json:"tabId"`
	WindowID string `json:"windowId"`
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
}

type CreateTabOptions struct {
	OpenInBackground *bool   `json:"openInBackground,omitempty"`
	WindowID         *string `json:"windowId,omitempty"`
}

type CreateTabRequest struct {
	URL     string           `json:"url"`
	Options CreateTabOptions `json:"options"`
}

// CreateTabResponse leaves TabData nil on failure.
type CreateTabResponse struct {
	TabData *TabData `json:"tabData,omitempty"`
}

type ContextOptions struct {
	InnerText *bool `json:"innerText,omitempty"`
	// No screenshot formats are supported yet.
	ViewportScreenshot *bool `json:"viewportScreenshot,omitempty"`
}

type GetContextRequest struct {
	Options ContextOptions `json:"options"`
}

type DocumentData struct {
	Origin    string `json:"origin"`
	InnerText string `json:"innerText,omitempty"`
}

type WebPageData struct {
	MainDocument DocumentData `json:"mainDocument"`
}

type TabContextResult struct {
	TabData     TabData      `json:"tabData"`
	WebPageData *WebPageData `json:"webPageData,omitempty"`
}

// GetContextResponse leaves TabContextResult nil on failure.
type GetContextResponse struct {
	TabContextResult *TabContextResult `json:"tabContextResult,omitempty"`
}

type ResizeWindowRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type ResizeWindowResponse struct {
	ActualWidth  int `json:"actualWidth"`
	ActualHeight int `json:"actualHeight"`
}

type NotifyPanelOpenedRequest struct {
	DockedToWindowID *string `json:"dockedToWindowId,omitempty"`
}
