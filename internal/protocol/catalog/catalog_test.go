package catalog

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestGlicCatalogsAreDisjoint(t *testing.T) {
	for _, name := range HostRequests.Names() {
		if WebClientRequests.Has(name) {
			t.Fatalf("%s is declared in both directions", name)
		}
	}
	if HostRequests.Version() != Version || WebClientRequests.Version() != Version {
		t.Fatalf("catalog versions drifted")
	}
}

func TestNamesSorted(t *testing.T) {
	got := WebClientRequests.Names()
	want := []string{WebClientNotifyPanelClosed, WebClientNotifyPanelOpened}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("names: got=%v want=%v", got, want)
	}
}

func TestVoidResponses(t *testing.T) {
	cases := map[string]bool{
		BrowserWebClientInitialized:   true,
		BrowserClosePanel:             true,
		BrowserGetChromeVersion:       false,
		BrowserCreateTab:              false,
		BrowserGetContextFromFocusTab: false,
		BrowserResizeWindow:           false,
	}
	for name, void := range cases {
		e, ok := HostRequests.Lookup(name)
		if !ok {
			t.Fatalf("missing entry %s", name)
		}
		if e.VoidResponse != void {
			t.Fatalf("%s void=%v want %v", name, e.VoidResponse, void)
		}
	}
}

func TestValidateRequest(t *testing.T) {
	ok := []struct {
		name    string
		payload string
	}{
		{BrowserGetChromeVersion, ""},
		{BrowserGetChromeVersion, "{}"},
		{BrowserCreateTab, `{"url":"https://example.com","options":{}}`},
		{BrowserCreateTab, `{"url":"https://example.com","futureField":1}`},
		{BrowserResizeWindow, `{"width":10,"height":20}`},
	}
	for _, tc := range ok {
		if err := HostRequests.ValidateRequest(tc.name, json.RawMessage(tc.payload)); err != nil {
			t.Fatalf("%s %q: unexpected error %v", tc.name, tc.payload, err)
		}
	}

	bad := []struct {
		name    string
		payload string
	}{
		{BrowserCreateTab, ""},
		{BrowserCreateTab, `{"options":{}}`},
		{BrowserResizeWindow, `{"width":10}`},
		{BrowserResizeWindow, `[10,20]`},
	}
	for _, tc := range bad {
		if err := HostRequests.ValidateRequest(tc.name, json.RawMessage(tc.payload)); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("%s %q: expected ErrInvalidPayload, got %v", tc.name, tc.payload, err)
		}
	}

	if err := HostRequests.ValidateRequest("glicBrowserSelfDestruct", nil); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestNewPanicsOnDuplicate(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrDuplicateEntry) {
			t.Fatalf("expected ErrDuplicateEntry panic, got %v", r)
		}
	}()
	New("dup", 1, Entry{Name: "a"}, Entry{Name: "a"})
}

func TestCreateTabResponseOmitsMissingTab(t *testing.T) {
	raw, err := json.Marshal(CreateTabResponse{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != "{}" {
		t.Fatalf("expected empty object, got %s", raw)
	}
}
