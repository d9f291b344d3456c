package transport

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/danmuck/glicbridge/internal/protocol/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHandlerTableCoversCatalogExactly(t *testing.T) {
	table, err := NewHandlerTable(catalog.HostRequests, hostHandlers(nil))
	require.NoError(t, err)
	assert.Equal(t, catalog.HostRequests.Names(), table.Names())
	assert.Equal(t, "host", table.Catalog().Name())

	_, ok := table.Lookup(catalog.BrowserCreateTab)
	assert.True(t, ok)
	_, ok = table.Lookup(catalog.WebClientNotifyPanelOpened)
	assert.False(t, ok)

	missing := hostHandlers(nil)
	delete(missing, catalog.BrowserResizeWindow)
	_, err = NewHandlerTable(catalog.HostRequests, missing)
	assert.ErrorIs(t, err, ErrMissingHandler)

	extra := hostHandlers(nil)
	extra["glicBrowserSelfDestruct"] = extra[catalog.BrowserClosePanel]
	_, err = NewHandlerTable(catalog.HostRequests, extra)
	assert.ErrorIs(t, err, ErrUnknownHandler)

	nilFn := hostHandlers(nil)
	nilFn[catalog.BrowserClosePanel] = nil
	_, err = NewHandlerTable(catalog.HostRequests, nilFn)
	assert.ErrorIs(t, err, ErrNilHandler)
}

func TestHandleDecodesTypedRequest(t *testing.T) {
	fn := Handle(func(_ context.Context, req catalog.ResizeWindowRequest, transfer *TransferList) (catalog.ResizeWindowResponse, error) {
		transfer.Add("token")
		return catalog.ResizeWindowResponse{ActualWidth: req.Width / 2, ActualHeight: req.Height / 2}, nil
	})

	transfer := &TransferList{}
	got, err := fn(context.Background(), json.RawMessage(`{"width":800,"height":600}`), transfer)
	require.NoError(t, err)
	assert.Equal(t, catalog.ResizeWindowResponse{ActualWidth: 400, ActualHeight: 300}, got)
	assert.Len(t, transfer.Items(), 1)

	_, err = fn(context.Background(), json.RawMessage(`{"width":"wide"}`), transfer)
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestHandleVoidAcceptsMissingPayload(t *testing.T) {
	var seen *string
	fn := HandleVoid(func(_ context.Context, req catalog.NotifyPanelOpenedRequest) error {
		seen = req.DockedToWindowID
		return nil
	})

	got, err := fn(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Nil(t, seen)

	_, err = fn(context.Background(), json.RawMessage(`{"dockedToWindowId":"w1"}`), nil)
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "w1", *seen)
}

func TestTransferListNilSafe(t *testing.T) {
	var l *TransferList
	l.Add("ignored")
	assert.Nil(t, l.Items())
	assert.Nil(t, (&TransferList{}).Items())
}
