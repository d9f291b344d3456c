package transport

import "errors"

var (
	ErrInvalidOrigin   = errors.New("transport: origin must be explicit")
	ErrNilWindow       = errors.New("transport: nil target window")
	ErrNilEventTarget  = errors.New("transport: nil event target")
	ErrNilHandlerTable = errors.New("transport: nil handler table")
	ErrTransportClosed = errors.New("transport: closed")
	ErrBadResponse     = errors.New("transport: bad response payload")
	ErrBadRequest      = errors.New("transport: bad request payload")
	ErrNilHandler      = errors.New("transport: nil handler")
	ErrUnknownHandler  = errors.New("transport: handler not in catalog")
	ErrMissingHandler  = errors.New("transport: catalog entry has no handler")
	ErrHandlerPanic    = errors.New("transport: handler panic")
)
