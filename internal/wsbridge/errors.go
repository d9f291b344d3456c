package wsbridge

import "errors"

var (
	ErrTransferUnsupported = errors.New("wsbridge: transfer lists cannot cross a websocket")
	ErrOriginNotAllowed    = errors.New("wsbridge: origin not allowed")
	ErrNoAllowedOrigins    = errors.New("wsbridge: no allowed origins")
	ErrDialExhausted       = errors.New("wsbridge: dial attempts exhausted")
)
