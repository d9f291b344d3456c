package glic

import "errors"

var (
	ErrCreateTabFailed   = errors.New("createTab: failed")
	ErrGetContextFailed  = errors.New("getContextFromFocusedTab: failed")
	ErrNilWebClient      = errors.New("glic: nil web client")
	ErrNilBackend        = errors.New("glic: nil browser backend")
	ErrAlreadyRegistered = errors.New("glic: web client already registered")
	ErrRegistryDestroyed = errors.New("glic: registry destroyed")
	ErrNilEventTarget    = errors.New("glic: nil event target")
)
