// Package transport owns the typed request/response layer over a window
// messaging channel.
//
// Ownership boundary:
// - Sender: correlation ids, pending completions, explicit target origin
// - Receiver: source-origin check, name-keyed dispatch, responses
// - HandlerTable: immutable dispatch table validated against a catalog
//
// Failure policy: inbound messages from the wrong origin, malformed
// envelopes, and unknown message types are dropped silently. Handler
// failures are logged and never answered, so the remote request stays
// pending. Destroying a Sender fails its pending requests with
// ErrTransportClosed. There is no request timeout; callers bound waits with
// their context.
package transport
