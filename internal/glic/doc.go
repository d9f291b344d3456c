// Package glic binds the transport layer to the Glic bridge.
//
// Web-client side:
// - Handshake waits for the host bootstrap message and captures the host window
// - HostRegistry builds the BrowserHost façade for a registered WebClient
//
// Host side:
// - Host sends the bootstrap message, serves host requests through a
//   BrowserBackend, and notifies the web client of panel changes
package glic
