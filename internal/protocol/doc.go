// Package protocol owns the envelope contract for posted messages.
//
// Ownership boundary:
// - envelope shape and kinds
// - envelope encode/decode and validation
//
// Message type names and payload shapes live in protocol/catalog.
// Byte-stream framing of one posted message lives in protocol/frame.
package protocol
