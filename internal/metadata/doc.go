// Package metadata decodes small JSON objects returned by the card server.
//
// Parsing is bounded: a body larger than the caller's limit is rejected with
// ErrTooLarge before any decoding happens, so an oversized response can never
// be half-read and mistaken for a valid one. Callers distinguish a parse
// failure (error from Parse) from an absent field (false from an accessor).
package metadata
