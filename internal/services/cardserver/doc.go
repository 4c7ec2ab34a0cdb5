// Package cardserver is the HTTP transport used to talk to the remote card
// server.
//
// A Client keeps one keep-alive connection pool, remembers the bearer token
// obtained at login, and buffers the body of the most recent JSON response up
// to one byte past the configured parse limit so callers can detect oversize
// responses without reading unbounded data. Track bodies are streamed through
// Fetch instead of being buffered.
package cardserver
