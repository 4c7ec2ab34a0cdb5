// Package api defines the JSON payloads served by the daemon HTTP API and a
// client the CLI uses to call it.
//
// Keep these types transport friendly: the daemon converts resolver and store
// values into them, and the CLI renders them without importing daemon
// internals.
package api
