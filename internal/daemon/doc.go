// Package daemon coordinates the long-running cardsync process.
//
// It wires the scan queue, the resolver, the assignment store, the optional
// NFC agent, and the HTTP API into a single lifecycle with flock-based locking
// to prevent multiple instances. A scheduler advances the resolver one
// transition per tick; the API lets operators inject scans, inspect status,
// and manage stored assignments.
//
// Keep orchestration logic here: resolution steps live in the resolver
// package while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
