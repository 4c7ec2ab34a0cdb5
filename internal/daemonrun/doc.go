// Package daemonrun assembles the cardsync daemon process: logging, tracing,
// metrics, the assignment store, the card server client, scan sources, and
// the resolver, then blocks until shutdown.
package daemonrun
