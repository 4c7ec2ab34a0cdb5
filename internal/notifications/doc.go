// Package notifications delivers resolver events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and degrades to a no-op when notifications are disabled.
// Indicator adapts the service to the resolver's failure indicator so a failed
// scan produces a push alongside the error log, without ever blocking a
// resolver step on network delivery.
package notifications
