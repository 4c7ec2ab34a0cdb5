// Package scanqueue carries scanned RFID tag identifiers from producers to the
// resolver.
//
// Producers (the NFC agent websocket source and the daemon HTTP API) push
// without blocking; a full queue rejects the tag instead of stalling the
// producer. The resolver drains the queue with TryReceive, which never waits,
// so the step function stays non-blocking.
package scanqueue
