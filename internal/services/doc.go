// Package services defines shared utilities consumed by the resolver and the
// external integrations it talks to.
//
// Key responsibilities:
//   - Context helpers that stamp tag IDs, resolver states, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (login, lookup, card type, download, persistence) without
//     string matching.
//
// Integration clients live in subpackages, such as cardserver for the remote
// card metadata server.
package services
