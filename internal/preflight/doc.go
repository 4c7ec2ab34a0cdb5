// Package preflight provides readiness checks for the card server, the
// assignment store, and the filesystem paths cardsync depends on.
//
// The CLI "cardsync check" command runs RunAll and renders each Result.
// Checks for optional features, such as the NFC agent, are skipped when the
// feature is not configured.
package preflight
