// Package resolver turns scanned tags into stored playback assignments.
//
// A Resolver owns one resolution session at a time and advances it through
// login, tag lookup, card info retrieval, and optional track downloads. Each
// call to Step performs exactly one state transition and returns, so the
// daemon scheduler keeps control of pacing. Every failure funnels through a
// single error path that logs, signals the failure indicator, discards staged
// tracks, and returns the machine to Idle without retrying.
//
// Transition holds the pure state table so the sequencing can be tested
// without any I/O.
package resolver
