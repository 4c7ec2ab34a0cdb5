// Package assignments persists resolved tag assignments.
//
// Each assignment maps a tag identifier to a delimiter-encoded record string
// that the playback side reads: "#<path>#0#<mode>#0". Command cards store an
// empty path. The record codec lives in record.go; storage is pluggable
// between a local SQLite database (default) and Redis.
package assignments
