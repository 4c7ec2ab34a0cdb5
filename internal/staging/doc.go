// Package staging reclaims partial downloads left in the staging directory.
//
// The resolver writes every multi-track download into a "<name>_<tag>.partial"
// directory and renames it into place once the last track lands. A crash or
// a hard kill mid-download leaves that directory behind; the daemon calls
// CleanPartial at startup to remove such leftovers before the first scan.
package staging
