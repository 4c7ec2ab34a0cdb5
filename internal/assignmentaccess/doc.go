// Package assignmentaccess lets CLI commands read and edit stored assignments
// through the running daemon when available, or straight from the configured
// store otherwise.
package assignmentaccess
