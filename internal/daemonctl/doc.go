// Package daemonctl starts and stops the background daemon on behalf of CLI
// commands using the pid file and the daemon HTTP API.
package daemonctl
