package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"cardsync/internal/assignments"
	"cardsync/internal/config"
)

const (
	cardServerCheck = "Card server"
	storeCheck      = "Assignment store"
	agentCheck      = "NFC agent"
	checkTimeout    = 5 * time.Second
)

// CheckCardServer verifies the card server answers HTTP at its base URL.
// Any response below 500 counts as reachable; the login endpoint is not
// exercised so credentials are never sent.
func CheckCardServer(ctx context.Context, baseURL string) Result {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: cardServerCheck, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	client := &http.Client{Timeout: checkTimeout}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/", nil)
	if err != nil {
		return Result{Name: cardServerCheck, Detail: fmt.Sprintf("%s (error: %v)", base, err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: cardServerCheck, Detail: fmt.Sprintf("%s (%s)", base, summarizeNetError(err))}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: cardServerCheck, Detail: fmt.Sprintf("%s (server error %d)", base, resp.StatusCode)}
	}
	return Result{Name: cardServerCheck, Passed: true, Detail: fmt.Sprintf("%s (reachable)", base)}
}

// CheckStore opens the configured assignment store and lists its contents.
func CheckStore(ctx context.Context, cfg *config.Config) Result {
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	store, err := assignments.Open(checkCtx, cfg)
	if err != nil {
		return Result{Name: storeCheck, Detail: fmt.Sprintf("%s (error: %v)", cfg.Store.Backend, err)}
	}
	defer store.Close()

	items, err := store.List(checkCtx)
	if err != nil {
		return Result{Name: storeCheck, Detail: fmt.Sprintf("%s (error: list: %v)", store.Backend(), err)}
	}
	return Result{Name: storeCheck, Passed: true, Detail: fmt.Sprintf("%s (%d assignments)", store.Backend(), len(items))}
}

// CheckAgent verifies the NFC agent host accepts TCP connections. The
// websocket handshake itself is left to the daemon.
func CheckAgent(ctx context.Context, agentURL string) Result {
	parsed, err := url.Parse(strings.TrimSpace(agentURL))
	if err != nil || parsed.Host == "" {
		return Result{Name: agentCheck, Detail: fmt.Sprintf("%s (error: invalid url)", agentURL)}
	}
	host := parsed.Host
	if parsed.Port() == "" {
		port := "80"
		if parsed.Scheme == "wss" || parsed.Scheme == "https" {
			port = "443"
		}
		host = net.JoinHostPort(parsed.Hostname(), port)
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(checkCtx, "tcp", host)
	if err != nil {
		return Result{Name: agentCheck, Detail: fmt.Sprintf("%s (%s)", agentURL, summarizeNetError(err))}
	}
	_ = conn.Close()
	return Result{Name: agentCheck, Passed: true, Detail: fmt.Sprintf("%s (reachable)", agentURL)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("unreachable: %v", opErr.Err)
	}
	return err.Error()
}
