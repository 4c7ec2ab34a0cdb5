package cardserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"cardsync/internal/config"
	"cardsync/internal/logging"
	"cardsync/internal/metadata"
)

const (
	LoginPath = "/api/v1/User/login"
	cardPath  = "/api/v1/Card/"

	// DefaultDownloadTimeout bounds a whole track fetch when no
	// card_server.download_timeout is configured.
	DefaultDownloadTimeout = 5 * time.Minute
)

var (
	// ErrDownloadStalled reports a track body that stopped delivering bytes
	// for longer than the request timeout.
	ErrDownloadStalled = errors.New("download stalled")
	// ErrDownloadTimeout reports a track fetch that exceeded the download timeout.
	ErrDownloadTimeout = errors.New("download timed out")
)

// HTTPDoer describes the HTTP client used by the card server transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestObserver receives one call per completed request.
type RequestObserver func(method string, status int, elapsed time.Duration)

// Client performs requests against a single card server.
type Client struct {
	baseURL  string
	origin   *url.URL
	api      HTTPDoer
	download HTTPDoer
	maxBody  int
	logger   *slog.Logger
	observe  RequestObserver

	idleTimeout     time.Duration
	downloadTimeout time.Duration

	token string
	body  []byte
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces both the API and the download client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.api = doer
			c.download = doer
		}
	}
}

// WithObserver registers a request observer, typically a metrics recorder.
func WithObserver(fn RequestObserver) Option {
	return func(c *Client) { c.observe = fn }
}

// WithDownloadTimeout bounds each Fetch end to end. Zero or negative keeps
// DefaultDownloadTimeout.
func WithDownloadTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.downloadTimeout = d
		}
	}
}

// WithLogger sets the logger used for request debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds a Client for baseURL. maxBody bounds buffered JSON responses.
func New(baseURL string, timeout time.Duration, maxBody int, opts ...Option) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if timeout > 0 {
		transport.ResponseHeaderTimeout = timeout
	}
	traced := otelhttp.NewTransport(transport)
	if maxBody <= 0 {
		maxBody = metadata.DefaultLimit
	}
	c := &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		api:      &http.Client{Timeout: timeout, Transport: traced},
		download: &http.Client{Transport: traced},
		maxBody:  maxBody,
		logger:   logging.NewNop(),

		idleTimeout:     timeout,
		downloadTimeout: DefaultDownloadTimeout,
	}
	if parsed, err := url.Parse(c.baseURL); err == nil && parsed.Host != "" {
		c.origin = parsed
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a Client from the card_server config section.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	base, err := cfg.CardServerBaseURL()
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithDownloadTimeout(cfg.CardServerDownloadTimeout())}, opts...)
	return New(base, cfg.CardServerTimeout(), cfg.CardServer.MaxResponseBytes, opts...), nil
}

// BaseURL returns the server root all relative paths resolve against.
func (c *Client) BaseURL() string { return c.baseURL }

// MaxBody returns the parse limit applied to buffered responses.
func (c *Client) MaxBody() int { return c.maxBody }

// SetToken sets the bearer token attached to later requests. An empty token
// removes the Authorization header.
func (c *Client) SetToken(token string) { c.token = token }

// ResponseBody returns the body of the most recent Post or Get. It holds at
// most MaxBody()+1 bytes.
func (c *Client) ResponseBody() []byte { return c.body }

// Post sends a JSON body and buffers the response.
func (c *Client) Post(ctx context.Context, path string, body []byte) (int, error) {
	return c.roundTrip(ctx, http.MethodPost, path, body)
}

// Get issues a GET and buffers the response.
func (c *Client) Get(ctx context.Context, path string) (int, error) {
	return c.roundTrip(ctx, http.MethodGet, path, nil)
}

// Fetch streams the body of a GET into w. The body is copied only on 200.
// The whole fetch is bounded by the download timeout, and a body that
// delivers nothing for one request timeout is abandoned as stalled.
func (c *Client) Fetch(ctx context.Context, path string, w io.Writer) (int, int64, error) {
	ctx, cancelTotal := context.WithTimeoutCause(ctx, c.downloadTimeout, ErrDownloadTimeout)
	defer cancelTotal()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, 0, err
	}
	started := time.Now()
	resp, err := c.download.Do(req)
	if err != nil {
		c.record(http.MethodGet, 0, started)
		return 0, 0, fmt.Errorf("fetch %s: %w", path, fetchCause(ctx, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.record(http.MethodGet, resp.StatusCode, started)
		return resp.StatusCode, 0, nil
	}

	var body io.Reader = resp.Body
	if c.idleTimeout > 0 {
		watchdog := time.AfterFunc(c.idleTimeout, func() { cancel(ErrDownloadStalled) })
		defer watchdog.Stop()
		body = &idleReader{r: resp.Body, timer: watchdog, idle: c.idleTimeout}
	}
	n, err := io.Copy(w, body)
	c.record(http.MethodGet, resp.StatusCode, started)
	if err != nil {
		return resp.StatusCode, n, fmt.Errorf("read %s: %w", path, fetchCause(ctx, err))
	}
	return resp.StatusCode, n, nil
}

// fetchCause prefers the stall or timeout cause over the generic
// cancellation error the transport reports.
func fetchCause(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return err
}

// idleReader re-arms the stall timer after every read that returns data.
type idleReader struct {
	r     io.Reader
	timer *time.Timer
	idle  time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.Reset(r.idle)
	}
	return n, err
}

// CardPath returns the lookup path for a tag.
func CardPath(tagID string) string {
	return cardPath + url.PathEscape(tagID)
}

// CardInfoPath returns the metadata path for a tag.
func CardInfoPath(tagID string) string {
	return CardPath(tagID) + "/info"
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte) (int, error) {
	c.body = nil
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return 0, err
	}
	started := time.Now()
	resp, err := c.api.Do(req)
	if err != nil {
		c.record(method, 0, started)
		return 0, fmt.Errorf("%s %s: %w", strings.ToLower(method), path, err)
	}
	defer resp.Body.Close()

	buffered, err := io.ReadAll(io.LimitReader(resp.Body, int64(c.maxBody)+1))
	c.record(method, resp.StatusCode, started)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read %s response: %w", path, err)
	}
	c.body = buffered
	c.logger.Debug("card server response",
		logging.String("method", method),
		logging.String("path", path),
		logging.Int("status", resp.StatusCode),
		logging.Int("bytes", len(buffered)),
	)
	return resp.StatusCode, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" && c.sameOrigin(req.URL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// sameOrigin reports whether target is served by the card server itself.
// Track URLs may point at other hosts, which must never see the session token.
func (c *Client) sameOrigin(target *url.URL) bool {
	if c.origin == nil || target == nil {
		return false
	}
	return strings.EqualFold(target.Scheme, c.origin.Scheme) && strings.EqualFold(target.Host, c.origin.Host)
}

// resolve accepts a server-relative path or an absolute http(s) URL.
func (c *Client) resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("empty request path")
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		if _, err := url.Parse(path); err != nil {
			return "", fmt.Errorf("parse url %q: %w", path, err)
		}
		return path, nil
	}
	if c.baseURL == "" {
		return "", errors.New("card server base url is not configured")
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/"), nil
}

func (c *Client) record(method string, status int, started time.Time) {
	if c.observe != nil {
		c.observe(method, status, time.Since(started))
	}
}
