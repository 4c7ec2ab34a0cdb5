package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrAPIUnavailable reports that no daemon answered at the configured bind.
var ErrAPIUnavailable = errors.New("daemon API unavailable")

// StatusError is returned for non-2xx API responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon API returned status %d", e.Code)
	}
	return fmt.Sprintf("daemon API returned status %d: %s", e.Code, e.Message)
}

// Client calls the daemon HTTP API.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// NewClient builds a client for bind, which may be "host:port" or a URL.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, ErrAPIUnavailable
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api bind: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &Client{
		base:  base,
		http:  &http.Client{Timeout: 10 * time.Second},
		token: strings.TrimSpace(token),
	}, nil
}

// Status fetches daemon status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

// SubmitTag queues a scanned UID.
func (c *Client) SubmitTag(ctx context.Context, uid, source string) (TagResponse, error) {
	var out TagResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/tag", TagRequest{UID: uid, Source: source}, &out)
	return out, err
}

// Assignments lists stored assignments.
func (c *Client) Assignments(ctx context.Context) ([]Assignment, error) {
	var out AssignmentListResponse
	if err := c.do(ctx, http.MethodGet, "/api/assignments", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Assignment looks up one tag. A missing tag returns found=false.
func (c *Client) Assignment(ctx context.Context, tagID string) (Assignment, bool, error) {
	var out AssignmentResponse
	err := c.do(ctx, http.MethodGet, "/api/assignments/"+url.PathEscape(tagID), nil, &out)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return Assignment{}, false, nil
	}
	if err != nil {
		return Assignment{}, false, err
	}
	return out.Item, out.Found, nil
}

// RemoveAssignment deletes one tag assignment.
func (c *Client) RemoveAssignment(ctx context.Context, tagID string) (bool, error) {
	var out AssignmentRemoveResponse
	err := c.do(ctx, http.MethodDelete, "/api/assignments/"+url.PathEscape(tagID), nil, &out)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return false, nil
	}
	return out.Removed, err
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification(ctx context.Context) (NotifyResponse, error) {
	var out NotifyResponse
	err := c.do(ctx, http.MethodPost, "/api/notifications/test", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var netErr *net.OpError
		if errors.As(err, &netErr) {
			return fmt.Errorf("%w: %v", ErrAPIUnavailable, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &apiErr) != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(data))
		}
		return &StatusError{Code: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
