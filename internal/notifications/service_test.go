package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"cardsync/internal/config"
	"cardsync/internal/notifications"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newNtfyServer(t *testing.T, status int) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), seen...)
	}
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyCardAssigned(context.Background(), "04AB", "command", "##0#5#0"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).TestNotification(context.Background()); err != nil {
		t.Fatalf("expected nil config to produce noop, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "card assigned",
			send: func(s notifications.Service) error {
				return s.NotifyCardAssigned(context.Background(), "04AB", "stream", "#http://radio/x#0#3#0")
			},
			expectTitle:   "cardsync - Card Ready",
			expectMessage: "Card 04AB assigned (stream): #http://radio/x#0#3#0",
			expectTags:    "cardsync,card,stream",
		},
		{
			name: "resolution failed",
			send: func(s notifications.Service) error {
				return s.NotifyResolutionFailed(context.Background(), "04AB", errors.New("tag not found"))
			},
			expectTitle:    "cardsync - Scan Failed",
			expectMessage:  "Card 04AB could not be resolved: tag not found",
			expectTags:     "cardsync,card,failed",
			expectPriority: "high",
		},
		{
			name: "error",
			send: func(s notifications.Service) error {
				return s.NotifyError(context.Background(), errors.New("boom"), "daemon")
			},
			expectTitle:    "cardsync - Error",
			expectMessage:  "Error with daemon: boom",
			expectTags:     "cardsync,error,alert",
			expectPriority: "high",
		},
		{
			name: "test",
			send: func(s notifications.Service) error {
				return s.TestNotification(context.Background())
			},
			expectTitle:    "cardsync - Test",
			expectMessage:  "Notification system test",
			expectTags:     "cardsync,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, requests := newNtfyServer(t, http.StatusOK)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = srv.URL
			if err := tc.send(notifications.NewService(&cfg)); err != nil {
				t.Fatalf("send: %v", err)
			}
			got := requests()
			if len(got) != 1 {
				t.Fatalf("expected 1 request, got %d", len(got))
			}
			req := got[0]
			if req.title != tc.expectTitle || req.body != tc.expectMessage || req.tags != tc.expectTags || req.priority != tc.expectPriority {
				t.Fatalf("unexpected request %+v", req)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	srv, _ := newNtfyServer(t, http.StatusForbidden)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestIndicatorRespectsToggles(t *testing.T) {
	srv, requests := newNtfyServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.Errors = true
	cfg.Notifications.Assignments = false

	ind := notifications.NewIndicator(notifications.NewService(&cfg), &cfg, nil)
	ind.IndicateAssigned(context.Background(), "04AB", "command", "##0#1#0")
	ind.IndicateFailure(context.Background(), "04AB", errors.New("login failed"))
	ind.Wait()

	got := requests()
	if len(got) != 1 || got[0].title != "cardsync - Scan Failed" {
		t.Fatalf("unexpected deliveries %+v", got)
	}
}

func TestIndicatorSurvivesCancelledContextAndFailures(t *testing.T) {
	srv, requests := newNtfyServer(t, http.StatusInternalServerError)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.Errors = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ind := notifications.NewIndicator(notifications.NewService(&cfg), &cfg, nil)
	ind.IndicateFailure(ctx, "04AB", errors.New("download failed"))
	ind.Wait()

	if len(requests()) != 1 {
		t.Fatalf("expected delivery despite cancelled caller context")
	}
}

func TestIndicatorReportsComponentFailures(t *testing.T) {
	srv, requests := newNtfyServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.Errors = true

	ind := notifications.NewIndicator(notifications.NewService(&cfg), &cfg, nil)
	ind.IndicateComponentFailure(context.Background(), "cardsync daemon", errors.New("api server: address in use"))
	ind.IndicateComponentFailure(context.Background(), "cardsync daemon", nil)
	ind.Wait()

	got := requests()
	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %+v", got)
	}
	if got[0].title != "cardsync - Error" || got[0].body != "Error with cardsync daemon: api server: address in use" {
		t.Fatalf("unexpected delivery %+v", got[0])
	}

	cfg.Notifications.Errors = false
	quiet := notifications.NewIndicator(notifications.NewService(&cfg), &cfg, nil)
	quiet.IndicateComponentFailure(context.Background(), "cardsync daemon", errors.New("agent gone"))
	quiet.Wait()
	if len(requests()) != 1 {
		t.Fatalf("expected no delivery with error notifications disabled")
	}
}
