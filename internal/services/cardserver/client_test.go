package cardserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cardsync/internal/config"
)

func TestPostSendsJSONAndBuffersResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != LoginPath {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("unexpected content type %q", ct)
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if payload["login"] != "user" || payload["password"] != "pass" {
			t.Fatalf("unexpected payload %v", payload)
		}
		_, _ = w.Write([]byte(`{"token":"abc"}`))
	}))
	defer server.Close()

	client := New(server.URL, time.Second, 1000)
	status, err := client.Post(context.Background(), LoginPath, []byte(`{"login":"user","password":"pass"}`))
	if err != nil {
		t.Fatalf("Post returned error: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if got := string(client.ResponseBody()); got != `{"token":"abc"}` {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestGetAttachesBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/api/v1/Card/04ABCD" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(server.URL+"/", time.Second, 1000)
	client.SetToken("tok")
	if _, err := client.Get(context.Background(), CardPath("04ABCD")); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}

	client.SetToken("")
	if _, err := client.Get(context.Background(), CardPath("04ABCD")); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if gotAuth != "" {
		t.Fatalf("expected no authorization header, got %q", gotAuth)
	}
}

func TestResponseBodyIsCappedOneBytePastLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 5000)))
	}))
	defer server.Close()

	client := New(server.URL, time.Second, 100)
	if _, err := client.Get(context.Background(), "/big"); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got := len(client.ResponseBody()); got != 101 {
		t.Fatalf("expected 101 buffered bytes, got %d", got)
	}
}

func TestFetchStreamsOnlySuccessfulBodies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tracks/1":
			_, _ = w.Write(bytes.Repeat([]byte{0xAB}, 4096))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, time.Second, 100)
	var buf bytes.Buffer
	status, n, err := client.Fetch(context.Background(), "/tracks/1", &buf)
	if err != nil || status != http.StatusOK || n != 4096 || buf.Len() != 4096 {
		t.Fatalf("unexpected fetch result status=%d n=%d err=%v len=%d", status, n, err, buf.Len())
	}

	buf.Reset()
	status, n, err = client.Fetch(context.Background(), server.URL+"/tracks/2", &buf)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if status != http.StatusNotFound || n != 0 || buf.Len() != 0 {
		t.Fatalf("expected nothing copied for 404, got status=%d n=%d", status, n)
	}
}

// stallingServer sends headers and a few bytes, then holds the body open
// until the client gives up.
func stallingServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("partial"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)
	return server
}

func fetchWithin(t *testing.T, client *Client, path string, limit time.Duration) (int64, error) {
	t.Helper()
	type result struct {
		n   int64
		err error
	}
	done := make(chan result, 1)
	go func() {
		_, n, err := client.Fetch(context.Background(), path, io.Discard)
		done <- result{n: n, err: err}
	}()
	select {
	case res := <-done:
		return res.n, res.err
	case <-time.After(limit):
		t.Fatalf("Fetch still blocked after %s", limit)
		return 0, nil
	}
}

func TestFetchAbandonsStalledBody(t *testing.T) {
	server := stallingServer(t)

	client := New(server.URL, 200*time.Millisecond, 100)
	n, err := fetchWithin(t, client, "/tracks/1", 3*time.Second)
	if !errors.Is(err, ErrDownloadStalled) {
		t.Fatalf("expected ErrDownloadStalled, got %v", err)
	}
	if n != int64(len("partial")) {
		t.Fatalf("expected the bytes before the stall to be counted, got %d", n)
	}
}

func TestFetchHonorsDownloadTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, _ := w.(http.Flusher)
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				_, _ = w.Write([]byte("x"))
				if flusher != nil {
					flusher.Flush()
				}
			}
		}
	}))
	defer server.Close()

	client := New(server.URL, time.Second, 100, WithDownloadTimeout(300*time.Millisecond))
	_, err := fetchWithin(t, client, "/tracks/slow", 3*time.Second)
	if !errors.Is(err, ErrDownloadTimeout) {
		t.Fatalf("expected ErrDownloadTimeout, got %v", err)
	}
}

func TestTokenOnlySentToCardServer(t *testing.T) {
	var foreignAuth, ownAuth string
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		foreignAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("audio"))
	}))
	defer foreign.Close()
	own := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("audio"))
	}))
	defer own.Close()

	client := New(own.URL, time.Second, 100)
	client.SetToken("session-token")

	if _, _, err := client.Fetch(context.Background(), foreign.URL+"/track.mp3", io.Discard); err != nil {
		t.Fatalf("Fetch foreign: %v", err)
	}
	if foreignAuth != "" {
		t.Fatalf("foreign host received Authorization %q", foreignAuth)
	}

	if _, _, err := client.Fetch(context.Background(), own.URL+"/track.mp3", io.Discard); err != nil {
		t.Fatalf("Fetch own absolute: %v", err)
	}
	if ownAuth != "Bearer session-token" {
		t.Fatalf("card server absolute url got Authorization %q", ownAuth)
	}

	ownAuth = ""
	if _, _, err := client.Fetch(context.Background(), "/track.mp3", io.Discard); err != nil {
		t.Fatalf("Fetch own relative: %v", err)
	}
	if ownAuth != "Bearer session-token" {
		t.Fatalf("card server relative path got Authorization %q", ownAuth)
	}
}

func TestObserverSeesEveryRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	var statuses []int
	client := New(server.URL, time.Second, 100, WithObserver(func(method string, status int, _ time.Duration) {
		statuses = append(statuses, status)
	}))
	_, _ = client.Get(context.Background(), "/a")
	_, _, _ = client.Fetch(context.Background(), "/b", io.Discard)
	if len(statuses) != 2 || statuses[0] != http.StatusTeapot || statuses[1] != http.StatusTeapot {
		t.Fatalf("unexpected observed statuses %v", statuses)
	}
}

func TestTransportErrorReturnsZeroStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client := New(url, 200*time.Millisecond, 100)
	status, err := client.Get(context.Background(), "/gone")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if status != 0 {
		t.Fatalf("expected zero status, got %d", status)
	}
}

func TestNewFromConfigUsesBaseURLAndLimit(t *testing.T) {
	cfg := config.Default()
	cfg.CardServer.Port = 8080
	cfg.CardServer.MaxResponseBytes = 2048
	client, err := NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if client.BaseURL() != "http://cardserver.local:8080" {
		t.Fatalf("unexpected base url %q", client.BaseURL())
	}
	if client.MaxBody() != 2048 {
		t.Fatalf("unexpected max body %d", client.MaxBody())
	}
	if client.downloadTimeout != 5*time.Minute {
		t.Fatalf("unexpected download timeout %s", client.downloadTimeout)
	}
}

func TestCardPathsEscapeTagID(t *testing.T) {
	if got := CardInfoPath("04 AB"); got != "/api/v1/Card/04%20AB/info" {
		t.Fatalf("unexpected info path %q", got)
	}
}
