package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// CardServer is an in-memory card server for tests. Cards maps tag IDs to the
// JSON object served from the info endpoint; Files maps request paths to
// track bodies.
type CardServer struct {
	*httptest.Server

	Username string
	Password string
	Token    string

	mu       sync.Mutex
	cards    map[string]string
	files    map[string][]byte
	stalls   map[string]struct{}
	requests []string
}

// NewCardServer starts a card server accepting the test credentials from
// NewConfig.
func NewCardServer(t testing.TB) *CardServer {
	t.Helper()

	cs := &CardServer{
		Username: "test-user",
		Password: "test-password",
		Token:    "test-token",
		cards:    make(map[string]string),
		files:    make(map[string][]byte),
		stalls:   make(map[string]struct{}),
	}
	cs.Server = httptest.NewServer(http.HandlerFunc(cs.handle))
	t.Cleanup(cs.Close)
	return cs
}

// AddCard registers the info JSON for a tag.
func (cs *CardServer) AddCard(tagID, info string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.cards[tagID] = info
}

// AddFile registers a track body served at path.
func (cs *CardServer) AddFile(path string, body []byte) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.files[path] = body
}

// AddStallingFile registers a track that sends its headers and a few bytes,
// then never finishes the body.
func (cs *CardServer) AddStallingFile(path string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.stalls[path] = struct{}{}
}

// Requests returns the "METHOD path" lines seen so far.
func (cs *CardServer) Requests() []string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]string(nil), cs.requests...)
}

func (cs *CardServer) handle(w http.ResponseWriter, r *http.Request) {
	cs.mu.Lock()
	cs.requests = append(cs.requests, r.Method+" "+r.URL.Path)
	cs.mu.Unlock()

	if r.URL.Path == "/api/v1/User/login" {
		cs.login(w, r)
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+cs.Token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	cs.mu.Lock()
	_, stall := cs.stalls[r.URL.Path]
	cs.mu.Unlock()
	if stall {
		_, _ = w.Write([]byte("ID3"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
		return
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if body, ok := cs.files[r.URL.Path]; ok {
		_, _ = w.Write(body)
		return
	}
	rest, ok := strings.CutPrefix(r.URL.Path, "/api/v1/Card/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	tagID, wantInfo := strings.CutSuffix(rest, "/info")
	info, known := cs.cards[tagID]
	if !known {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if wantInfo {
		_, _ = w.Write([]byte(info))
		return
	}
	_, _ = w.Write([]byte(`{"id":"` + tagID + `"}`))
}

func (cs *CardServer) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var creds struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if creds.Login != cs.Username || creds.Password != cs.Password {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"token": cs.Token})
}
