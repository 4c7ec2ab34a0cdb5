package resolver

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

type fakeResponse struct {
	status int
	body   string
	err    error
}

type fakeCall struct {
	method string
	path   string
	body   string
	token  string
}

type fakeTransport struct {
	responses map[string]fakeResponse
	calls     []fakeCall
	token     string
	body      []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{responses: make(map[string]fakeResponse)}
}

func (f *fakeTransport) on(method, path string, status int, body string) {
	f.responses[method+" "+path] = fakeResponse{status: status, body: body}
}

func (f *fakeTransport) fail(method, path string, err error) {
	f.responses[method+" "+path] = fakeResponse{err: err}
}

func (f *fakeTransport) do(method, path string, body []byte) fakeResponse {
	f.calls = append(f.calls, fakeCall{method: method, path: path, body: string(body), token: f.token})
	resp, ok := f.responses[method+" "+path]
	if !ok {
		return fakeResponse{status: 404}
	}
	return resp
}

func (f *fakeTransport) Post(_ context.Context, path string, body []byte) (int, error) {
	resp := f.do("POST", path, body)
	f.body = []byte(resp.body)
	return resp.status, resp.err
}

func (f *fakeTransport) Get(_ context.Context, path string) (int, error) {
	resp := f.do("GET", path, nil)
	f.body = []byte(resp.body)
	return resp.status, resp.err
}

func (f *fakeTransport) ResponseBody() []byte { return f.body }

func (f *fakeTransport) Fetch(_ context.Context, path string, w io.Writer) (int, int64, error) {
	resp := f.do("FETCH", path, nil)
	if resp.err != nil || resp.status != 200 {
		return resp.status, 0, resp.err
	}
	n, err := io.WriteString(w, resp.body)
	return resp.status, int64(n), err
}

func (f *fakeTransport) SetToken(token string) { f.token = token }

func (f *fakeTransport) count(method string) int {
	n := 0
	for _, c := range f.calls {
		if c.method == method {
			n++
		}
	}
	return n
}

type fakeTags struct {
	tags []string
}

func (f *fakeTags) TryReceive() (string, bool) {
	if len(f.tags) == 0 {
		return "", false
	}
	tag := f.tags[0]
	f.tags = f.tags[1:]
	return tag, true
}

type fakeStore struct {
	mu     sync.Mutex
	values map[string]string
	err    error
	puts   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[string]string)}
}

func (f *fakeStore) Put(_ context.Context, tagID, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.err != nil {
		return f.err
	}
	f.values[tagID] = value
	return nil
}

type fakeIndicator struct {
	failures []error
	assigned []string
}

func (f *fakeIndicator) IndicateFailure(_ context.Context, _ string, err error) {
	f.failures = append(f.failures, err)
}

func (f *fakeIndicator) IndicateAssigned(_ context.Context, tagID, _ string, value string) {
	f.assigned = append(f.assigned, tagID+"="+value)
}

type fakeRecorder struct {
	outcomes []string
	bytes    int64
	changes  int
}

func (f *fakeRecorder) StateChanged(string, string) { f.changes++ }

func (f *fakeRecorder) ResolutionFinished(outcome string, _ time.Duration) {
	f.outcomes = append(f.outcomes, outcome)
}

func (f *fakeRecorder) TrackDownloaded(n int64) { f.bytes += n }

var errConnRefused = errors.New("connection refused")
