package client_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeAPI serves the login, token and paginated resource endpoints.
type fakeAPI struct {
	mu       sync.Mutex
	pages    map[string]string // request URI -> JSON body
	status   map[string]int    // request URI -> status override
	requests []*http.Request
	bodies   map[string][]byte

	loginResponse string
	tokenResponse string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{
		pages:         map[string]string{},
		status:        map[string]int{},
		bodies:        map[string][]byte{},
		loginResponse: `{"refreshToken":"refresh-1"}`,
		tokenResponse: `{"accessToken":"access-1"}`,
	}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests = append(a.requests, r.Clone(r.Context()))
	if r.Body != nil {
		body, _ := io.ReadAll(r.Body)
		a.bodies[r.URL.Path] = body
	}

	if code, ok := a.status[r.URL.RequestURI()]; ok {
		w.WriteHeader(code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/login":
		_, _ = w.Write([]byte(a.loginResponse))
	case r.Method == http.MethodPost && r.URL.Path == "/token":
		_, _ = w.Write([]byte(a.tokenResponse))
	default:
		body, ok := a.pages[r.URL.RequestURI()]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}
}

func (a *fakeAPI) page(uri, body string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pages[uri] = body
}

func (a *fakeAPI) fail(uri string, code int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status[uri] = code
}

func (a *fakeAPI) lastRequest() *http.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.requests) == 0 {
		return nil
	}
	return a.requests[len(a.requests)-1]
}

func (a *fakeAPI) requestCount(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, r := range a.requests {
		if r.URL.Path == path {
			n++
		}
	}
	return n
}

func (a *fakeAPI) jsonBody(t *testing.T, path string) map[string]any {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	var out map[string]any
	if err := json.Unmarshal(a.bodies[path], &out); err != nil {
		t.Fatalf("decode %s body: %v", path, err)
	}
	return out
}
