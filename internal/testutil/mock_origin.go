// Package testutil provides testing utilities for the page cache.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock origin path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockOrigin is a configurable origin server for testing.
type MockOrigin struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	requestCount   int
	pathCounts     map[string]int
	lastRawQuery   string
	lastUserAgent  string
	lastRequestURI string
}

// NewMockOrigin starts a mock origin. Unconfigured paths answer 200 with a
// small HTML page naming the path.
func NewMockOrigin() *MockOrigin {
	mock := &MockOrigin{
		handlers:   make(map[string]http.HandlerFunc),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		mock.lastRawQuery = r.URL.RawQuery
		mock.lastUserAgent = r.UserAgent()
		mock.lastRequestURI = r.RequestURI
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL, e.g. "http://127.0.0.1:41234".
func (m *MockOrigin) URL() string {
	return m.server.URL
}

// Host returns the host:port of the mock server.
func (m *MockOrigin) Host() string {
	return m.server.Listener.Addr().String()
}

// Close shuts down the mock server.
func (m *MockOrigin) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockOrigin) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
	m.lastRawQuery = ""
	m.lastUserAgent = ""
	m.lastRequestURI = ""
}

// SetHandler sets a custom handler for a specific path.
func (m *MockOrigin) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockOrigin) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the number of requests made to the server.
func (m *MockOrigin) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// PathCount returns the number of requests made for path.
func (m *MockOrigin) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// LastRawQuery returns the query string of the most recent request.
func (m *MockOrigin) LastRawQuery() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRawQuery
}

// LastRequestURI returns the request URI of the most recent request.
func (m *MockOrigin) LastRequestURI() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestURI
}

// LastUserAgent returns the User-Agent of the most recent request.
func (m *MockOrigin) LastUserAgent() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUserAgent
}

func (m *MockOrigin) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("<html><body>" + r.URL.Path + "</body></html>"))
}

// NewPageResponse creates a 200 HTML response.
func NewPageResponse(html string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       html,
		Headers:    map[string]string{"Content-Type": "text/html; charset=utf-8"},
	}
}

// NewJSONResponse creates a 200 JSON response.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewNotFoundResponse creates a 404 response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       "not found",
	}
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "internal error",
	}
}
