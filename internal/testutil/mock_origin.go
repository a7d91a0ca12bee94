// Package testutil provides testing utilities for the offline cache layer.
package testutil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"
)

// ErrOffline is returned by OfflineTransport for every round trip.
var ErrOffline = errors.New("dial tcp: network is unreachable")

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
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	counts   map[string]int

	// Tracking
	RequestCount int
	LastMethod   string
}

// NewMockOrigin creates a new mock origin server.
// Unconfigured paths answer 404.
func NewMockOrigin() *MockOrigin {
	mock := &MockOrigin{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		counts:   make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.counts[r.URL.Path]++
		mock.LastMethod = r.Method
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		http.NotFound(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockOrigin) URL() string {
	return m.server.URL
}

// Client returns an HTTP client for the mock server.
func (m *MockOrigin) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockOrigin) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockOrigin) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastMethod = ""
	m.counts = make(map[string]int)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockOrigin) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockOrigin) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockOrigin) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastMethod returns the method of the most recent request.
func (m *MockOrigin) GetLastMethod() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastMethod
}

// GetPathCount returns the number of requests made for one path.
func (m *MockOrigin) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[path]
}

// NewOKResponse creates a 200 OK response with the given content type.
func NewOKResponse(body, contentType string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": contentType,
		},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       "not found",
		Headers: map[string]string{
			"Content-Type": "text/plain; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// OfflineTransport fails every round trip as an unreachable network would.
type OfflineTransport struct {
	calls atomic.Int64
}

// RoundTrip implements http.RoundTripper.
func (t *OfflineTransport) RoundTrip(*http.Request) (*http.Response, error) {
	t.calls.Add(1)
	return nil, ErrOffline
}

// Calls returns the number of attempted round trips.
func (t *OfflineTransport) Calls() int {
	return int(t.calls.Load())
}

// SwitchTransport forwards to Online unless switched offline.
type SwitchTransport struct {
	Online  http.RoundTripper
	offline atomic.Bool
	calls   atomic.Int64
}

// NewSwitchTransport creates an online switchable transport.
func NewSwitchTransport(online http.RoundTripper) *SwitchTransport {
	if online == nil {
		online = http.DefaultTransport
	}
	return &SwitchTransport{Online: online}
}

// SetOffline toggles the simulated outage.
func (t *SwitchTransport) SetOffline(offline bool) {
	t.offline.Store(offline)
}

// RoundTrip implements http.RoundTripper.
func (t *SwitchTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.calls.Add(1)
	if t.offline.Load() {
		return nil, ErrOffline
	}
	return t.Online.RoundTrip(req)
}

// Calls returns the number of attempted round trips.
func (t *SwitchTransport) Calls() int {
	return int(t.calls.Load())
}
