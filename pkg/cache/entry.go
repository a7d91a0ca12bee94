package cache

import (
	"net/http"
	"time"
)

// Entry is a stored response snapshot.
type Entry struct {
	// StatusCode is the HTTP status code of the stored response
	StatusCode int `json:"status_code"`

	// Header holds the response headers
	Header http.Header `json:"header"`

	// Body is the complete response body
	Body []byte `json:"body"`

	// CachedAt is when the entry was created
	CachedAt time.Time `json:"cached_at"`
}

// OK reports whether the stored status indicates success (2xx).
// Only successful responses are ever written into a generation.
func (e *Entry) OK() bool {
	return e != nil && e.StatusCode >= 200 && e.StatusCode < 300
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age() time.Duration {
	if e.CachedAt.IsZero() {
		return 0
	}
	return time.Since(e.CachedAt)
}
