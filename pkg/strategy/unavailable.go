package strategy

import (
	"net/http"
	"time"

	"github.com/DoctorThink/ourcreativity-sub001/pkg/cache"
)

const unavailableBody = "resource unavailable offline"

// UnavailableEntry returns the synthetic response served when neither the
// cache nor the network can produce one.
func UnavailableEntry() *cache.Entry {
	return &cache.Entry{
		StatusCode: http.StatusServiceUnavailable,
		Header: http.Header{
			"Content-Type":  []string{"text/plain; charset=utf-8"},
			"Cache-Control": []string{"no-store"},
		},
		Body:     []byte(unavailableBody),
		CachedAt: time.Now(),
	}
}

// Unavailable is UnavailableEntry as a response to req.
func Unavailable(req *http.Request) *http.Response {
	return UnavailableEntry().Response(req)
}
