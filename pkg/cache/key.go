package cache

import (
	"net/http"
	"net/url"
	"strings"
)

// Key is the canonical identity of a cacheable request.
type Key struct {
	// Method is the upper-case request method
	Method string

	// URL is the absolute request URL without fragment
	URL string
}

// KeyFor builds the cache key of a request.
// The full absolute URL, query string included, is part of the key.
func KeyFor(req *http.Request) Key {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	u := *req.URL
	u.Fragment = ""
	u.RawFragment = ""
	if u.Host == "" && req.Host != "" {
		u.Host = req.Host
	}
	if u.Scheme == "" && u.Host != "" {
		u.Scheme = "http"
		if req.TLS != nil {
			u.Scheme = "https"
		}
	}

	return Key{Method: method, URL: u.String()}
}

// String renders the key as "METHOD URL".
//
// Example:
//
//	GET https://example.com/assets/app.js?v=3
func (k Key) String() string {
	return k.Method + " " + k.URL
}

// ParseKey parses a key produced by Key.String.
func ParseKey(s string) (Key, bool) {
	method, rawURL, ok := strings.Cut(s, " ")
	if !ok || method == "" || rawURL == "" {
		return Key{}, false
	}
	if _, err := url.Parse(rawURL); err != nil {
		return Key{}, false
	}
	return Key{Method: method, URL: rawURL}, true
}
