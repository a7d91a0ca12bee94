// Package classify maps outbound requests to resource classes.
//
// Classification is an ordered list of rules evaluated top to bottom; the first
// matching rule decides the class. Requests no rule matches fall through to the
// navigational-document class, so nothing is ever left unclassified.
package classify

import (
	"net/http"
	"path"
	"strings"
)

// Class is the resource class of a request.
type Class string

const (
	// ClassStaticAsset covers scripts, stylesheets, images and asset directories.
	ClassStaticAsset Class = "static-asset"

	// ClassAPIData covers calls to the backend API and the data service host.
	ClassAPIData Class = "api-data"

	// ClassDocument covers everything else, mostly HTML page loads.
	ClassDocument Class = "navigational-document"
)

// Predicate reports whether a request matches a rule.
type Predicate func(req *http.Request) bool

// Rule maps matching requests to a class.
type Rule struct {
	// Name identifies the rule in logs
	Name string

	// Match selects requests
	Match Predicate

	// Class is assigned to matching requests
	Class Class
}

// Classifier evaluates rules in order.
type Classifier struct {
	rules    []Rule
	fallback Class
}

// New creates a classifier from rules, evaluated in the given order.
func New(rules ...Rule) *Classifier {
	return &Classifier{
		rules:    append([]Rule(nil), rules...),
		fallback: ClassDocument,
	}
}

// Classify returns the class of the first matching rule, or the
// navigational-document class when no rule matches.
func (c *Classifier) Classify(req *http.Request) Class {
	class, _ := c.ClassifyNamed(req)
	return class
}

// ClassifyNamed is Classify that also returns the matched rule name.
// The name is "default" when the fallback applied.
func (c *Classifier) ClassifyNamed(req *http.Request) (Class, string) {
	if req == nil || req.URL == nil {
		return c.fallback, "default"
	}
	for _, rule := range c.rules {
		if rule.Match != nil && rule.Match(req) {
			return rule.Class, rule.Name
		}
	}
	return c.fallback, "default"
}

// Rules returns a copy of the rules in evaluation order.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// PathPrefix matches requests whose URL path starts with any of the prefixes.
func PathPrefix(prefixes ...string) Predicate {
	return func(req *http.Request) bool {
		for _, prefix := range prefixes {
			if prefix != "" && strings.HasPrefix(req.URL.Path, prefix) {
				return true
			}
		}
		return false
	}
}

// Extension matches requests whose URL path ends in one of the extensions.
// Comparison is case-insensitive; extensions include the leading dot.
func Extension(exts ...string) Predicate {
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = struct{}{}
	}
	return func(req *http.Request) bool {
		ext := strings.ToLower(path.Ext(req.URL.Path))
		if ext == "" {
			return false
		}
		_, ok := allowed[ext]
		return ok
	}
}

// HostContains matches requests whose target host name contains substr.
func HostContains(substr string) Predicate {
	substr = strings.ToLower(substr)
	return func(req *http.Request) bool {
		if substr == "" {
			return false
		}
		host := req.URL.Hostname()
		if host == "" {
			host = req.Host
		}
		return strings.Contains(strings.ToLower(host), substr)
	}
}

// Any matches when at least one predicate matches.
func Any(predicates ...Predicate) Predicate {
	return func(req *http.Request) bool {
		for _, p := range predicates {
			if p(req) {
				return true
			}
		}
		return false
	}
}
