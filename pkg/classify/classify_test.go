package classify

import (
	"net/http"
	"testing"
)

func TestDefaultRules(t *testing.T) {
	c := NewDefault(DefaultOptions())

	tests := []struct {
		name     string
		url      string
		want     Class
		wantRule string
	}{
		{name: "api prefix", url: "https://ourcreativity.id/api/announcements", want: ClassAPIData, wantRule: "api-prefix"},
		{name: "data service host", url: "https://abc.supabase.co/rest/v1/karya?select=*", want: ClassAPIData, wantRule: "data-service-host"},
		{name: "data service storage image", url: "https://abc.supabase.co/storage/v1/object/public/karya/1.png", want: ClassAPIData, wantRule: "data-service-host"},
		{name: "api path with asset extension", url: "https://ourcreativity.id/api/export.js", want: ClassAPIData, wantRule: "api-prefix"},
		{name: "asset dir", url: "https://ourcreativity.id/assets/index-3f2a.js", want: ClassStaticAsset, wantRule: "asset-dir"},
		{name: "uploads dir", url: "https://ourcreativity.id/lovable-uploads/c861a7c0.png", want: ClassStaticAsset, wantRule: "asset-dir"},
		{name: "stylesheet", url: "https://ourcreativity.id/index.css", want: ClassStaticAsset, wantRule: "asset-extension"},
		{name: "upper case extension", url: "https://ourcreativity.id/banner.JPG", want: ClassStaticAsset, wantRule: "asset-extension"},
		{name: "svg", url: "https://ourcreativity.id/favicon.svg", want: ClassStaticAsset, wantRule: "asset-extension"},
		{name: "root document", url: "https://ourcreativity.id/", want: ClassDocument, wantRule: "default"},
		{name: "page route", url: "https://ourcreativity.id/karya?tab=video", want: ClassDocument, wantRule: "default"},
		{name: "html file", url: "https://ourcreativity.id/index.html", want: ClassDocument, wantRule: "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, tt.url, nil)
			if err != nil {
				t.Fatal(err)
			}
			got, rule := c.ClassifyNamed(req)
			if got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
			if rule != tt.wantRule {
				t.Errorf("rule = %s, want %s", rule, tt.wantRule)
			}
		})
	}
}

func TestClassifier_FirstMatchWins(t *testing.T) {
	always := func(*http.Request) bool { return true }
	c := New(
		Rule{Name: "first", Match: always, Class: ClassAPIData},
		Rule{Name: "second", Match: always, Class: ClassStaticAsset},
	)
	req, _ := http.NewRequest(http.MethodGet, "https://example.com/x.js", nil)

	if got, rule := c.ClassifyNamed(req); got != ClassAPIData || rule != "first" {
		t.Errorf("ClassifyNamed() = %s/%s, want api-data/first", got, rule)
	}
}

func TestClassifier_NoRules(t *testing.T) {
	c := New()
	req, _ := http.NewRequest(http.MethodGet, "https://example.com/app.js", nil)
	if got := c.Classify(req); got != ClassDocument {
		t.Errorf("Classify() = %s, want %s", got, ClassDocument)
	}
	if got := c.Classify(nil); got != ClassDocument {
		t.Errorf("Classify(nil) = %s, want %s", got, ClassDocument)
	}
}

func TestClassifier_RulesIsCopy(t *testing.T) {
	c := NewDefault(DefaultOptions())
	rules := c.Rules()
	rules[0].Class = ClassStaticAsset

	req, _ := http.NewRequest(http.MethodGet, "https://example.com/api/x", nil)
	if got := c.Classify(req); got != ClassAPIData {
		t.Errorf("mutating Rules() result changed classifier: got %s", got)
	}
}

func TestHostContains_Empty(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "https://example.com/", nil)
	if HostContains("")(req) {
		t.Error("empty host substring should never match")
	}
}

func TestAny(t *testing.T) {
	p := Any(PathPrefix("/a/"), Extension(".css"))
	for url, want := range map[string]bool{
		"https://x/a/1":      true,
		"https://x/b/s.css":  true,
		"https://x/b/s.html": false,
	} {
		req, _ := http.NewRequest(http.MethodGet, url, nil)
		if got := p(req); got != want {
			t.Errorf("Any(%s) = %v, want %v", url, got, want)
		}
	}
}
