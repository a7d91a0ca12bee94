package cache

import (
	"testing"
	"time"
)

func TestEntry_OK(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{name: "200 ok", status: 200, want: true},
		{name: "204 no content", status: 204, want: true},
		{name: "304 not modified", status: 304, want: false},
		{name: "404 not found", status: 404, want: false},
		{name: "500 server error", status: 500, want: false},
		{name: "503 unavailable", status: 503, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &Entry{StatusCode: tt.status}
			if got := entry.OK(); got != tt.want {
				t.Errorf("OK() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_OK_Nil(t *testing.T) {
	var entry *Entry
	if entry.OK() {
		t.Error("nil entry should not be OK")
	}
}

func TestEntry_Age(t *testing.T) {
	entry := &Entry{CachedAt: time.Now().Add(-1 * time.Minute)}
	if age := entry.Age(); age < 59*time.Second || age > 61*time.Second {
		t.Errorf("Age() = %v, want ~1m", age)
	}

	if age := (&Entry{}).Age(); age != 0 {
		t.Errorf("Age() of zero entry = %v, want 0", age)
	}
}
