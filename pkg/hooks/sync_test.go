package hooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/DoctorThink/ourcreativity-sub001/internal/testutil"
	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func queueAction(t *testing.T, q Queue, method, url, body string) {
	t.Helper()
	req, _ := http.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	action, err := NewAction(req)
	if err != nil {
		t.Fatalf("NewAction() error = %v", err)
	}
	if err := q.Push(context.Background(), action); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
}

func TestNewAction_Validate(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		url     string
		wantErr bool
	}{
		{name: "post", method: http.MethodPost, url: "https://example.com/api/posts", wantErr: false},
		{name: "delete", method: http.MethodDelete, url: "https://example.com/api/posts/1", wantErr: false},
		{name: "get is not a write", method: http.MethodGet, url: "https://example.com/", wantErr: true},
		{name: "head is not a write", method: http.MethodHead, url: "https://example.com/", wantErr: true},
		{name: "relative url", method: http.MethodPost, url: "/api/posts", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, tt.url, nil)
			_, err := NewAction(req)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewAction() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidAction) {
				t.Errorf("error = %v, want ErrInvalidAction", err)
			}
		})
	}
}

func TestMemoryQueue_Order(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	if _, err := q.Pop(ctx); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("Pop() on empty queue error = %v, want ErrQueueEmpty", err)
	}

	q.Push(ctx, Action{URL: "b"})
	q.Push(ctx, Action{URL: "c"})
	q.PushFront(ctx, Action{URL: "a"})

	if n, _ := q.Len(ctx); n != 3 {
		t.Fatalf("Len() = %d, want 3", n)
	}
	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Pop(ctx)
		if err != nil || got.URL != want {
			t.Errorf("Pop() = %q, %v, want %q", got.URL, err, want)
		}
	}
}

func TestSyncer_ReplaysInOrder(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()

	var mu sync.Mutex
	var bodies []string
	origin.SetHandler("/api/posts", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, r.Method+" "+string(body))
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})

	q := NewMemoryQueue()
	queueAction(t, q, http.MethodPost, origin.URL()+"/api/posts", `{"n":1}`)
	queueAction(t, q, http.MethodPut, origin.URL()+"/api/posts", `{"n":2}`)

	syncer := NewSyncer(q, http.DefaultTransport, testLogger())
	result, err := syncer.HandleSync(context.Background(), SyncTag)
	if err != nil {
		t.Fatalf("HandleSync() error = %v", err)
	}

	if result != (SyncResult{Replayed: 2}) {
		t.Errorf("result = %+v, want 2 replayed", result)
	}
	mu.Lock()
	defer mu.Unlock()
	want := []string{`POST {"n":1}`, `PUT {"n":2}`}
	if len(bodies) != 2 || bodies[0] != want[0] || bodies[1] != want[1] {
		t.Errorf("origin saw %v, want %v", bodies, want)
	}
}

func TestSyncer_IgnoresOtherTags(t *testing.T) {
	q := NewMemoryQueue()
	queueAction(t, q, http.MethodPost, "https://example.invalid/api", "{}")
	transport := &testutil.OfflineTransport{}

	result, err := NewSyncer(q, transport, testLogger()).HandleSync(context.Background(), "periodic-refresh")
	if err != nil {
		t.Fatalf("HandleSync() error = %v", err)
	}
	if transport.Calls() != 0 {
		t.Error("unknown tag should not replay anything")
	}
	if n, _ := q.Len(context.Background()); n != 1 || result.Replayed != 0 {
		t.Errorf("queue len = %d result = %+v", n, result)
	}
}

func TestSyncer_NetworkFailureRequeues(t *testing.T) {
	q := NewMemoryQueue()
	queueAction(t, q, http.MethodPost, "https://example.invalid/api/first", "1")
	queueAction(t, q, http.MethodPost, "https://example.invalid/api/second", "2")
	transport := &testutil.OfflineTransport{}

	result, err := NewSyncer(q, transport, testLogger()).HandleSync(context.Background(), SyncTag)
	if !errors.Is(err, testutil.ErrOffline) {
		t.Fatalf("HandleSync() error = %v, want ErrOffline", err)
	}
	if transport.Calls() != 1 {
		t.Errorf("calls = %d, want replay to stop after the first failure", transport.Calls())
	}
	if result.Remaining != 2 {
		t.Errorf("Remaining = %d, want 2", result.Remaining)
	}

	head, _ := q.Pop(context.Background())
	if head.URL != "https://example.invalid/api/first" {
		t.Errorf("head = %s, want the failed action back at the front", head.URL)
	}
}

func TestSyncer_HTTPErrorDrops(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.SetResponse("/api/rejected", testutil.MockResponse{StatusCode: http.StatusUnprocessableEntity})
	origin.SetResponse("/api/ok", testutil.MockResponse{StatusCode: http.StatusOK})

	q := NewMemoryQueue()
	queueAction(t, q, http.MethodPost, origin.URL()+"/api/rejected", "{}")
	queueAction(t, q, http.MethodPost, origin.URL()+"/api/ok", "{}")

	result, err := NewSyncer(q, nil, testLogger()).HandleSync(context.Background(), SyncTag)
	if err != nil {
		t.Fatalf("HandleSync() error = %v", err)
	}
	if result != (SyncResult{Replayed: 1, Dropped: 1, Remaining: 0}) {
		t.Errorf("result = %+v", result)
	}
}

func TestSyncer_DropsInvalidActions(t *testing.T) {
	q := NewMemoryQueue()
	q.Push(context.Background(), Action{Method: http.MethodGet, URL: "https://example.invalid/"})
	transport := &testutil.OfflineTransport{}

	result, err := NewSyncer(q, transport, testLogger()).HandleSync(context.Background(), SyncTag)
	if err != nil {
		t.Fatalf("HandleSync() error = %v", err)
	}
	if result.Dropped != 1 || transport.Calls() != 0 {
		t.Errorf("result = %+v calls = %d", result, transport.Calls())
	}
}
