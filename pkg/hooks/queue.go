package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

var (
	// ErrQueueEmpty is returned by Pop when no action is queued.
	ErrQueueEmpty = errors.New("deferred write queue is empty")

	// ErrInvalidAction is returned for an action that cannot be replayed.
	ErrInvalidAction = errors.New("invalid deferred action")
)

// Action is a write request deferred until the network is reachable.
type Action struct {
	Method   string      `json:"method"`
	URL      string      `json:"url"`
	Header   http.Header `json:"header,omitempty"`
	Body     []byte      `json:"body,omitempty"`
	QueuedAt time.Time   `json:"queued_at"`
}

// NewAction captures req, consuming its body.
func NewAction(req *http.Request) (Action, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return Action{}, fmt.Errorf("read request body: %w", err)
		}
	}
	a := Action{
		Method:   req.Method,
		URL:      req.URL.String(),
		Header:   req.Header.Clone(),
		Body:     body,
		QueuedAt: time.Now(),
	}
	return a, a.Validate()
}

// Validate checks that the action is a write with an absolute URL.
func (a Action) Validate() error {
	switch a.Method {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions:
		return fmt.Errorf("%w: method %q is not a write", ErrInvalidAction, a.Method)
	}
	u, err := url.Parse(a.URL)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("%w: url %q is not absolute", ErrInvalidAction, a.URL)
	}
	return nil
}

// Request rebuilds the HTTP request for replay.
func (a Action) Request(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, a.Method, a.URL, bytes.NewReader(a.Body))
	if err != nil {
		return nil, fmt.Errorf("build replay request: %w", err)
	}
	if a.Header != nil {
		req.Header = a.Header.Clone()
	}
	return req, nil
}

// Queue holds deferred actions in FIFO order.
type Queue interface {
	// Push appends an action.
	Push(ctx context.Context, action Action) error

	// PushFront puts an action back at the head.
	PushFront(ctx context.Context, action Action) error

	// Pop removes and returns the head, or ErrQueueEmpty.
	Pop(ctx context.Context) (Action, error)

	// Len returns the number of queued actions.
	Len(ctx context.Context) (int, error)
}

// MemoryQueue is an in-process Queue.
type MemoryQueue struct {
	mu      sync.Mutex
	actions []Action
}

// NewMemoryQueue creates an empty in-process queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Push(_ context.Context, action Action) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.actions = append(q.actions, action)
	return nil
}

func (q *MemoryQueue) PushFront(_ context.Context, action Action) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.actions = append([]Action{action}, q.actions...)
	return nil
}

func (q *MemoryQueue) Pop(_ context.Context) (Action, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.actions) == 0 {
		return Action{}, ErrQueueEmpty
	}
	head := q.actions[0]
	q.actions = q.actions[1:]
	return head, nil
}

func (q *MemoryQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.actions), nil
}
