package hooks

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

type recordingDisplayer struct {
	shown []*Notification
	err   error
}

func (d *recordingDisplayer) Display(_ context.Context, n *Notification) error {
	if d.err != nil {
		return d.err
	}
	d.shown = append(d.shown, n)
	return nil
}

func TestNotifier_Notify(t *testing.T) {
	displayer := &recordingDisplayer{}
	notifier := NewNotifier(DefaultNotifierConfig(), displayer)
	arrival := time.UnixMilli(1700000000000)
	notifier.now = func() time.Time { return arrival }

	n, err := notifier.Notify(context.Background(), []byte("New artwork posted"))
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if n.Title != "OurCreativity" {
		t.Errorf("Title = %q", n.Title)
	}
	if n.Body != "New artwork posted" {
		t.Errorf("Body = %q", n.Body)
	}
	if !slices.Equal(n.Vibrate, []int{100, 50, 100}) {
		t.Errorf("Vibrate = %v", n.Vibrate)
	}
	if n.Data.DateOfArrival != 1700000000000 || n.Data.PrimaryKey != "2" {
		t.Errorf("Data = %+v", n.Data)
	}
	if n.Icon == "" || n.Badge == "" {
		t.Error("Icon and Badge should be set")
	}
	if len(displayer.shown) != 1 {
		t.Errorf("displayed %d notifications, want 1", len(displayer.shown))
	}
}

func TestNotifier_EmptyPayload(t *testing.T) {
	displayer := &recordingDisplayer{}
	notifier := NewNotifier(DefaultNotifierConfig(), displayer)

	if _, err := notifier.Notify(context.Background(), nil); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("Notify(nil) error = %v, want ErrEmptyPayload", err)
	}
	if len(displayer.shown) != 0 {
		t.Error("empty payload should not be displayed")
	}
}

func TestNotifier_DisplayFailure(t *testing.T) {
	displayErr := errors.New("no subscribers")
	notifier := NewNotifier(DefaultNotifierConfig(), &recordingDisplayer{err: displayErr})

	if _, err := notifier.Notify(context.Background(), []byte("hi")); !errors.Is(err, displayErr) {
		t.Errorf("Notify() error = %v, want %v", err, displayErr)
	}
}

func TestLogDisplayer(t *testing.T) {
	if err := NewLogDisplayer(testLogger()).Display(context.Background(), &Notification{Title: "t"}); err != nil {
		t.Errorf("Display() error = %v", err)
	}
}
