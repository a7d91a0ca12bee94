package connectivity

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DoctorThink/ourcreativity-sub001/internal/testutil"
	"github.com/rs/zerolog"
)

type memoryRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *memoryRecorder) Record(_ context.Context, state State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	return nil
}

func (r *memoryRecorder) recorded() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func roundTrip(t *testing.T, rt http.RoundTripper, url string) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	resp, err := rt.RoundTrip(req)
	if err == nil {
		resp.Body.Close()
	}
}

func TestTracker_Transitions(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.SetResponse("/", testutil.NewOKResponse("ok", "text/plain"))

	transport := testutil.NewSwitchTransport(http.DefaultTransport)
	recorder := &memoryRecorder{}
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	tracker := NewTracker(transport, Config{Threshold: 2, Recorder: recorder}, logger)

	var restores atomic.Int32
	tracker.OnRestore(func(context.Context) { restores.Add(1) })

	if !tracker.State().Online {
		t.Fatal("tracker should start online")
	}

	transport.SetOffline(true)
	roundTrip(t, tracker, origin.URL()+"/")
	if state := tracker.State(); !state.Online || state.ConsecutiveFailures != 1 {
		t.Errorf("after one failure state = %+v, want online with 1 failure", state)
	}

	roundTrip(t, tracker, origin.URL()+"/")
	if tracker.State().Online {
		t.Error("tracker should be offline after reaching the threshold")
	}

	roundTrip(t, tracker, origin.URL()+"/")
	if restores.Load() != 0 {
		t.Error("no restore callback while offline")
	}

	transport.SetOffline(false)
	roundTrip(t, tracker, origin.URL()+"/")
	if err := tracker.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	state := tracker.State()
	if !state.Online || state.ConsecutiveFailures != 0 || state.Restores != 1 {
		t.Errorf("after recovery state = %+v", state)
	}
	if restores.Load() != 1 {
		t.Errorf("restore callbacks = %d, want 1", restores.Load())
	}

	recorded := recorder.recorded()
	if len(recorded) != 2 || recorded[0].Online || !recorded[1].Online {
		t.Errorf("recorded transitions = %+v, want offline then online", recorded)
	}

	roundTrip(t, tracker, origin.URL()+"/")
	if restores.Load() != 1 {
		t.Error("success while online should not fire restore")
	}
}

func TestTracker_HTTPErrorsCountAsOnline(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.SetResponse("/broken", testutil.NewServerErrorResponse())

	tracker := NewTracker(nil, Config{Threshold: 1}, zerolog.New(os.Stderr).Level(zerolog.Disabled))
	roundTrip(t, tracker, origin.URL()+"/broken")

	if state := tracker.State(); !state.Online || state.ConsecutiveFailures != 0 {
		t.Errorf("state = %+v, want online", state)
	}
}

type cancelledTransport struct{}

func (cancelledTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, context.Canceled
}

func TestTracker_IgnoresCancellation(t *testing.T) {
	tracker := NewTracker(cancelledTransport{}, Config{Threshold: 1}, zerolog.New(os.Stderr).Level(zerolog.Disabled))

	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/", nil)
	if _, err := tracker.RoundTrip(req); !errors.Is(err, context.Canceled) {
		t.Fatalf("RoundTrip() error = %v", err)
	}
	if !tracker.State().Online {
		t.Error("cancelled requests should not flip connectivity")
	}
}

func TestTracker_DefaultThreshold(t *testing.T) {
	transport := &testutil.OfflineTransport{}
	tracker := NewTracker(transport, Config{}, zerolog.New(os.Stderr).Level(zerolog.Disabled))

	for i := 0; i < DefaultThreshold-1; i++ {
		roundTrip(t, tracker, "http://example.invalid/")
	}
	if !tracker.State().Online {
		t.Fatal("should still be online below the default threshold")
	}
	roundTrip(t, tracker, "http://example.invalid/")
	if tracker.State().Online {
		t.Error("should be offline at the default threshold")
	}
}

func TestState_Since(t *testing.T) {
	s := State{LastChange: time.Now().Add(-time.Minute)}
	if s.Since() < time.Minute {
		t.Errorf("Since() = %v, want >= 1m", s.Since())
	}
}
