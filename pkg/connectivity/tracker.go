package connectivity

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for connectivity tracking.
var (
	connectivityOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "offline_connectivity_online",
		Help: "1 when the network is considered reachable, 0 otherwise",
	})

	connectivityRestoresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offline_connectivity_restores_total",
		Help: "Total number of offline to online transitions",
	})

	connectivityFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offline_connectivity_failures_total",
		Help: "Total number of observed network failures",
	})
)

// recordTimeout bounds one recorder write.
const recordTimeout = 2 * time.Second

// Config holds tracker options.
type Config struct {
	// Threshold of consecutive failures before going offline (default: DefaultThreshold)
	Threshold int

	// Recorder, if set, receives every state transition
	Recorder Recorder
}

// Tracker is an http.RoundTripper that observes round-trip outcomes of the
// transport it wraps.
type Tracker struct {
	next      http.RoundTripper
	threshold int
	recorder  Recorder
	logger    zerolog.Logger

	mu        sync.Mutex
	state     State
	callbacks []func(ctx context.Context)
	wg        sync.WaitGroup
}

// NewTracker wraps next (default: http.DefaultTransport). The network is
// assumed reachable until proven otherwise.
func NewTracker(next http.RoundTripper, cfg Config, logger zerolog.Logger) *Tracker {
	if next == nil {
		next = http.DefaultTransport
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	connectivityOnline.Set(1)
	return &Tracker{
		next:      next,
		threshold: cfg.Threshold,
		recorder:  cfg.Recorder,
		logger:    logger,
		state: State{
			Online:     true,
			LastChange: time.Now(),
		},
	}
}

// OnRestore registers fn to run in the background each time connectivity is
// restored.
func (t *Tracker) OnRestore(fn func(ctx context.Context)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.callbacks = append(t.callbacks, fn)
}

// State returns a snapshot of the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// RoundTrip implements http.RoundTripper.
func (t *Tracker) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	t.observe(req.Context(), err)
	return resp, err
}

// observe updates the state from one round-trip outcome. A cancelled request
// says nothing about the network and is ignored.
func (t *Tracker) observe(ctx context.Context, err error) {
	if err != nil && errors.Is(err, context.Canceled) {
		return
	}

	t.mu.Lock()
	var (
		changed   bool
		restored  bool
		callbacks []func(ctx context.Context)
	)
	if err != nil {
		connectivityFailuresTotal.Inc()
		t.state.ConsecutiveFailures++
		if t.state.Online && t.state.ConsecutiveFailures >= t.threshold {
			t.state.Online = false
			t.state.LastChange = time.Now()
			changed = true
		}
	} else {
		t.state.ConsecutiveFailures = 0
		if !t.state.Online {
			t.state.Online = true
			t.state.LastChange = time.Now()
			t.state.Restores++
			changed, restored = true, true
			callbacks = append(callbacks, t.callbacks...)
		}
	}
	state := t.state
	t.mu.Unlock()

	if !changed {
		return
	}

	if state.Online {
		connectivityOnline.Set(1)
		connectivityRestoresTotal.Inc()
		t.logger.Info().
			Int("restores", state.Restores).
			Msg("Connectivity restored")
	} else {
		connectivityOnline.Set(0)
		t.logger.Warn().
			Err(err).
			Int("consecutive_failures", state.ConsecutiveFailures).
			Msg("Network unreachable, serving offline")
	}

	t.record(ctx, state)

	if restored {
		for _, fn := range callbacks {
			t.wg.Add(1)
			go func() {
				defer t.wg.Done()
				fn(context.WithoutCancel(ctx))
			}()
		}
	}
}

func (t *Tracker) record(ctx context.Context, state State) {
	if t.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := t.recorder.Record(ctx, state); err != nil {
		t.logger.Warn().Err(err).Msg("Failed to record connectivity state")
	}
}

// Wait blocks until running restore callbacks have returned or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
