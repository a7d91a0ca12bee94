package lifecycle

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/DoctorThink/ourcreativity-sub001/internal/testutil"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/cache"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/network"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/strategy"
	"github.com/rs/zerolog"
)

var testManifest = []string{"/", "/app.js", "/logo.png"}

type rig struct {
	origin    *testutil.MockOrigin
	transport *testutil.SwitchTransport
	store     cache.Store
	client    *network.Client
	executor  *strategy.Executor
	registry  *Registry
}

func newRig(t *testing.T, store cache.Store) *rig {
	t.Helper()
	origin := testutil.NewMockOrigin()
	t.Cleanup(origin.Close)
	origin.SetResponse("/", testutil.NewOKResponse("<html>shell</html>", "text/html"))
	origin.SetResponse("/app.js", testutil.NewOKResponse("bundle", "application/javascript"))
	origin.SetResponse("/logo.png", testutil.NewOKResponse("png", "image/png"))

	if store == nil {
		store = cache.NewMemoryStore()
	}
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	transport := testutil.NewSwitchTransport(http.DefaultTransport)
	client := network.New(network.Config{
		Transport: transport,
		Retry:     network.RetryConfig{MaxAttempts: 1},
	}, logger)
	executor := strategy.NewExecutor(store, client, strategy.Config{}, logger)

	return &rig{
		origin:    origin,
		transport: transport,
		store:     store,
		client:    client,
		executor:  executor,
		registry:  NewRegistry(store, client, executor, logger),
	}
}

func (r *rig) config(t *testing.T, version int) Config {
	t.Helper()
	origin, err := url.Parse(r.origin.URL())
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	return Config{
		Version:  version,
		Origin:   origin,
		Manifest: testManifest,
	}
}

func (r *rig) controller(t *testing.T, cfg Config) *Controller {
	t.Helper()
	c, err := NewController(cfg, r.store, r.client, r.executor, zerolog.New(os.Stderr).Level(zerolog.Disabled))
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	return c
}

func (r *rig) get(t *testing.T, rt http.RoundTripper, path string) (*http.Response, string) {
	t.Helper()
	return r.do(t, rt, http.MethodGet, path)
}

func (r *rig) do(t *testing.T, rt http.RoundTripper, method, path string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, r.origin.URL()+path, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip(%s %s) error = %v", method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return resp, string(body)
}

func (r *rig) names(t *testing.T) []string {
	t.Helper()
	names, err := r.store.Names(context.Background())
	if err != nil {
		t.Fatalf("Names() error = %v", err)
	}
	return names
}

func (r *rig) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.registry.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

var errPutFailed = errors.New("disk full")

// failingPutStore fails every Put after the first okPuts.
type failingPutStore struct {
	*cache.MemoryStore
	okPuts int
	puts   int
}

func (s *failingPutStore) Put(ctx context.Context, name string, key cache.Key, entry *cache.Entry) error {
	s.puts++
	if s.puts > s.okPuts {
		return errPutFailed
	}
	return s.MemoryStore.Put(ctx, name, key, entry)
}
