package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/DoctorThink/ourcreativity-sub001/pkg/cache"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/network"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/strategy"
	"github.com/rs/zerolog"
)

var (
	// ErrNoWaiting is returned by ActivateWaiting when no controller is waiting.
	ErrNoWaiting = errors.New("no waiting controller")

	// ErrNothingToRestore is returned by Restore when the store holds no
	// static generation for the requested version.
	ErrNothingToRestore = errors.New("no stored generation to restore")
)

// Registry owns the active controller. Register, ActivateWaiting and Restore
// are serialized; request routing only reads the active pointer.
type Registry struct {
	store    cache.Store
	client   *network.Client
	executor *strategy.Executor
	logger   zerolog.Logger

	mu      sync.Mutex
	waiting *Controller
	active  atomic.Pointer[Controller]
}

// NewRegistry creates a registry with no active controller.
func NewRegistry(store cache.Store, client *network.Client, executor *strategy.Executor, logger zerolog.Logger) *Registry {
	return &Registry{
		store:    store,
		client:   client,
		executor: executor,
		logger:   logger,
	}
}

// Register installs a controller for cfg. It is activated and claimed
// immediately when cfg.SkipWaiting is set or nothing is active yet;
// otherwise it waits for ActivateWaiting. On install failure the returned
// controller is redundant and the active controller keeps serving.
func (r *Registry) Register(ctx context.Context, cfg Config) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := NewController(cfg, r.store, r.client, r.executor, r.logger)
	if err != nil {
		return nil, err
	}
	if err := c.Install(ctx); err != nil {
		return c, err
	}

	if r.waiting != nil {
		r.waiting.markRedundant()
		r.waiting = nil
	}

	if cfg.SkipWaiting || r.active.Load() == nil {
		if err := r.activateLocked(ctx, c); err != nil {
			return c, err
		}
		return c, nil
	}

	r.waiting = c
	r.logger.Info().Int("version", c.Version()).Msg("Controller installed and waiting")
	return c, nil
}

// ActivateWaiting activates and claims the waiting controller.
func (r *Registry) ActivateWaiting(ctx context.Context) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.waiting
	if c == nil {
		return nil, ErrNoWaiting
	}
	r.waiting = nil
	if err := r.activateLocked(ctx, c); err != nil {
		return c, err
	}
	return c, nil
}

// Restore adopts the stored generations of cfg.Version without seeding or
// deleting anything, then claims them.
func (r *Registry) Restore(ctx context.Context, cfg Config) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := NewController(cfg, r.store, r.client, r.executor, r.logger)
	if err != nil {
		return nil, err
	}

	names, err := r.store.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore: list generations: %w", err)
	}
	if !slices.Contains(names, c.GenerationName(cache.PurposeStaticAssets)) {
		return nil, fmt.Errorf("%w: version %d", ErrNothingToRestore, cfg.Version)
	}

	if err := c.adopt(ctx); err != nil {
		return nil, err
	}
	r.claim(c)
	r.logger.Info().Int("version", c.Version()).Msg("Restored stored generations")
	return c, nil
}

// RestoreLatest restores the newest stored static generation, overriding
// cfg.Version.
func (r *Registry) RestoreLatest(ctx context.Context, cfg Config) (*Controller, error) {
	names, err := r.store.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore: list generations: %w", err)
	}
	version, ok := cache.LatestVersion(names, cache.PurposeStaticAssets)
	if !ok {
		return nil, ErrNothingToRestore
	}
	cfg.Version = version
	return r.Restore(ctx, cfg)
}

// activateLocked retires the previous controller before c deletes its
// generations, so none of its in-flight requests can write them back.
func (r *Registry) activateLocked(ctx context.Context, c *Controller) error {
	retirePrevious := func() {
		if previous := r.active.Load(); previous != nil && previous != c {
			previous.markRedundant()
		}
	}
	if err := c.activate(ctx, retirePrevious); err != nil {
		return err
	}
	r.claim(c)
	return nil
}

// claim makes c serve every subsequent request.
func (r *Registry) claim(c *Controller) {
	previous := r.active.Swap(c)
	if previous != nil && previous != c {
		previous.markRedundant()
	}
	activeVersion.Set(float64(c.Version()))
	r.logger.Info().Int("version", c.Version()).Msg("Controller claimed clients")
}

// Active returns the controller currently serving requests, or nil.
func (r *Registry) Active() *Controller {
	return r.active.Load()
}

// Waiting returns the installed controller awaiting activation, or nil.
func (r *Registry) Waiting() *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waiting
}

// RoundTrip routes req to the active controller. Without one every request
// goes straight to the network.
func (r *Registry) RoundTrip(req *http.Request) (*http.Response, error) {
	if c := r.active.Load(); c != nil {
		return c.RoundTrip(req)
	}
	return r.client.Transport().RoundTrip(req)
}

// Wait drains background write-backs started by served requests.
func (r *Registry) Wait(ctx context.Context) error {
	return r.executor.Background().Wait(ctx)
}

// ControllerStatus describes one controller.
type ControllerStatus struct {
	Version     int      `json:"version"`
	State       State    `json:"state"`
	Generations []string `json:"generations"`
}

// Status is a snapshot of the registry and the store.
type Status struct {
	Active      *ControllerStatus `json:"active"`
	Waiting     *ControllerStatus `json:"waiting"`
	Generations []string          `json:"generations"`
}

// Status reports the active and waiting controllers and every stored generation.
func (r *Registry) Status(ctx context.Context) (Status, error) {
	names, err := r.store.Names(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("status: list generations: %w", err)
	}
	return Status{
		Active:      describe(r.Active()),
		Waiting:     describe(r.Waiting()),
		Generations: names,
	}, nil
}

func describe(c *Controller) *ControllerStatus {
	if c == nil {
		return nil
	}
	return &ControllerStatus{
		Version:     c.Version(),
		State:       c.State(),
		Generations: c.Generations(),
	}
}
