// Package lifecycle owns the generation lifecycle of the offline layer and
// its interception point.
//
// A Controller seeds one version's generation pair (install), retires every
// other generation (activate), and then serves intercepted requests through
// the strategy bound to each resource class. The Registry is the single owner
// of the controller that currently intercepts requests.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/DoctorThink/ourcreativity-sub001/pkg/cache"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/classify"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/network"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/strategy"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInstallFailed is returned when a manifest entry could not be seeded.
	ErrInstallFailed = errors.New("install failed")

	// ErrInvalidConfig is returned for a controller configuration that cannot serve.
	ErrInvalidConfig = errors.New("invalid lifecycle config")
)

// DefaultSeedConcurrency bounds parallel manifest fetches during install.
const DefaultSeedConcurrency = 4

// Binding ties a resource class to a generation purpose and a strategy.
type Binding struct {
	Purpose  cache.Purpose
	Strategy strategy.Name
}

// Bindings maps every resource class to its binding.
type Bindings map[classify.Class]Binding

// DefaultBindings returns the standard class bindings. Navigational
// documents share the static-assets generation.
func DefaultBindings() Bindings {
	return Bindings{
		classify.ClassStaticAsset: {Purpose: cache.PurposeStaticAssets, Strategy: strategy.CacheFirst},
		classify.ClassAPIData:     {Purpose: cache.PurposeAPIData, Strategy: strategy.NetworkFirst},
		classify.ClassDocument:    {Purpose: cache.PurposeStaticAssets, Strategy: strategy.StaleWhileRevalidate},
	}
}

// Config describes one deployed version.
type Config struct {
	// Version is N in the generation names {purpose}-vN.
	Version int

	// Origin is the base URL manifest paths are resolved against.
	Origin *url.URL

	// Manifest lists the absolute paths seeded during install.
	Manifest []string

	// Classifier routes requests (default: classify.NewDefault(classify.DefaultOptions())).
	Classifier *classify.Classifier

	// Bindings binds classes to generations and strategies (default: DefaultBindings()).
	Bindings Bindings

	// SkipWaiting activates right after install even when another controller is active.
	SkipWaiting bool

	// SeedConcurrency bounds parallel manifest fetches (default: DefaultSeedConcurrency).
	SeedConcurrency int
}

func (cfg *Config) normalize() error {
	if cfg.Version < 1 {
		return fmt.Errorf("%w: version must be >= 1, got %d", ErrInvalidConfig, cfg.Version)
	}
	if cfg.Origin == nil || !cfg.Origin.IsAbs() {
		return fmt.Errorf("%w: origin must be an absolute URL", ErrInvalidConfig)
	}
	for _, p := range cfg.Manifest {
		if len(p) == 0 || p[0] != '/' {
			return fmt.Errorf("%w: manifest path %q is not absolute", ErrInvalidConfig, p)
		}
	}
	if cfg.Classifier == nil {
		cfg.Classifier = classify.NewDefault(classify.DefaultOptions())
	}
	if cfg.Bindings == nil {
		cfg.Bindings = DefaultBindings()
	}
	for _, class := range []classify.Class{classify.ClassStaticAsset, classify.ClassAPIData, classify.ClassDocument} {
		b, ok := cfg.Bindings[class]
		if !ok {
			return fmt.Errorf("%w: no binding for class %s", ErrInvalidConfig, class)
		}
		if !b.Strategy.Valid() {
			return fmt.Errorf("%w: class %s bound to unknown strategy %q", ErrInvalidConfig, class, b.Strategy)
		}
		if b.Purpose != cache.PurposeStaticAssets && b.Purpose != cache.PurposeAPIData {
			return fmt.Errorf("%w: class %s bound to unknown purpose %q", ErrInvalidConfig, class, b.Purpose)
		}
	}
	if cfg.SeedConcurrency <= 0 {
		cfg.SeedConcurrency = DefaultSeedConcurrency
	}
	return nil
}

// Controller drives one version through install and activate and serves
// requests once active.
type Controller struct {
	cfg      Config
	store    cache.Store
	client   *network.Client
	executor *strategy.Executor
	logger   zerolog.Logger

	mu    sync.Mutex
	state State

	// writeMu is held shared by every write-back and exclusively by
	// markRedundant, so no write lands after the controller is retired.
	writeMu sync.RWMutex
	retired bool
}

// NewController creates a controller in state new.
func NewController(cfg Config, store cache.Store, client *network.Client, executor *strategy.Executor, logger zerolog.Logger) (*Controller, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &Controller{
		cfg:      cfg,
		store:    store,
		client:   client,
		executor: executor,
		logger:   logger.With().Int("version", cfg.Version).Logger(),
		state:    StateNew,
	}, nil
}

// Version returns the controller's generation version.
func (c *Controller) Version() int {
	return c.cfg.Version
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// GenerationName returns the controller's generation for a purpose.
func (c *Controller) GenerationName(purpose cache.Purpose) string {
	return cache.GenerationName(purpose, c.cfg.Version)
}

// Generations returns the controller's current generation names.
func (c *Controller) Generations() []string {
	names := make([]string, 0, len(cache.Purposes()))
	for _, p := range cache.Purposes() {
		names = append(names, c.GenerationName(p))
	}
	return names
}

func (c *Controller) transition(to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := checkTransition(c.state, to); err != nil {
		return err
	}
	c.logger.Info().
		Str("from", string(c.state)).
		Str("to", string(to)).
		Msg("Lifecycle transition")
	c.state = to
	transitionsTotal.WithLabelValues(string(to)).Inc()
	return nil
}

// markRedundant retires the controller. It waits for in-flight write-backs
// and refuses later ones. It is a no-op on a redundant controller.
func (c *Controller) markRedundant() {
	c.writeMu.Lock()
	c.retired = true
	c.writeMu.Unlock()

	if c.State() == StateRedundant {
		return
	}
	_ = c.transition(StateRedundant)
}

// Install seeds the static generation with every manifest entry and opens
// the api-data generation. Nothing is written unless every manifest fetch
// returned a successful response.
func (c *Controller) Install(ctx context.Context) error {
	if err := c.transition(StateInstalling); err != nil {
		return err
	}
	startTime := time.Now()

	if err := c.install(ctx); err != nil {
		installDuration.WithLabelValues("failed").Observe(time.Since(startTime).Seconds())
		c.logger.Error().Err(err).Msg("Install failed")
		c.markRedundant()
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}

	installDuration.WithLabelValues("ok").Observe(time.Since(startTime).Seconds())
	return c.transition(StateInstalled)
}

type seeded struct {
	key   cache.Key
	entry *cache.Entry
}

func (c *Controller) install(ctx context.Context) error {
	requests := make([]*http.Request, len(c.cfg.Manifest))
	for i, p := range c.cfg.Manifest {
		ref, err := url.Parse(p)
		if err != nil {
			return fmt.Errorf("parse manifest path %q: %w", p, err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Origin.ResolveReference(ref).String(), nil)
		if err != nil {
			return fmt.Errorf("build request for %q: %w", p, err)
		}
		requests[i] = req
	}

	results := make([]seeded, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.SeedConcurrency)
	for i, req := range requests {
		g.Go(func() error {
			entry, err := c.client.FetchWithRetry(gctx, req)
			if err != nil {
				return fmt.Errorf("seed %s: %w", req.URL.Path, err)
			}
			if !entry.OK() {
				return fmt.Errorf("seed %s: unexpected status %d", req.URL.Path, entry.StatusCode)
			}
			results[i] = seeded{key: cache.KeyFor(req), entry: entry}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	staticName := c.GenerationName(cache.PurposeStaticAssets)
	names, err := c.store.Names(ctx)
	if err != nil {
		return fmt.Errorf("list generations: %w", err)
	}
	existed := slices.Contains(names, staticName)

	for _, r := range results {
		if err := c.store.Put(ctx, staticName, r.key, r.entry); err != nil {
			if !existed {
				if _, delErr := c.store.Delete(context.WithoutCancel(ctx), staticName); delErr != nil {
					c.logger.Warn().Err(delErr).Str("generation", staticName).Msg("Failed to remove partial generation")
				}
			}
			return fmt.Errorf("write %s: %w", r.key, err)
		}
	}
	installedEntries.Add(float64(len(results)))

	if err := c.store.Open(ctx, c.GenerationName(cache.PurposeAPIData)); err != nil {
		return fmt.Errorf("open api generation: %w", err)
	}

	c.logger.Info().
		Str("generation", staticName).
		Int("entries", len(results)).
		Msg("Install seeded static generation")
	return nil
}

// Activate deletes every generation that is not one of the controller's
// current names and marks the controller activated.
func (c *Controller) Activate(ctx context.Context) error {
	return c.activate(ctx, nil)
}

// activate runs beforeDelete, when set, once the stale generations are known
// and before any of them is deleted.
func (c *Controller) activate(ctx context.Context, beforeDelete func()) error {
	if err := c.transition(StateActivating); err != nil {
		return err
	}

	names, err := c.store.Names(ctx)
	if err != nil {
		c.markRedundant()
		return fmt.Errorf("activate: list generations: %w", err)
	}
	if beforeDelete != nil {
		beforeDelete()
	}

	current := c.Generations()
	for _, name := range names {
		if slices.Contains(current, name) {
			continue
		}
		if _, err := c.store.Delete(ctx, name); err != nil {
			c.logger.Warn().Err(err).Str("generation", name).Msg("Failed to delete stale generation")
			continue
		}
		c.logger.Info().Str("generation", name).Msg("Deleted stale generation")
	}

	return c.transition(StateActivated)
}

// adopt activates the controller over generations that already exist.
func (c *Controller) adopt(ctx context.Context) error {
	for _, to := range []State{StateInstalling, StateInstalled, StateActivating} {
		if err := c.transition(to); err != nil {
			return err
		}
	}
	if err := c.store.Open(ctx, c.GenerationName(cache.PurposeAPIData)); err != nil {
		c.markRedundant()
		return fmt.Errorf("restore: open api generation: %w", err)
	}
	return c.transition(StateActivated)
}

// RoundTrip is the interception point. Writes go straight to the network;
// reads are classified and served by their bound strategy. A read never
// fails: a strategy error becomes a synthetic service-unavailable response.
func (c *Controller) RoundTrip(req *http.Request) (*http.Response, error) {
	if m := req.Method; m != "" && m != http.MethodGet {
		interceptedTotal.WithLabelValues("passthrough").Inc()
		return c.client.Transport().RoundTrip(req)
	}

	class, rule := c.cfg.Classifier.ClassifyNamed(req)
	interceptedTotal.WithLabelValues(string(class)).Inc()
	binding := c.cfg.Bindings[class]
	generation := c.GenerationName(binding.Purpose)

	c.logger.Debug().
		Str("url", req.URL.String()).
		Str("class", string(class)).
		Str("rule", rule).
		Str("strategy", string(binding.Strategy)).
		Str("generation", generation).
		Msg("Intercepted request")

	entry, err := c.executor.ExecuteGuarded(req.Context(), binding.Strategy, req, generation, c.guardWrite)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("url", req.URL.String()).
			Str("strategy", string(binding.Strategy)).
			Msg("Strategy failed, serving unavailable response")
		return strategy.Unavailable(req), nil
	}
	return entry.Response(req), nil
}

// guardWrite runs write unless the controller has been retired.
func (c *Controller) guardWrite(write func() error) error {
	c.writeMu.RLock()
	defer c.writeMu.RUnlock()
	if c.retired {
		return strategy.ErrGenerationRetired
	}
	return write()
}
