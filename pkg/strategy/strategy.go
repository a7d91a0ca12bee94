// Package strategy implements the three request-serving algorithms of the
// offline layer: cache-first, network-first and stale-while-revalidate.
//
// A strategy takes a request and the name of the generation it is bound to and
// produces a response snapshot. Only network failures change the path a
// strategy takes; an HTTP error status is a valid response that is returned to
// the caller but never written into a generation.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DoctorThink/ourcreativity-sub001/pkg/cache"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/network"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Name identifies a serving strategy.
type Name string

const (
	CacheFirst           Name = "cache-first"
	NetworkFirst         Name = "network-first"
	StaleWhileRevalidate Name = "stale-while-revalidate"
)

var (
	// ErrUnknownStrategy is returned by Execute for an unrecognised strategy name.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrGenerationRetired is returned by a Guard that refuses a write-back.
	ErrGenerationRetired = errors.New("generation retired")
)

// Guard runs write, a single write-back into the target generation, or
// refuses it with ErrGenerationRetired once that generation may have been
// deleted. A write already running when the generation is retired is waited
// for by whoever retires it.
type Guard func(write func() error) error

// Valid reports whether n names one of the implemented strategies.
func (n Name) Valid() bool {
	switch n {
	case CacheFirst, NetworkFirst, StaleWhileRevalidate:
		return true
	}
	return false
}

// Config holds executor options.
type Config struct {
	// SingleFlight collapses concurrent network fetches for the same key
	// into one round trip. Off by default: concurrent misses each fetch and
	// the last write wins.
	SingleFlight bool
}

// Executor runs strategies against a cache store and the network.
type Executor struct {
	store      cache.Store
	client     *network.Client
	background *Background
	group      *singleflight.Group
	logger     zerolog.Logger
}

// NewExecutor creates a strategy executor.
func NewExecutor(store cache.Store, client *network.Client, cfg Config, logger zerolog.Logger) *Executor {
	if store == nil {
		panic("strategy: store cannot be nil")
	}
	if client == nil {
		panic("strategy: network client cannot be nil")
	}

	e := &Executor{
		store:      store,
		client:     client,
		background: NewBackground(logger),
		logger:     logger,
	}
	if cfg.SingleFlight {
		e.group = &singleflight.Group{}
	}
	return e
}

// Background returns the runner that owns the executor's detached write-backs.
func (e *Executor) Background() *Background {
	return e.background
}

// Execute serves req with the named strategy from the given generation.
func (e *Executor) Execute(ctx context.Context, name Name, req *http.Request, generation string) (*cache.Entry, error) {
	return e.ExecuteGuarded(ctx, name, req, generation, nil)
}

// ExecuteGuarded is Execute with every write-back gated by guard. A nil
// guard allows all writes.
func (e *Executor) ExecuteGuarded(ctx context.Context, name Name, req *http.Request, generation string, guard Guard) (*cache.Entry, error) {
	startTime := time.Now()
	defer func() {
		strategyDuration.WithLabelValues(string(name)).Observe(time.Since(startTime).Seconds())
	}()

	switch name {
	case CacheFirst:
		return e.cacheFirst(ctx, req, generation, guard), nil
	case NetworkFirst:
		return e.networkFirst(ctx, req, generation, guard)
	case StaleWhileRevalidate:
		return e.staleWhileRevalidate(ctx, req, generation, guard)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

func (e *Executor) cacheFirst(ctx context.Context, req *http.Request, generation string, guard Guard) *cache.Entry {
	key := cache.KeyFor(req)

	if cached, ok := e.lookup(ctx, generation, key); ok {
		e.record(CacheFirst, outcomeHit, key)
		return cached
	}

	entry, err := e.fetch(ctx, req, key)
	if err != nil {
		e.record(CacheFirst, outcomeUnavailable, key)
		return UnavailableEntry()
	}

	e.writeBack(ctx, guard, generation, key, entry)
	e.record(CacheFirst, outcomeMiss, key)
	return entry
}

func (e *Executor) networkFirst(ctx context.Context, req *http.Request, generation string, guard Guard) (*cache.Entry, error) {
	key := cache.KeyFor(req)

	entry, err := e.fetch(ctx, req, key)
	if err == nil {
		e.writeBack(ctx, guard, generation, key, entry)
		e.record(NetworkFirst, outcomeNetwork, key)
		return entry, nil
	}

	if cached, ok := e.lookup(ctx, generation, key); ok {
		e.record(NetworkFirst, outcomeFallback, key)
		return cached, nil
	}

	e.record(NetworkFirst, outcomeError, key)
	return nil, err
}

type fetchResult struct {
	entry *cache.Entry
	err   error
}

func (e *Executor) staleWhileRevalidate(ctx context.Context, req *http.Request, generation string, guard Guard) (*cache.Entry, error) {
	key := cache.KeyFor(req)
	cached, hit := e.lookup(ctx, generation, key)

	result := make(chan fetchResult, 1)
	e.background.Go(ctx, "revalidate", func(ctx context.Context) error {
		entry, err := e.fetch(ctx, req, key)
		result <- fetchResult{entry: entry, err: err}
		if err != nil {
			return err
		}
		if !entry.OK() {
			return nil
		}
		err = e.put(ctx, guard, generation, key, entry)
		if errors.Is(err, ErrGenerationRetired) {
			e.logger.Debug().Str("generation", generation).Str("key", key.String()).Msg("Skipped refresh of retired generation")
			return nil
		}
		return err
	})

	if hit {
		e.record(StaleWhileRevalidate, outcomeHit, key)
		return cached, nil
	}

	select {
	case r := <-result:
		if r.err != nil {
			e.record(StaleWhileRevalidate, outcomeError, key)
			return nil, r.err
		}
		e.record(StaleWhileRevalidate, outcomeMiss, key)
		return r.entry, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// lookup treats every store failure as a miss.
func (e *Executor) lookup(ctx context.Context, generation string, key cache.Key) (*cache.Entry, bool) {
	entry, err := e.store.Match(ctx, generation, key)
	if err == nil {
		return entry, true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		e.logger.Warn().
			Err(err).
			Str("generation", generation).
			Str("key", key.String()).
			Msg("Cache lookup failed, treating as miss")
	}
	return nil, false
}

// fetch runs to completion even when the caller goes away, so the result
// can still warm the cache.
func (e *Executor) fetch(ctx context.Context, req *http.Request, key cache.Key) (*cache.Entry, error) {
	ctx = context.WithoutCancel(ctx)
	if e.group == nil {
		return e.client.Fetch(ctx, req)
	}

	v, err, shared := e.group.Do(key.String(), func() (interface{}, error) {
		return e.client.Fetch(ctx, req)
	})
	if shared {
		e.logger.Debug().Str("key", key.String()).Msg("Shared in-flight fetch")
	}
	if err != nil {
		return nil, err
	}
	return v.(*cache.Entry), nil
}

// put writes entry through guard.
func (e *Executor) put(ctx context.Context, guard Guard, generation string, key cache.Key, entry *cache.Entry) error {
	write := func() error {
		return e.store.Put(ctx, generation, key, entry)
	}
	if guard == nil {
		return write()
	}
	return guard(write)
}

// writeBack stores successful responses only. Failures never reach the caller.
func (e *Executor) writeBack(ctx context.Context, guard Guard, generation string, key cache.Key, entry *cache.Entry) {
	if !entry.OK() {
		return
	}
	err := e.put(context.WithoutCancel(ctx), guard, generation, key, entry)
	if errors.Is(err, ErrGenerationRetired) {
		e.logger.Debug().Str("generation", generation).Str("key", key.String()).Msg("Skipped write-back to retired generation")
		return
	}
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("generation", generation).
			Str("key", key.String()).
			Msg("Cache write-back failed")
	}
}

func (e *Executor) record(name Name, outcome string, key cache.Key) {
	strategyRequests.WithLabelValues(string(name), outcome).Inc()
	e.logger.Debug().
		Str("strategy", string(name)).
		Str("outcome", outcome).
		Str("key", key.String()).
		Msg("Served request")
}
