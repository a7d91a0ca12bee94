package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/DoctorThink/ourcreativity-sub001/pkg/cache"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/classify"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/config"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/connectivity"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/hooks"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/lifecycle"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/logging"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/metrics"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/network"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/strategy"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxPushPayload bounds the body accepted by the push trigger.
const maxPushPayload = 64 << 10

// deps are the pluggable backends of the server.
type deps struct {
	store     cache.Store
	transport http.RoundTripper
	queue     hooks.Queue
	displayer hooks.Displayer
	recorder  connectivity.Recorder
}

type server struct {
	cfg      *config.Config
	store    cache.Store
	tracker  *connectivity.Tracker
	registry *lifecycle.Registry
	syncer   *hooks.Syncer
	notifier *hooks.Notifier
	logger   zerolog.Logger
}

func newServer(cfg *config.Config, d deps) *server {
	tracker := connectivity.NewTracker(d.transport, connectivity.Config{
		Threshold: cfg.OfflineThreshold,
		Recorder:  d.recorder,
	}, logging.NewLogger(logging.ComponentConnectivity))

	client := network.New(network.Config{
		Transport: tracker,
		Timeout:   cfg.NetworkTimeout,
		Retry:     network.DefaultRetryConfig(),
	}, logging.NewLogger(logging.ComponentNetwork))

	executor := strategy.NewExecutor(d.store, client, strategy.Config{
		SingleFlight: cfg.SingleFlight,
	}, logging.NewLogger(logging.ComponentStrategy))

	registry := lifecycle.NewRegistry(d.store, client, executor, logging.NewLogger(logging.ComponentLifecycle))

	// deferred writes bypass the cache but still go through the tracker
	syncer := hooks.NewSyncer(d.queue, client.Transport(), logging.NewLogger(logging.ComponentSync))

	notifier := hooks.NewNotifier(hooks.NotifierConfig{
		Title:      cfg.NotificationTitle,
		Icon:       cfg.NotificationIcon,
		Badge:      cfg.NotificationIcon,
		PrimaryKey: hooks.DefaultNotifierConfig().PrimaryKey,
	}, d.displayer)

	s := &server{
		cfg:      cfg,
		store:    d.store,
		tracker:  tracker,
		registry: registry,
		syncer:   syncer,
		notifier: notifier,
		logger:   logging.NewLogger(logging.ComponentServer),
	}

	tracker.OnRestore(func(ctx context.Context) {
		if _, err := syncer.HandleSync(ctx, hooks.SyncTag); err != nil {
			s.logger.Warn().Err(err).Msg("Sync after connectivity restore failed")
		}
	})
	return s
}

func (s *server) lifecycleConfig() lifecycle.Config {
	opts := classify.DefaultOptions()
	opts.APIPrefix = s.cfg.APIPrefix
	opts.DataServiceHost = s.cfg.DataServiceHost
	opts.AssetDirs = s.cfg.AssetDirs

	return lifecycle.Config{
		Version:         s.cfg.CacheVersion,
		Origin:          s.cfg.Origin(),
		Manifest:        s.cfg.PrecacheManifest,
		Classifier:      classify.NewDefault(opts),
		SkipWaiting:     s.cfg.SkipWaiting,
		SeedConcurrency: s.cfg.SeedConcurrency,
	}
}

// start installs the configured version. When that fails the newest stored
// generation is restored; without one every request passes through.
func (s *server) start(ctx context.Context) {
	lcfg := s.lifecycleConfig()

	c, err := s.registry.Register(ctx, lcfg)
	if err == nil {
		s.logger.Info().
			Int("version", c.Version()).
			Str("state", string(c.State())).
			Msg("Controller registered")
		return
	}
	s.logger.Warn().Err(err).Int("version", lcfg.Version).Msg("Install failed, restoring stored generations")

	c, err = s.registry.RestoreLatest(ctx, lcfg)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Nothing to restore, passing requests through")
		return
	}
	s.logger.Info().Int("version", c.Version()).Msg("Serving restored generations")
}

// drain waits for background write-backs and sync callbacks.
func (s *server) drain(ctx context.Context) error {
	return errors.Join(s.registry.Wait(ctx), s.tracker.Wait(ctx))
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/ready", s.readyHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/_offline", func(r chi.Router) {
		r.Get("/state", s.stateHandler)
		r.Post("/activate", s.activateHandler)
		r.Post("/sync/{tag}", s.syncHandler)
		r.Post("/queue", s.queueHandler)
		r.Post("/push", s.pushHandler)
	})

	r.Handle("/*", s.proxy())
	return r
}

func (s *server) proxy() *httputil.ReverseProxy {
	origin := s.cfg.Origin()
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(origin)
			pr.SetXForwarded()
		},
		Transport: s.registry,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.logger.Warn().
				Err(err).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("Pass-through request failed")
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, "network unavailable")
		},
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if p, ok := s.store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	if s.registry.Active() == nil {
		http.Error(w, "no active controller", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

type stateResponse struct {
	lifecycle.Status
	Connectivity connectivity.State `json:"connectivity"`
}

func (s *server) stateHandler(w http.ResponseWriter, r *http.Request) {
	status, err := s.registry.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{Status: status, Connectivity: s.tracker.State()})
}

func (s *server) activateHandler(w http.ResponseWriter, r *http.Request) {
	c, err := s.registry.ActivateWaiting(r.Context())
	if errors.Is(err, lifecycle.ErrNoWaiting) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"version": c.Version(), "state": c.State()})
}

type syncResponse struct {
	hooks.SyncResult
	Error string `json:"error,omitempty"`
}

func (s *server) syncHandler(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	result, err := s.syncer.HandleSync(r.Context(), tag)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, syncResponse{SyncResult: result, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{SyncResult: result})
}

func (s *server) queueHandler(w http.ResponseWriter, r *http.Request) {
	var action hooks.Action
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode action: %w", err))
		return
	}

	// paths are relative to the origin
	if ref, err := url.Parse(action.URL); err == nil && !ref.IsAbs() {
		action.URL = s.cfg.Origin().ResolveReference(ref).String()
	}
	action.QueuedAt = time.Now()

	if err := action.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.syncer.Queue().Push(r.Context(), action); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	queued, _ := s.syncer.Queue().Len(r.Context())
	writeJSON(w, http.StatusAccepted, map[string]int{"queued": queued})
}

func (s *server) pushHandler(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPushPayload))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	n, err := s.notifier.Notify(r.Context(), payload)
	if errors.Is(err, hooks.ErrEmptyPayload) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
