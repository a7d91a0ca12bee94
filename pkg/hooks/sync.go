package hooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

// SyncTag is the only sync tag that replays deferred writes.
const SyncTag = "background-sync"

// SyncResult summarises one replay run.
type SyncResult struct {
	Replayed  int `json:"replayed"`
	Dropped   int `json:"dropped"`
	Remaining int `json:"remaining"`
}

// Syncer replays deferred writes straight to the network.
type Syncer struct {
	queue     Queue
	transport http.RoundTripper
	logger    zerolog.Logger
}

// NewSyncer creates a syncer. transport must bypass any caching layer.
func NewSyncer(queue Queue, transport http.RoundTripper, logger zerolog.Logger) *Syncer {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Syncer{queue: queue, transport: transport, logger: logger}
}

// Queue returns the queue the syncer drains.
func (s *Syncer) Queue() Queue {
	return s.queue
}

// HandleSync replays the queue front to back when tag is SyncTag; other
// tags are ignored. A network failure puts the action back at the head and
// stops the run. An HTTP error status drops the action, since the write
// reached the server.
func (s *Syncer) HandleSync(ctx context.Context, tag string) (result SyncResult, err error) {
	if tag != SyncTag {
		s.logger.Debug().Str("tag", tag).Msg("Ignoring unknown sync tag")
		return result, nil
	}

	s.logger.Info().Msg("Background sync triggered")
	defer func() {
		if n, lenErr := s.queue.Len(context.WithoutCancel(ctx)); lenErr == nil {
			result.Remaining = n
		}
	}()

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}

		action, popErr := s.queue.Pop(ctx)
		if errors.Is(popErr, ErrQueueEmpty) {
			return result, nil
		}
		if popErr == nil {
			popErr = action.Validate()
		}
		if errors.Is(popErr, ErrInvalidAction) {
			result.Dropped++
			syncActionsTotal.WithLabelValues("dropped").Inc()
			s.logger.Warn().Err(popErr).Msg("Dropping unreplayable deferred action")
			continue
		}
		if popErr != nil {
			return result, popErr
		}

		status, replayErr := s.replay(ctx, action)
		if replayErr != nil {
			err = replayErr
			syncActionsTotal.WithLabelValues("requeued").Inc()
			if qerr := s.queue.PushFront(context.WithoutCancel(ctx), action); qerr != nil {
				s.logger.Error().Err(qerr).Str("url", action.URL).Msg("Failed to requeue deferred action")
				return result, errors.Join(err, qerr)
			}
			s.logger.Warn().
				Err(err).
				Str("method", action.Method).
				Str("url", action.URL).
				Msg("Network unreachable, stopping sync")
			return result, err
		}

		if status >= http.StatusBadRequest {
			result.Dropped++
			syncActionsTotal.WithLabelValues("dropped").Inc()
			s.logger.Warn().
				Str("method", action.Method).
				Str("url", action.URL).
				Int("status_code", status).
				Msg("Deferred action rejected by server")
			continue
		}

		result.Replayed++
		syncActionsTotal.WithLabelValues("replayed").Inc()
		s.logger.Debug().
			Str("method", action.Method).
			Str("url", action.URL).
			Int("status_code", status).
			Msg("Replayed deferred action")
	}
}

func (s *Syncer) replay(ctx context.Context, action Action) (int, error) {
	req, err := action.Request(ctx)
	if err != nil {
		return 0, err
	}
	resp, err := s.transport.RoundTrip(req)
	if err != nil {
		return 0, fmt.Errorf("replay %s %s: %w", action.Method, action.URL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
