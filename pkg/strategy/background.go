package strategy

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Background runs fire-and-forget work whose lifetime is independent of the
// request that triggered it. Failures are logged and counted, never returned.
type Background struct {
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// NewBackground creates a background task runner.
func NewBackground(logger zerolog.Logger) *Background {
	return &Background{logger: logger}
}

// Go starts fn in its own goroutine. The context passed to fn keeps the values
// of ctx but is never cancelled when ctx is.
func (b *Background) Go(ctx context.Context, task string, fn func(ctx context.Context) error) {
	detached := context.WithoutCancel(ctx)

	b.wg.Add(1)
	backgroundInflight.Inc()
	go func() {
		defer b.wg.Done()
		defer backgroundInflight.Dec()

		err := b.run(detached, fn)
		if err != nil {
			backgroundTasks.WithLabelValues(task, "error").Inc()
			b.logger.Warn().Err(err).Str("task", task).Msg("Background task failed")
			return
		}
		backgroundTasks.WithLabelValues(task, "ok").Inc()
	}()
}

func (b *Background) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Wait blocks until every started task has finished or ctx is done.
func (b *Background) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
