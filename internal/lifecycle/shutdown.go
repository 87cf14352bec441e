// Package lifecycle coordinates ordered teardown of the bot's components.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type hook struct {
	name string
	fn   func(ctx context.Context) error
}

// Shutdown runs registered hooks in reverse registration order, so consumers
// stop before the resources they depend on. Register the database first and
// the bot last.
type Shutdown struct {
	mu    sync.Mutex
	hooks []hook
	log   *slog.Logger
}

// NewShutdown constructs a new Shutdown coordinator.
func NewShutdown(log *slog.Logger) *Shutdown {
	if log == nil {
		log = slog.Default()
	}

	return &Shutdown{log: log}
}

// Register adds a named shutdown hook. Hooks registered later run earlier.
func (s *Shutdown) Register(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, hook{name: name, fn: fn})
}

// Execute runs all registered hooks sequentially, newest first. A failing
// hook is logged and recorded but does not stop the remaining hooks.
func (s *Shutdown) Execute(ctx context.Context) error {
	s.mu.Lock()
	hooks := append([]hook(nil), s.hooks...)
	s.mu.Unlock()

	start := time.Now()
	s.log.Info("shutdown sequence started", slog.Int("hook_count", len(hooks)))

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]

		s.log.Info("running shutdown hook", slog.String("hook", h.name))

		if err := h.fn(ctx); err != nil {
			s.log.Error("shutdown hook failed",
				slog.String("hook", h.name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}

		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("shutdown deadline exceeded after %s: %w", h.name, ctx.Err()))
			break
		}
	}

	s.log.Info("shutdown sequence finished", slog.Duration("elapsed", time.Since(start)))

	return errors.Join(errs...)
}
