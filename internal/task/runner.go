// Package task runs named fire-and-forget units of work on background
// goroutines. The dispatching call never awaits the task; each task gets its
// own panic boundary so a crashing job cannot take the process down.
package task

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
)

type Runner struct {
	wg sync.WaitGroup
}

func NewRunner() *Runner {
	return &Runner{}
}

// Go dispatches fn on its own goroutine and returns immediately. The given
// context is detached from request cancellation so the task outlives the
// request that spawned it.
func (r *Runner) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				slog.ErrorContext(ctx, "panic recovered in background task",
					"task", name,
					"panic", rec,
					"stack", string(debug.Stack()))
			}
		}()

		if err := fn(ctx); err != nil {
			slog.ErrorContext(ctx, "background task failed",
				"task", name,
				"error", err)
		}
	}()
}

// Wait blocks until every dispatched task has finished. Used during
// shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}
