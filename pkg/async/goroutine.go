package async

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/saazpayhq/saazpay/pkg/observability"
)

// Runner starts background tasks with panic recovery and tracks them so that
// callers can wait for every task they started.
type Runner struct {
	logger *observability.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewRunner creates a runner that logs task failures to logger
func NewRunner(logger *observability.Logger) *Runner {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Runner{logger: logger}
}

// Go executes fn in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement (timeout <= 0 means none)
// - Error logging
//
// It reports false, without running fn, once the runner is closed.
//
// Example:
//
//	runner.Go(ctx, 10*time.Second, "proration preview", func(ctx context.Context) error {
//	    return preview(ctx, planID)
//	})
func (r *Runner) Go(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()

		ctx := parentCtx
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(parentCtx, timeout)
			defer cancel()
		}

		defer func() {
			if rec := recover(); rec != nil {
				r.logger.WithField("task", taskName).
					WithField("panic", rec).
					WithField("stack", string(debug.Stack())).
					Error("PANIC recovered in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			r.logger.WithField("task", taskName).WithError(err).Warn("background task failed")
		}
	}()
	return true
}

// Wait blocks until every task started with Go has returned
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close refuses new tasks and waits for the running ones
func (r *Runner) Close() {
	r.shut()
	r.wg.Wait()
}

// CloseContext is Close bounded by ctx. It reports whether all tasks finished.
func (r *Runner) CloseContext(ctx context.Context) bool {
	r.shut()
	return r.WaitContext(ctx)
}

func (r *Runner) shut() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// WaitContext is Wait bounded by ctx. It reports whether all tasks finished.
func (r *Runner) WaitContext(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
