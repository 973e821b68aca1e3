package async

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/saazpayhq/saazpay/pkg/observability"
	"github.com/stretchr/testify/assert"
)

func TestRunner_Success(t *testing.T) {
	runner := NewRunner(nil)
	executed := atomic.Bool{}

	runner.Go(context.Background(), time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	})
	runner.Wait()

	assert.True(t, executed.Load())
}

func TestRunner_ErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	runner := NewRunner(observability.NewLogger(observability.DebugLevel, &buf))

	runner.Go(context.Background(), time.Second, "failing task", func(ctx context.Context) error {
		return errors.New("test error")
	})
	runner.Wait()

	assert.Contains(t, buf.String(), "failing task")
	assert.Contains(t, buf.String(), "test error")
}

func TestRunner_Timeout(t *testing.T) {
	runner := NewRunner(nil)
	var gotErr atomic.Value

	runner.Go(context.Background(), 20*time.Millisecond, "slow task", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			gotErr.Store(ctx.Err())
			return ctx.Err()
		}
	})
	runner.Wait()

	assert.Equal(t, context.DeadlineExceeded, gotErr.Load())
}

func TestRunner_NoTimeout(t *testing.T) {
	runner := NewRunner(nil)
	hasDeadline := atomic.Bool{}

	runner.Go(context.Background(), 0, "unbounded task", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		hasDeadline.Store(ok)
		return nil
	})
	runner.Wait()

	assert.False(t, hasDeadline.Load())
}

func TestRunner_PanicRecovery(t *testing.T) {
	var buf bytes.Buffer
	runner := NewRunner(observability.NewLogger(observability.InfoLevel, &buf))

	runner.Go(context.Background(), time.Second, "panicking task", func(ctx context.Context) error {
		panic("test panic")
	})
	runner.Wait()

	assert.Contains(t, buf.String(), "PANIC recovered")
}

func TestRunner_WaitContext(t *testing.T) {
	runner := NewRunner(nil)
	release := make(chan struct{})

	runner.Go(context.Background(), 0, "blocked task", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, runner.WaitContext(ctx))

	close(release)
	assert.True(t, runner.WaitContext(context.Background()))
}

func TestRunner_CloseRefusesNewTasks(t *testing.T) {
	runner := NewRunner(nil)
	var ran atomic.Int32

	assert.True(t, runner.Go(context.Background(), 0, "before close", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	}))
	runner.Close()
	assert.Equal(t, int32(1), ran.Load())

	assert.False(t, runner.Go(context.Background(), 0, "after close", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	}))
	runner.Wait()
	assert.Equal(t, int32(1), ran.Load())
}

func TestRunner_CloseConcurrentWithGo(t *testing.T) {
	runner := NewRunner(nil)
	var started, ran atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if runner.Go(context.Background(), 0, "racing task", func(ctx context.Context) error {
				ran.Add(1)
				return nil
			}) {
				started.Add(1)
			}
		}()
	}
	runner.Close()
	wg.Wait()
	runner.Wait()

	assert.Equal(t, started.Load(), ran.Load())
}

func TestRunner_CloseContext(t *testing.T) {
	runner := NewRunner(nil)
	release := make(chan struct{})
	runner.Go(context.Background(), 0, "blocked task", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, runner.CloseContext(ctx))
	assert.False(t, runner.Go(context.Background(), 0, "refused", func(ctx context.Context) error { return nil }))

	close(release)
	assert.True(t, runner.CloseContext(context.Background()))
}
