// Package async provides safe concurrent execution for background tasks.
//
// # Overview
//
// Runner wraps goroutines with panic recovery, optional timeouts, context
// cancellation and structured error logging, and lets its owner wait for
// everything it started. The plan change flow uses one Runner per flow for
// proration previews and commits, and the API flow store uses one to close
// evicted flows outside the cache lock.
//
// # Usage Example
//
//	runner := async.NewRunner(logger)
//	runner.Go(ctx, 10*time.Second, "proration preview", func(ctx context.Context) error {
//		return fetchPreview(ctx, planID)
//	})
//	runner.Wait()
//
// # Related Packages
//
//   - pkg/planchange: flow tasks
//   - pkg/api: evicted flow shutdown
//   - pkg/observability: task failure logging
package async
