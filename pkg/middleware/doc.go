// Package middleware provides HTTP rate limiting for the saazpay API.
//
// Two limiters implement Limiter: RateLimiter keeps token buckets in
// process (golang.org/x/time/rate), DistributedRateLimiter counts fixed
// windows in redis so every instance shares the budget.
//
//	limiter := middleware.NewRateLimiter(middleware.CommitRateLimitConfig())
//	mw := middleware.NewRateLimitMiddleware(limiter, middleware.FlowKey, logger)
//	router.Handle("/api/v1/flows/{id}/confirm", mw.Handler(confirmHandler))
//
// Limiter errors let requests through unless SetFailOpen(false) is called.
package middleware
