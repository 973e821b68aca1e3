// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
//
// Request parsing:
//
//	var req selectRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // error response already written
//	}
//	flowID, ok := httputil.ParsePathStringOrError(w, r, "id")
//
// Errors are JSON objects with an optional reason code:
//
//	httputil.WriteConflict(w, "invalid_transition", err.Error())
//	// {"error":"...","code":"invalid_transition"}
//
// Middleware:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)(router)
package httputil
