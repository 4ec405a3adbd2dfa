// Package httputil provides the request and response helpers and middleware
// shared by the jsonguard HTTP API.
//
// # Responses
//
// Every error reply has the shape {"error": "..."}:
//
//	httputil.WriteSuccess(w, resp)
//	httputil.WriteBadRequest(w, "schema is required")
//	httputil.WriteError(w, err) // 413, 400 or 500 depending on err
//
// # Requests
//
//	var req matchRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // error reply already written
//	}
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.LoggingMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// RateLimiter keeps a token bucket per client address and answers clients
// over their rate with 429:
//
//	limiter := httputil.NewRateLimiter(httputil.RateLimitConfig{RequestsPerSecond: 20, Burst: 40})
//	handler = limiter.Middleware(handler)
package httputil
