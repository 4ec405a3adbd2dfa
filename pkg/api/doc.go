// Package api serves jsonguard over HTTP.
//
// # Endpoints
//
//	POST /v1/matches                 {schema, instance} -> {valid}
//	POST /v1/validate                {schema, instance} -> {valid, errors}
//	POST /v1/schemas/check           {schema}           -> {valid, dialect, error, keyword, path}
//	GET  /v1/schemas                                    -> {schemas}
//	GET  /v1/schemas/{name}                             -> schema document
//	POST /v1/schemas/{name}/validate {instance}         -> {valid, errors}
//	GET  /healthz, /readyz, /metrics
//
// The /v1/schemas routes exist only when the server has a registry. A schema
// that does not compile is answered with 422 and the offending path in the
// error details; malformed requests get 400. With Options.RateLimiter set,
// /v1 requests beyond a client's rate get 429.
//
// # Usage
//
//	srv := api.NewServer(api.Options{
//		Engine:   eng,
//		Registry: reg,
//		Metrics:  metrics,
//		Gatherer: prometheus.DefaultGatherer,
//		Logger:   logger,
//	})
//	http.ListenAndServe(":8080", srv)
package api
