// Package middleware provides invocation middleware for the dispatch engine.
//
// This package includes:
//   - OpenTelemetry tracing middleware
//   - Prometheus metrics middleware
//
// # OpenTelemetry Middleware
//
// The OpenTelemetry middleware opens one span per handler invocation. The
// span context flows into the invocation, so outbound route calls made on
// the remote path carry it.
//
//	engine := dispatch.New(doc, routes,
//	    dispatch.WithMiddleware(
//	        middleware.OpenTelemetry(middleware.WithTracerName("my-app")),
//	    ),
//	)
//
// # Prometheus Metrics
//
// The Prometheus middleware counts invocations by category, handler path
// and final stage, times them, and counts failures by error category:
//
//	engine := dispatch.New(doc, routes,
//	    dispatch.WithMiddleware(middleware.Prometheus()),
//	)
//
// Then expose metrics:
//
//	http.Handle("/metrics", promhttp.Handler())
package middleware
