// Package middleware provides observability middleware for reconcile mounts.
//
// # OpenTelemetry Middleware
//
// The OpenTelemetry middleware wraps every render in a vdiff.render span
// carrying the mount name, tree sizes and the number of mutations emitted
// per op. Failed renders are recorded with codes.Error.
//
//	m := reconcile.NewMount(r, root,
//	    reconcile.WithName("todo"),
//	    reconcile.WithMiddleware(
//	        middleware.OpenTelemetry(middleware.WithTracerName("my-app")),
//	    ),
//	)
//
// Later middleware in the chain can reach the span with SpanFromCycle.
//
// # Prometheus Metrics
//
// The Prometheus middleware collects:
//   - vdiff_renders_total: renders by mount and status
//   - vdiff_render_duration_seconds: render duration histogram
//   - vdiff_render_errors_total: failures by mount and error type
//   - vdiff_mutations_total: mutations emitted by op
//
// The server feeds vdiff_active_mounts, vdiff_watchers,
// vdiff_frames_sent_total and vdiff_websocket_errors_total through the
// Record functions. Expose them with promhttp:
//
//	http.Handle("/metrics", promhttp.Handler())
package middleware
