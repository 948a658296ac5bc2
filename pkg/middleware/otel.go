package middleware

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/vdiff/pkg/reconcile"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

// Default tracer name.
const defaultTracerName = "vdiff"

// SpanName is the name of the span created for every render.
const SpanName = "vdiff.render"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "vdiff").
	TracerName string

	// TracerProvider overrides the global tracer provider.
	TracerProvider trace.TracerProvider

	// Filter determines which renders to trace. If nil, all are traced.
	Filter func(c *reconcile.Cycle) bool

	// AttributeExtractor adds custom attributes to each span.
	AttributeExtractor func(c *reconcile.Cycle) []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithRenderFilter sets a filter function for renders.
func WithRenderFilter(filter func(c *reconcile.Cycle) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(c *reconcile.Cycle) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// OpenTelemetry creates mount middleware that traces every render.
//
// The middleware:
//   - Starts a vdiff.render span with the mount name and tree sizes
//   - Puts the span into the cycle context for the rest of the chain
//   - Records per-op mutation counts once the pass finishes
//   - Records errors and sets span status
//
// Without WithTracerProvider the global provider is used; configure it in
// main() with otel.SetTracerProvider.
func OpenTelemetry(opts ...OTelOption) reconcile.Middleware {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}

	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(config.TracerName)

	return reconcile.MiddlewareFunc(func(c *reconcile.Cycle, next func() error) error {
		if config.Filter != nil && !config.Filter(c) {
			return next()
		}

		attrs := []attribute.KeyValue{
			attribute.String("vdiff.mount", c.Mount),
			attribute.Int("vdiff.next_nodes", vdom.Count(c.Next)),
			attribute.Int("vdiff.prev_nodes", vdom.Count(c.Prev.Node())),
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(c)...)
		}

		ctx, span := tracer.Start(c.Context(), SpanName,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		defer span.End()
		c.SetContext(ctx)

		err := next()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		stats := []attribute.KeyValue{attribute.Int("vdiff.visited", c.Stats.Visited)}
		for _, op := range reconcile.Ops {
			stats = append(stats, attribute.Int("vdiff.mutations."+op.String(), c.Stats.Count(op)))
		}
		span.SetAttributes(stats...)
		return err
	})
}

// SpanFromCycle returns the render span, or nil when the cycle is not
// being traced.
func SpanFromCycle(c *reconcile.Cycle) trace.Span {
	span := trace.SpanFromContext(c.Context())
	if !span.SpanContext().IsValid() {
		return nil
	}
	return span
}
