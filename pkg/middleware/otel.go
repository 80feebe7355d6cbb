package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/eventwire/pkg/dispatch"
)

const defaultTracerName = "eventwire"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "eventwire").
	TracerName string

	// TracerProvider supplies the tracer. Default: the global provider.
	TracerProvider trace.TracerProvider

	// IncludeSelector includes the controller selector in traces.
	// Enabled by default.
	IncludeSelector bool

	// Filter determines which invocations to trace.
	// If nil, all invocations are traced.
	Filter func(inv *dispatch.Invocation) bool

	// AttributeExtractor adds custom attributes for each traced invocation.
	AttributeExtractor func(inv *dispatch.Invocation) []attribute.KeyValue
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

// WithIncludeSelector enables/disables including the selector in traces.
func WithIncludeSelector(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeSelector = include
	}
}

// WithInvocationFilter sets a filter function for invocations.
func WithInvocationFilter(filter func(inv *dispatch.Invocation) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(inv *dispatch.Invocation) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName:      defaultTracerName,
		IncludeSelector: true,
	}
}

// OpenTelemetry creates middleware that traces every handler invocation.
//
// Each span is named "eventwire.<category> Owner@member" and carries the
// owner, member, category and invocation ID. The final stage, the remote
// flag and the fallback flag are added when the invocation ends, and a
// recorded failure sets the span status to error. The span context is
// passed down, so remote calls made by the engine inherit the trace.
//
// Configure the global tracer provider in main() before binding:
//
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) dispatch.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(config.TracerName)

	return dispatch.MiddlewareFunc(func(ctx context.Context, inv *dispatch.Invocation, next func(context.Context) *dispatch.Outcome) *dispatch.Outcome {
		if config.Filter != nil && !config.Filter(inv) {
			return next(ctx)
		}

		attrs := []attribute.KeyValue{
			attribute.String("eventwire.invocation_id", inv.ID),
			attribute.String("eventwire.owner", inv.Owner()),
			attribute.String("eventwire.member", inv.Member),
			attribute.String("eventwire.category", inv.Category),
		}
		if config.IncludeSelector {
			attrs = append(attrs, attribute.String("eventwire.selector", inv.Selector))
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(inv)...)
		}

		spanCtx, span := tracer.Start(ctx, spanName(inv),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		out := next(spanCtx)
		if out == nil {
			return out
		}

		span.SetAttributes(
			attribute.String("eventwire.stage", string(out.Stage)),
			attribute.Bool("eventwire.remote", out.Remote),
			attribute.Bool("eventwire.fallback", out.Fallback),
		)
		if out.Response != nil {
			span.SetAttributes(attribute.Int("eventwire.response_status", out.Response.Status))
		}

		if err := outcomeError(out); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return out
	})
}

func spanName(inv *dispatch.Invocation) string {
	return fmt.Sprintf("eventwire.%s %s", inv.Category, inv.Path())
}
