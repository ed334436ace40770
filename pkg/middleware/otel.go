package middleware

import (
	"context"
	"fmt"

	"github.com/vango-dev/navrouter/pkg/router"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for navrouter.
const defaultTracerName = "navrouter"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "navrouter").
	TracerName string

	// TracerProvider supplies the tracer.
	// Default: the global provider from otel.GetTracerProvider.
	TracerProvider trace.TracerProvider

	// IncludeParams records the params of every opened route.
	// Params can carry user data - disabled by default.
	IncludeParams bool

	// Filter determines which events to trace.
	// Return true to trace the event, false to skip.
	// If nil, all events are traced.
	Filter func(ev *router.Event) bool

	// AttributeExtractor adds custom attributes once the event has run.
	AttributeExtractor func(ev *router.Event) []attribute.KeyValue
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

// WithIncludeParams enables recording opened routes' params.
func WithIncludeParams(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeParams = include
	}
}

// WithEventFilter sets a filter function for events.
func WithEventFilter(filter func(ev *router.Event) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(ev *router.Event) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
	}
}

// OpenTelemetry creates middleware that traces every router event.
//
// The middleware:
//   - Starts a span per event, named after the event kind
//   - Passes the span's context down, so the navigation source sees it
//   - Records the navigated path, template and pass outcome as attributes
//   - Records errors and sets span status
//
// The tracer comes from the global provider unless WithTracerProvider is
// given. Configure it in main() before building routers:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) router.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(config.TracerName)

	return router.MiddlewareFunc(func(ctx context.Context, ev *router.Event, next func(context.Context) error) error {
		if config.Filter != nil && !config.Filter(ev) {
			return next(ctx)
		}

		spanCtx, span := tracer.Start(ctx, formatSpanName(ev),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attribute.String("navrouter.event", ev.Kind.String())),
		)
		defer span.End()

		err := next(spanCtx)

		// Path and template are only known once the event has run.
		attrs := []attribute.KeyValue{}
		if ev.Path != "" {
			attrs = append(attrs,
				attribute.String("navrouter.path", ev.Path),
				attribute.String("navrouter.method", ev.Method.String()),
			)
		}
		if ev.Template != "" {
			attrs = append(attrs, attribute.String("navrouter.template", ev.Template))
		}
		if res := ev.Result; res != nil {
			attrs = append(attrs,
				attribute.String("navrouter.reconciled_path", res.Path),
				attribute.Int("navrouter.entered", len(res.Entered)),
				attribute.Int("navrouter.left", len(res.Left)),
				attribute.Int("navrouter.transitions.opened", ev.Transitions.Opened),
				attribute.Int("navrouter.transitions.updated", ev.Transitions.Updated),
				attribute.Int("navrouter.transitions.left", ev.Transitions.Left),
			)
			if config.IncludeParams {
				for _, e := range res.Entered {
					for name, value := range e.Params {
						attrs = append(attrs, attribute.String(fmt.Sprintf("navrouter.params.%s.%s", e.Template, name), value))
					}
				}
			}
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(ev)...)
		}
		span.SetAttributes(attrs...)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	})
}

// SpanFromContext returns the span of the router event being processed, or
// nil outside one. Navigation sources receive this context in Push/Replace.
func SpanFromContext(ctx context.Context) trace.Span {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() && !span.IsRecording() {
		return nil
	}
	return span
}

func formatSpanName(ev *router.Event) string {
	return fmt.Sprintf("navrouter.%s", ev.Kind.String())
}
