package velox

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig controls the OpenTelemetry tracing middleware.
type TracingConfig struct {
	// TracerName names the tracer (default: "velox").
	TracerName string
	// SkipPaths lists request targets to skip (e.g. health checks).
	SkipPaths []string
	// Propagator is the propagation format (default: TraceContext).
	Propagator propagation.TextMapPropagator
}

// DefaultTracingConfig returns a TracingConfig with sensible defaults.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		TracerName: "velox",
		SkipPaths:  []string{"/health"},
		Propagator: propagation.TraceContext{},
	}
}

// Tracing returns middleware that creates a server span per request and
// propagates incoming trace context from the request headers.
func Tracing() Middleware {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig returns the tracing middleware with explicit settings.
func TracingWithConfig(config TracingConfig) Middleware {
	if config.TracerName == "" {
		config.TracerName = "velox"
	}
	if config.Propagator == nil {
		config.Propagator = propagation.TraceContext{}
	}

	skipMap := make(map[string]bool, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skipMap[path] = true
	}

	tracer := otel.Tracer(config.TracerName)

	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *Context) error {
			if skipMap[ctx.Path()] {
				return next.Serve(ctx)
			}

			carrier := requestHeaderCarrier{headers: ctx.RequestHeaders()}
			parentCtx := config.Propagator.Extract(ctx.Context(), carrier)

			spanCtx, span := tracer.Start(
				parentCtx,
				ctx.Method()+" "+ctx.Path(),
				trace.WithSpanKind(trace.SpanKindServer),
			)
			defer span.End()

			span.SetAttributes(
				attribute.String("rpc.method", ctx.Method()),
				attribute.String("rpc.target", ctx.Path()),
				attribute.String("net.host.name", ctx.Host()),
				attribute.Int("request.body_size", len(ctx.Body())),
			)

			if reqID, ok := ctx.Get("request_id"); ok {
				if s, ok := reqID.(string); ok {
					span.SetAttributes(attribute.String("request.id", s))
				}
			}

			original := ctx.Context()
			ctx.WithContext(spanCtx)

			err := next.Serve(ctx)

			ctx.WithContext(original)

			span.SetAttributes(attribute.Int("response.status_code", ctx.Status()))

			switch {
			case err != nil:
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			case ctx.Status() >= 400:
				span.SetStatus(codes.Error, "request failed")
			default:
				span.SetStatus(codes.Ok, "")
			}

			return err
		})
	}
}

// requestHeaderCarrier adapts the ordered request header list to
// propagation.TextMapCarrier. It is read-only; traces never mutate the
// incoming request.
type requestHeaderCarrier struct {
	headers [][2]string
}

func (c requestHeaderCarrier) Get(key string) string {
	for i := len(c.headers) - 1; i >= 0; i-- {
		if c.headers[i][0] == key {
			return c.headers[i][1]
		}
	}
	return ""
}

func (c requestHeaderCarrier) Set(key, value string) {}

func (c requestHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h[0])
	}
	return keys
}
