package velox

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

// LoggerConfig controls the Logger middleware.
type LoggerConfig struct {
	// Output receives the log lines. Defaults to os.Stdout.
	Output io.Writer

	// Format selects "text" or "json". Defaults to "text".
	Format string

	// SkipPaths lists request targets that are not logged.
	SkipPaths []string
}

// Logger returns middleware that logs one line per request with method,
// target, status, response size and latency.
func Logger() Middleware {
	return LoggerWithConfig(LoggerConfig{})
}

// LoggerWithConfig returns the Logger middleware with explicit settings.
func LoggerWithConfig(cfg LoggerConfig) Middleware {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *Context) error {
			if _, ok := skip[ctx.Path()]; ok {
				return next.Serve(ctx)
			}

			start := time.Now()
			err := next.Serve(ctx)
			latency := time.Since(start)

			status := ctx.Status()
			if err != nil {
				status = 500
			}

			if cfg.Format == "json" {
				entry := map[string]any{
					"time":    start.UTC().Format(time.RFC3339),
					"method":  ctx.Method(),
					"target":  ctx.Path(),
					"status":  status,
					"size":    ctx.ResponseSize(),
					"latency": latency.String(),
				}
				if err != nil {
					entry["error"] = err.Error()
				}
				line, jerr := json.Marshal(entry)
				if jerr == nil {
					fmt.Fprintf(cfg.Output, "%s\n", line)
				}
			} else {
				fmt.Fprintf(cfg.Output, "%s | %3d | %13v | %-7s %s\n",
					start.Format("2006/01/02 15:04:05"),
					status,
					latency,
					ctx.Method(),
					ctx.Path(),
				)
			}
			return err
		})
	}
}

// Recovery returns middleware that turns a handler panic into a 500 response
// instead of letting it unwind the connection goroutine.
func Recovery() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					ctx.SetStatus(500)
					ctx.body.Reset()
					ctx.SetHeader("content-type", "text/plain; charset=utf-8")
					ctx.WriteString("Internal Server Error")
				}
			}()
			return next.Serve(ctx)
		})
	}
}

// RequestIDHeader is the header carrying the per-request identifier.
const RequestIDHeader = "x-request-id"

// RequestID returns middleware that assigns a UUID to each request unless the
// client supplied one, stores it in the context value bag under "request_id",
// and echoes it in the response.
func RequestID() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *Context) error {
			id := ctx.Header(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			ctx.Set("request_id", id)
			ctx.SetHeader(RequestIDHeader, id)
			return next.Serve(ctx)
		})
	}
}
