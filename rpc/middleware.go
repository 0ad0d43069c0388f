package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"time"

	"github.com/ggoodman/mcp-postgres/internal/jsonrpc"
	"golang.org/x/time/rate"
)

// Middleware wraps a handler.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares so that the first one is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// LoggingMiddleware logs every invocation with its duration and outcome.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, params json.RawMessage) (any, error) {
			start := time.Now()
			result, err := next(ctx, params)
			attrs := []any{slog.Duration("duration", time.Since(start))}
			if err != nil {
				attrs = append(attrs, slog.Bool("failed", true))
			}
			logger.DebugContext(ctx, "rpc.handled", attrs...)
			return result, err
		}
	}
}

// RateLimitMiddleware admits at most limit calls per second with the given
// burst, sharing one token bucket across the listed methods (all methods when
// none are listed). Rejected calls fail with ErrorCodeRateLimited.
func RateLimitMiddleware(limit float64, burst int, methods ...string) Middleware {
	limiter := rate.NewLimiter(rate.Limit(limit), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, params json.RawMessage) (any, error) {
			if len(methods) > 0 {
				info, _ := RequestFrom(ctx)
				if !slices.Contains(methods, info.Method) {
					return next(ctx, params)
				}
			}
			if !limiter.Allow() {
				return nil, NewError(jsonrpc.ErrorCodeRateLimited, "rate limit exceeded")
			}
			return next(ctx, params)
		}
	}
}
