package mcpservice

import (
	"context"

	"github.com/ggoodman/mcp-postgres/internal/jsonrpc"
	"github.com/ggoodman/mcp-postgres/mcp"
	"github.com/ggoodman/mcp-postgres/rpc"
)

// ProgressReporter reports progress of a long-running operation. The server
// installs one in a tool call's context when the caller supplied a progress
// token.
type ProgressReporter interface {
	Report(ctx context.Context, progress, total float64) error
}

type progressKey struct{}

// WithProgressReporter returns a new context carrying the provided reporter.
func WithProgressReporter(ctx context.Context, pr ProgressReporter) context.Context {
	if pr == nil {
		return ctx
	}
	return context.WithValue(ctx, progressKey{}, pr)
}

// ProgressFrom retrieves a ProgressReporter from the context if present.
func ProgressFrom(ctx context.Context) (ProgressReporter, bool) {
	if v := ctx.Value(progressKey{}); v != nil {
		if pr, ok := v.(ProgressReporter); ok && pr != nil {
			return pr, true
		}
	}
	return nil, false
}

// notifyProgress emits notifications/progress on the request's sender.
type notifyProgress struct {
	w     rpc.Sender
	token mcp.ProgressToken
}

func (p *notifyProgress) Report(ctx context.Context, progress, total float64) error {
	n, err := jsonrpc.NewNotification(string(mcp.ProgressNotificationMethod), mcp.ProgressNotificationParams{
		ProgressToken: p.token,
		Progress:      progress,
		Total:         total,
	})
	if err != nil {
		return err
	}
	return p.w.Send(ctx, n)
}
