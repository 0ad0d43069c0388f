package rpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ggoodman/mcp-postgres/internal/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain_Order(t *testing.T) {
	var trace []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, params json.RawMessage) (any, error) {
				trace = append(trace, name)
				return next(ctx, params)
			}
		}
	}
	h := Chain(mark("outer"), mark("inner"))(func(context.Context, json.RawMessage) (any, error) {
		trace = append(trace, "handler")
		return nil, nil
	})
	_, err := h(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "handler"}, trace)
}

func TestRateLimitMiddleware(t *testing.T) {
	d := New(
		WithLogger(quietLogger()),
		WithMiddleware(LoggingMiddleware(quietLogger()), RateLimitMiddleware(0.0001, 1, "limited")),
	)
	d.Register("limited", echo)
	d.Register("free", echo)
	w := newRecorder()

	d.Handle(context.Background(), w, request(t, int64(1), "limited", nil))
	_, first := w.next(t)
	assert.Nil(t, first.Error)

	d.Handle(context.Background(), w, request(t, int64(2), "limited", nil))
	_, second := w.next(t)
	require.NotNil(t, second.Error)
	assert.Equal(t, jsonrpc.ErrorCodeRateLimited, second.Error.Code)

	for i := range 3 {
		d.Handle(context.Background(), w, request(t, int64(10+i), "free", nil))
		_, resp := w.next(t)
		assert.Nil(t, resp.Error)
	}
}

func TestRequestFrom(t *testing.T) {
	d := New(WithLogger(quietLogger()))
	got := make(chan RequestInfo, 1)
	d.Register("who", func(ctx context.Context, _ json.RawMessage) (any, error) {
		info, _ := RequestFrom(ctx)
		got <- info
		return nil, nil
	})
	w := newRecorder()

	d.Handle(context.Background(), w, request(t, "abc", "who", nil))
	w.next(t)
	assert.Equal(t, RequestInfo{Method: "who", ID: "abc"}, <-got)
}

func TestSenderFrom(t *testing.T) {
	d := New(WithLogger(quietLogger()))
	d.Register("progress", func(ctx context.Context, _ json.RawMessage) (any, error) {
		w, ok := SenderFrom(ctx)
		require.True(t, ok)
		n, err := jsonrpc.NewNotification("notifications/progress", map[string]any{"progress": 1})
		require.NoError(t, err)
		return nil, w.Send(ctx, n)
	})
	w := newRecorder()

	d.Handle(context.Background(), w, request(t, int64(1), "progress", nil))
	first := <-w.ch
	assert.Contains(t, first, `"method":"notifications/progress"`)
	_, resp := w.next(t)
	assert.Nil(t, resp.Error)
}
