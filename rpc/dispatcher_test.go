package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/mcp-postgres/internal/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a Sender that keeps every message as its serialized line.
type recorder struct {
	mu    sync.Mutex
	lines []string
	ch    chan string
}

func newRecorder() *recorder { return &recorder{ch: make(chan string, 16)} }

func (r *recorder) Send(_ context.Context, msg any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.lines = append(r.lines, string(b))
	r.mu.Unlock()
	r.ch <- string(b)
	return nil
}

func (r *recorder) next(t *testing.T) (string, *jsonrpc.Response) {
	t.Helper()
	select {
	case line := <-r.ch:
		var msg jsonrpc.AnyMessage
		require.NoError(t, json.Unmarshal([]byte(line), &msg))
		return line, msg.AsResponse()
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for reply")
		return "", nil
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func request(t *testing.T, id any, method string, params any) *jsonrpc.Request {
	t.Helper()
	req := &jsonrpc.Request{JSONRPCVersion: jsonrpc.ProtocolVersion, Method: method}
	if id != nil {
		req.ID = jsonrpc.NewRequestID(id)
	}
	if params != nil {
		b, err := json.Marshal(params)
		require.NoError(t, err)
		req.Params = b
	}
	return req
}

func echo(_ context.Context, params json.RawMessage) (any, error) { return params, nil }

func TestHandle_MethodNotFound(t *testing.T) {
	d := New(WithLogger(quietLogger()))
	d.Register("echo", echo)
	w := newRecorder()

	d.Handle(context.Background(), w, request(t, int64(2), "nope", map[string]any{}))

	_, resp := w.next(t)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeMethodNotFound, resp.Error.Code)
	assert.Equal(t, "2", resp.ID.String())
	assert.Equal(t, []string{"echo"}, d.Methods())
}

func TestHandle_UnknownNotificationIsSilent(t *testing.T) {
	d := New(WithLogger(quietLogger()))
	w := newRecorder()

	d.Handle(context.Background(), w, request(t, nil, "nope", nil))
	d.Wait()
	assert.Equal(t, 0, w.count())
}

func TestHandle_EchoResult(t *testing.T) {
	d := New(WithLogger(quietLogger()))
	d.Register("echo", echo)
	w := newRecorder()

	d.Handle(context.Background(), w, request(t, int64(3), "echo", map[string]any{"x": 1}))

	line, _ := w.next(t)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":3,"result":{"x":1}}`, line)
}

func TestHandle_MissingParamsDefaultToEmptyObject(t *testing.T) {
	d := New(WithLogger(quietLogger()))
	d.Register("echo", echo)
	w := newRecorder()

	d.Handle(context.Background(), w, request(t, "a", "echo", nil))

	line, _ := w.next(t)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"a","result":{}}`, line)
}

func TestHandle_FailureHidesDetail(t *testing.T) {
	d := New(WithLogger(quietLogger()))
	d.Register("boom", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("password=hunter2 connection refused")
	})
	w := newRecorder()

	d.Handle(context.Background(), w, request(t, int64(5), "boom", nil))

	line, resp := w.next(t)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeInternalError, resp.Error.Code)
	assert.Equal(t, "5", resp.ID.String())
	assert.NotContains(t, line, "hunter2")
	assert.NotContains(t, line, "connection refused")
}

func TestHandle_PanicIsInternalError(t *testing.T) {
	d := New(WithLogger(quietLogger()))
	d.Register("panic", func(context.Context, json.RawMessage) (any, error) {
		panic("secret state")
	})
	w := newRecorder()

	d.Handle(context.Background(), w, request(t, int64(6), "panic", nil))

	line, resp := w.next(t)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeInternalError, resp.Error.Code)
	assert.NotContains(t, line, "secret state")
}

func TestHandle_ProtocolErrorIsPassedThrough(t *testing.T) {
	d := New(WithLogger(quietLogger()))
	d.Register("strict", func(context.Context, json.RawMessage) (any, error) {
		return nil, InvalidParams("missing field %q", "uri")
	})
	w := newRecorder()

	d.Handle(context.Background(), w, request(t, int64(7), "strict", nil))

	_, resp := w.next(t)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeInvalidParams, resp.Error.Code)
	assert.Equal(t, `missing field "uri"`, resp.Error.Message)
}

func TestHandle_NotificationNeverReplies(t *testing.T) {
	d := New(WithLogger(quietLogger()))
	calls := make(chan struct{}, 2)
	d.Register("fail", func(context.Context, json.RawMessage) (any, error) {
		calls <- struct{}{}
		return nil, errors.New("nope")
	})
	d.Register("ok", func(context.Context, json.RawMessage) (any, error) {
		calls <- struct{}{}
		return "fine", nil
	})
	w := newRecorder()

	d.Handle(context.Background(), w, request(t, nil, "fail", nil))
	d.Handle(context.Background(), w, request(t, nil, "ok", nil))
	d.Wait()

	assert.Len(t, calls, 2)
	assert.Equal(t, 0, w.count())
}

func TestHandle_RepliesKeepTheirIDsOutOfOrder(t *testing.T) {
	d := New(WithLogger(quietLogger()))
	release := make(chan struct{})
	d.Register("slow", func(context.Context, json.RawMessage) (any, error) {
		<-release
		return "slow", nil
	})
	d.Register("fast", func(context.Context, json.RawMessage) (any, error) {
		return "fast", nil
	})
	w := newRecorder()

	d.Handle(context.Background(), w, request(t, int64(1), "slow", nil))
	d.Handle(context.Background(), w, request(t, int64(2), "fast", nil))

	_, first := w.next(t)
	assert.Equal(t, "2", first.ID.String())
	assert.JSONEq(t, `"fast"`, string(first.Result))

	close(release)
	_, second := w.next(t)
	assert.Equal(t, "1", second.ID.String())
	assert.JSONEq(t, `"slow"`, string(second.Result))
}

func TestRegister_LaterWins(t *testing.T) {
	d := New(WithLogger(quietLogger()))
	d.Register("m", func(context.Context, json.RawMessage) (any, error) { return 1, nil })
	d.Register("m", func(context.Context, json.RawMessage) (any, error) { return 2, nil })
	w := newRecorder()

	d.Handle(context.Background(), w, request(t, int64(1), "m", nil))
	_, resp := w.next(t)
	assert.JSONEq(t, `2`, string(resp.Result))
	assert.Equal(t, []string{"m"}, d.Methods())
}

func TestCancel_CancelsHandlerContext(t *testing.T) {
	d := New(WithLogger(quietLogger()))
	started := make(chan struct{})
	d.Register("wait", func(ctx context.Context, _ json.RawMessage) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	w := newRecorder()

	d.Handle(context.Background(), w, request(t, "r-1", "wait", nil))
	<-started
	require.True(t, d.Cancel(jsonrpc.NewRequestID("r-1")))

	_, resp := w.next(t)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeInternalError, resp.Error.Code)
	d.Wait()
	assert.False(t, d.Cancel(jsonrpc.NewRequestID("r-1")))
}

func TestCancel_StringAndNumericIDsAreDistinct(t *testing.T) {
	d := New(WithLogger(quietLogger()))
	started := make(chan struct{})
	d.Register("wait", func(ctx context.Context, _ json.RawMessage) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	w := newRecorder()

	d.Handle(context.Background(), w, request(t, int64(1), "wait", nil))
	<-started
	assert.False(t, d.Cancel(jsonrpc.NewRequestID("1")))
	assert.Zero(t, w.count())

	require.True(t, d.Cancel(jsonrpc.NewRequestID(1)))
	_, resp := w.next(t)
	require.NotNil(t, resp.Error)
	d.Wait()
}

func TestHandlerTimeout(t *testing.T) {
	d := New(WithLogger(quietLogger()), WithHandlerTimeout(20*time.Millisecond))
	d.Register("hang", func(ctx context.Context, _ json.RawMessage) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	w := newRecorder()

	d.Handle(context.Background(), w, request(t, int64(1), "hang", nil))
	_, resp := w.next(t)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeInternalError, resp.Error.Code)
}

func TestHandle_AbandonsReplyOnShutdown(t *testing.T) {
	d := New(WithLogger(quietLogger()))
	release := make(chan struct{})
	d.Register("slow", func(context.Context, json.RawMessage) (any, error) {
		<-release
		return "late", nil
	})
	w := newRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	d.Handle(ctx, w, request(t, int64(1), "slow", nil))
	cancel()
	close(release)
	d.Wait()
	assert.Equal(t, 0, w.count())
}

func TestWait_DrainsRepliesWhileContextLives(t *testing.T) {
	d := New(WithLogger(quietLogger()))
	d.Register("slow", func(context.Context, json.RawMessage) (any, error) {
		time.Sleep(10 * time.Millisecond)
		return "late", nil
	})
	w := newRecorder()

	for i := int64(1); i <= 5; i++ {
		d.Handle(context.Background(), w, request(t, i, "slow", nil))
	}
	d.Wait()
	assert.Equal(t, 5, w.count())
}

func TestAnnounce_Once(t *testing.T) {
	d := New(WithLogger(quietLogger()))
	w := newRecorder()

	require.NoError(t, d.Announce(context.Background(), w, "announce", map[string]string{"name": "x"}))
	assert.ErrorIs(t, d.Announce(context.Background(), w, "announce", nil), ErrAlreadyAnnounced)

	line := <-w.ch
	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"announce","params":{"name":"x"}}`, line)
	assert.False(t, strings.Contains(line, `"id"`))
}
