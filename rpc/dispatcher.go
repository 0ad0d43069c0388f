package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ggoodman/mcp-postgres/internal/jsonrpc"
	"github.com/ggoodman/mcp-postgres/internal/logctx"
)

// HandlerFunc implements one method. params is never nil; absent params are
// passed as an empty object. The returned value is marshalled as the result.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Sender writes a single message to the peer. Implementations must make each
// call atomic with respect to concurrent calls.
type Sender interface {
	Send(ctx context.Context, msg any) error
}

// ErrAlreadyAnnounced is returned by Announce after the first call.
var ErrAlreadyAnnounced = errors.New("rpc: already announced")

var emptyParams = json.RawMessage("{}")

// Dispatcher owns the handler registry and the set of in-flight requests.
type Dispatcher struct {
	log        *slog.Logger
	middleware []Middleware
	timeout    time.Duration

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	inflightMu sync.Mutex
	inflight   map[string]*inflightCall
	wg         sync.WaitGroup

	announced atomic.Bool
}

type inflightCall struct {
	cancel context.CancelFunc
}

// New constructs an empty Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		log:      slog.Default(),
		handlers: make(map[string]HandlerFunc),
		inflight: make(map[string]*inflightCall),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register binds method to h. A later registration for the same method
// replaces the earlier one.
func (d *Dispatcher) Register(method string, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[method] = h
}

// Lookup returns the handler registered for method.
func (d *Dispatcher) Lookup(method string) (HandlerFunc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[method]
	return h, ok
}

// Has reports whether method has a handler.
func (d *Dispatcher) Has(method string) bool {
	_, ok := d.Lookup(method)
	return ok
}

// Methods returns the registered method names in sorted order.
func (d *Dispatcher) Methods() []string {
	d.mu.RLock()
	out := make([]string, 0, len(d.handlers))
	for m := range d.handlers {
		out = append(out, m)
	}
	d.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Handle dispatches req and returns without waiting for the handler. Exactly
// one reply is written through w for requests; none for notifications. When
// ctx is done before the handler finishes the reply is abandoned.
func (d *Dispatcher) Handle(ctx context.Context, w Sender, req *jsonrpc.Request) {
	info := RequestInfo{Method: req.Method, ID: req.ID.String(), Notification: req.IsNotification()}
	ctx = withRequestInfo(ctx, info)
	ctx = context.WithValue(ctx, senderKey{}, w)
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: info.Method, ID: info.ID, Type: string(messageType(req))})

	h, ok := d.Lookup(req.Method)
	if !ok {
		if info.Notification {
			d.log.DebugContext(ctx, "rpc.notification.unhandled")
			return
		}
		d.log.DebugContext(ctx, "rpc.method_not_found")
		d.reply(ctx, w, jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, methodNotFoundMessage, nil))
		return
	}

	params := req.Params
	if len(params) == 0 || string(params) == "null" {
		params = emptyParams
	}

	callCtx, cancel := d.callContext(ctx)
	key := req.ID.Key()
	var call *inflightCall
	if !info.Notification {
		call = d.track(key, cancel)
	}

	h = Chain(d.middleware...)(h)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		if call != nil {
			defer d.untrack(key, call)
		}

		result, err := invoke(callCtx, h, params)
		if info.Notification {
			if err != nil {
				d.log.ErrorContext(ctx, "rpc.notification.failed", slog.String("err", err.Error()))
			}
			return
		}
		if ctx.Err() != nil {
			d.log.DebugContext(ctx, "rpc.reply.abandoned", slog.String("reason", ctx.Err().Error()))
			return
		}
		d.reply(ctx, w, d.buildResponse(ctx, req.ID, result, err))
	}()
}

// Cancel cancels the context of the in-flight request with the given id. The
// string id "1" and the numeric id 1 name different requests.
func (d *Dispatcher) Cancel(id *jsonrpc.RequestID) bool {
	if id.IsNil() {
		return false
	}
	d.inflightMu.Lock()
	call, ok := d.inflight[id.Key()]
	d.inflightMu.Unlock()
	if ok {
		call.cancel()
	}
	return ok
}

// Wait blocks until every dispatched handler has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Announce sends method as a one-way notification. It succeeds at most once
// per Dispatcher.
func (d *Dispatcher) Announce(ctx context.Context, w Sender, method string, params any) error {
	if !d.announced.CompareAndSwap(false, true) {
		return ErrAlreadyAnnounced
	}
	n, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		return fmt.Errorf("build %s: %w", method, err)
	}
	if err := w.Send(ctx, n); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}
	return nil
}

func (d *Dispatcher) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout > 0 {
		return context.WithTimeout(ctx, d.timeout)
	}
	return context.WithCancel(ctx)
}

func (d *Dispatcher) track(id string, cancel context.CancelFunc) *inflightCall {
	call := &inflightCall{cancel: cancel}
	d.inflightMu.Lock()
	d.inflight[id] = call
	d.inflightMu.Unlock()
	return call
}

func (d *Dispatcher) untrack(id string, call *inflightCall) {
	d.inflightMu.Lock()
	if d.inflight[id] == call {
		delete(d.inflight, id)
	}
	d.inflightMu.Unlock()
}

func (d *Dispatcher) buildResponse(ctx context.Context, id *jsonrpc.RequestID, result any, err error) *jsonrpc.Response {
	if err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			d.log.DebugContext(ctx, "rpc.handler.protocol_error", slog.Int("code", int(rpcErr.Code)), slog.String("err", rpcErr.Message))
			return jsonrpc.NewErrorResponse(id, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		}
		d.log.ErrorContext(ctx, "rpc.handler.failed", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeInternalError, internalErrorMessage, nil)
	}

	resp, merr := jsonrpc.NewResultResponse(id, result)
	if merr != nil {
		d.log.ErrorContext(ctx, "rpc.result.marshal_failed", slog.String("err", merr.Error()))
		return jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeInternalError, internalErrorMessage, nil)
	}
	return resp
}

func (d *Dispatcher) reply(ctx context.Context, w Sender, resp *jsonrpc.Response) {
	if err := w.Send(ctx, resp); err != nil {
		d.log.ErrorContext(ctx, "rpc.reply.failed", slog.String("err", err.Error()))
	}
}

// invoke runs h, converting a panic into an error.
func invoke(ctx context.Context, h HandlerFunc, params json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v\n%s", r, debug.Stack())
		}
	}()
	return h(ctx, params)
}

func messageType(req *jsonrpc.Request) jsonrpc.MessageType {
	if req.IsNotification() {
		return jsonrpc.TypeNotification
	}
	return jsonrpc.TypeRequest
}
