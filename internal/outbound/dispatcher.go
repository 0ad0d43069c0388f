// Package outbound correlates requests this process sends to its peer with the
// replies that later arrive on the inbound stream.
package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ggoodman/mcp-postgres/internal/jsonrpc"
)

// Sender writes outbound messages on behalf of the Dispatcher.
type Sender interface {
	// SendRequest emits the request. The pending entry for req.ID is
	// registered before SendRequest is called, so a reply can never race it.
	SendRequest(ctx context.Context, req *jsonrpc.Request) error
	// SendCancelled tells the peer the caller stopped waiting for id.
	SendCancelled(ctx context.Context, id *jsonrpc.RequestID, reason string) error
}

// ErrDispatcherClosed indicates the dispatcher is closed.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// pendingCall is a one-shot completion slot. Exactly one of the channels
// receives exactly one value, by whoever removed the entry from the map.
type pendingCall struct {
	respCh chan *jsonrpc.Response
	errCh  chan error
}

// Dispatcher is the pending reply registry: a map from outbound request id to
// the caller waiting on it. Entries are removed exactly once, by the first
// matching reply, by caller cancellation, or by Close.
type Dispatcher struct {
	s Sender

	mu      sync.Mutex
	pending map[string]*pendingCall
	closed  bool
	err     error

	nextID atomic.Uint64
}

// New constructs a Dispatcher that writes through s.
func New(s Sender) *Dispatcher {
	return &Dispatcher{s: s, pending: make(map[string]*pendingCall)}
}

// Call sends method with params and blocks until the correlated reply
// arrives, ctx is done, the peer cancels, or the dispatcher closes. Error
// replies are returned as a Response with Error set, not as a Go error.
func (d *Dispatcher) Call(ctx context.Context, method string, params any) (*jsonrpc.Response, error) {
	var paramsRaw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		paramsRaw = b
	}

	id := jsonrpc.NewRequestID(int64(d.nextID.Add(1)))
	key := id.Key()
	pc := &pendingCall{respCh: make(chan *jsonrpc.Response, 1), errCh: make(chan error, 1)}

	d.mu.Lock()
	if d.closed {
		err := d.err
		d.mu.Unlock()
		return nil, err
	}
	d.pending[key] = pc
	d.mu.Unlock()

	req := &jsonrpc.Request{JSONRPCVersion: jsonrpc.ProtocolVersion, Method: method, Params: paramsRaw, ID: id}
	if err := d.s.SendRequest(ctx, req); err != nil {
		d.remove(key)
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case resp := <-pc.respCh:
		return resp, nil
	case err := <-pc.errCh:
		return nil, err
	case <-ctx.Done():
		if d.remove(key) {
			_ = d.s.SendCancelled(context.WithoutCancel(ctx), id, ctx.Err().Error())
			return nil, ctx.Err()
		}
		// A reply or Close removed the entry first and has filled a slot.
		select {
		case resp := <-pc.respCh:
			return resp, nil
		case err := <-pc.errCh:
			return nil, err
		}
	}
}

// Deliver hands resp to the caller waiting on its id. It reports false when
// nobody is waiting: a late or duplicate reply, or one for a request this
// process never sent.
func (d *Dispatcher) Deliver(resp *jsonrpc.Response) bool {
	if resp == nil || resp.ID.IsNil() {
		return false
	}
	pc, ok := d.take(resp.ID.Key())
	if ok {
		pc.respCh <- resp
	}
	return ok
}

// Close fails all pending calls with err (ErrDispatcherClosed when nil) and
// rejects new ones. Only the first call has any effect.
func (d *Dispatcher) Close(err error) {
	if err == nil {
		err = ErrDispatcherClosed
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.err = err
	for key, pc := range d.pending {
		delete(d.pending, key)
		pc.errCh <- err
	}
}

func (d *Dispatcher) take(key string) (*pendingCall, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pc, ok := d.pending[key]
	if ok {
		delete(d.pending, key)
	}
	return pc, ok
}

func (d *Dispatcher) remove(key string) bool {
	_, ok := d.take(key)
	return ok
}
