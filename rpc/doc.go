// Package rpc binds JSON-RPC method names to handler functions and enforces
// the reply envelope contract.
//
// A Dispatcher knows nothing about framing: it receives decoded requests and
// writes replies through a Sender, which the stdio transport implements.
//
//	d := rpc.New(rpc.WithLogger(logger))
//	d.Register("echo", func(ctx context.Context, params json.RawMessage) (any, error) {
//	    return params, nil
//	})
//
// Every request (a message with an id) receives exactly one reply:
//
//   - an unregistered method gets a -32601 "method not found" error;
//   - a handler that returns a value gets a result reply carrying it;
//   - a handler that fails gets a -32603 "internal error" reply. The failure
//     itself is logged and never sent to the peer, unless the handler chose
//     a protocol error on purpose by returning an *Error.
//
// Notifications (no id) are dispatched the same way but never replied to.
//
// Handlers run on their own goroutines, so replies may be written in a
// different order than the requests arrived.
package rpc
