package rpc

import "context"

// RequestInfo describes the message a handler is serving.
type RequestInfo struct {
	Method       string
	ID           string
	Notification bool
}

type requestInfoKey struct{}

func withRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestFrom returns the RequestInfo of the message being handled.
func RequestFrom(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info, ok
}

type senderKey struct{}

// SenderFrom returns the Sender the current request arrived on. Handlers use
// it to emit notifications that belong to the request, such as progress.
func SenderFrom(ctx context.Context) (Sender, bool) {
	w, ok := ctx.Value(senderKey{}).(Sender)
	return w, ok && w != nil
}
