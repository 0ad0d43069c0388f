package stdio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/ggoodman/mcp-postgres/internal/jsonrpc"
	"github.com/ggoodman/mcp-postgres/internal/outbound"
	"github.com/ggoodman/mcp-postgres/rpc"
)

const (
	defaultMaxLineBytes = 4 << 20
	readBufferSize      = 64 << 10

	cancelledNotificationMethod = "notifications/cancelled"
)

// InboundHandler receives every request and notification read from the
// stream. Handle must not block on the request's completion; *rpc.Dispatcher
// satisfies it.
type InboundHandler interface {
	Handle(ctx context.Context, w rpc.Sender, req *jsonrpc.Request)
}

// Transport frames a byte stream into JSON-RPC messages and writes messages
// back one line at a time.
type Transport struct {
	h       InboundHandler
	r       io.Reader
	w       io.Writer
	log     *slog.Logger
	maxLine int

	// buf holds bytes received but not yet terminated by a newline.
	bufMu      sync.Mutex
	buf        []byte
	discarding bool

	outOnce sync.Once
	out     *writeMux
	pending *outbound.Dispatcher
}

// NewTransport constructs a Transport reading os.Stdin and writing
// os.Stdout, delivering inbound requests to h.
func NewTransport(h InboundHandler, opts ...Option) *Transport {
	t := &Transport{
		h:       h,
		r:       os.Stdin,
		w:       os.Stdout,
		log:     slog.Default(),
		maxLine: defaultMaxLineBytes,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.pending = outbound.New(outboundSender{t: t})
	return t
}

// Ingest appends chunk to the incomplete-line buffer and processes every
// complete line it now holds. Chunks may split a message anywhere or carry
// several messages; the resulting sequence of messages is the same.
func (t *Transport) Ingest(ctx context.Context, chunk []byte) {
	t.bufMu.Lock()
	defer t.bufMu.Unlock()

	if t.discarding {
		idx := bytes.IndexByte(chunk, '\n')
		if idx < 0 {
			return
		}
		t.discarding = false
		chunk = chunk[idx+1:]
	}

	t.buf = append(t.buf, chunk...)

	consumed := 0
	for {
		idx := bytes.IndexByte(t.buf[consumed:], '\n')
		if idx < 0 {
			break
		}
		line := t.buf[consumed : consumed+idx]
		consumed += idx + 1
		if t.maxLine > 0 && len(line) > t.maxLine {
			t.log.WarnContext(ctx, "stdio.line_too_long", slog.Int("buffered", len(line)), slog.Int("max", t.maxLine))
			continue
		}
		t.processLine(ctx, line)
	}

	rest := t.buf[consumed:]
	switch {
	case len(rest) == 0:
		t.buf = nil
	case t.maxLine > 0 && len(rest) > t.maxLine:
		t.log.WarnContext(ctx, "stdio.line_too_long", slog.Int("buffered", len(rest)), slog.Int("max", t.maxLine))
		t.buf = nil
		t.discarding = true
	case consumed > 0:
		t.buf = append([]byte(nil), rest...)
	}
}

func (t *Transport) processLine(ctx context.Context, line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	var msg jsonrpc.AnyMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		t.log.WarnContext(ctx, "stdio.parse_error", slog.String("err", err.Error()), slog.Int("bytes", len(line)))
		return
	}

	t.classify(ctx, &msg)
}

func (t *Transport) classify(ctx context.Context, msg *jsonrpc.AnyMessage) {
	switch msg.Type() {
	case jsonrpc.TypeRequest, jsonrpc.TypeNotification:
		t.h.Handle(ctx, t, msg.AsRequest())
	case jsonrpc.TypeResponse:
		if !t.pending.Deliver(msg.AsResponse()) {
			t.log.DebugContext(ctx, "stdio.response.unmatched", slog.String("id", msg.ID.String()))
		}
	default:
		t.log.DebugContext(ctx, "stdio.message.inert")
	}
}

// Send writes msg as a single newline-terminated line. Concurrent calls are
// serialized; a line is never interleaved with another.
func (t *Transport) Send(ctx context.Context, msg any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.writer().writeJSONRPC(msg)
}

// Notify sends a one-way notification.
func (t *Transport) Notify(ctx context.Context, method string, params any) error {
	n, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		return err
	}
	return t.Send(ctx, n)
}

// Call sends a request to the peer and waits for its correlated reply. If ctx
// ends first, a cancellation notification is sent and ctx's error returned.
func (t *Transport) Call(ctx context.Context, method string, params any) (*jsonrpc.Response, error) {
	return t.pending.Call(ctx, method, params)
}

// Serve reads the input stream until EOF, a read error, or ctx ending. It
// returns nil on EOF. Calls still waiting for a reply fail when Serve
// returns. Serve must be called at most once.
//
// Requests read before EOF are dispatched with ctx itself, so their replies
// are still written after Serve returns nil; wait on the dispatcher to drain
// them. Cancelling ctx abandons them.
func (t *Transport) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- t.readLoop(ctx) }()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-errCh:
	}

	if err != nil {
		t.pending.Close(err)
	} else {
		t.pending.Close(io.EOF)
	}
	return err
}

func (t *Transport) readLoop(ctx context.Context) error {
	chunk := make([]byte, readBufferSize)
	for {
		n, err := t.r.Read(chunk)
		if n > 0 {
			t.Ingest(ctx, chunk[:n])
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			t.dropIncomplete(ctx)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	}
}

func (t *Transport) dropIncomplete(ctx context.Context) {
	t.bufMu.Lock()
	defer t.bufMu.Unlock()
	if len(bytes.TrimSpace(t.buf)) > 0 {
		t.log.DebugContext(ctx, "stdio.eof.incomplete_line", slog.Int("bytes", len(t.buf)))
	}
	t.buf = nil
}

func (t *Transport) writer() *writeMux {
	t.outOnce.Do(func() { t.out = newWriteMux(t.w) })
	return t.out
}

// outboundSender adapts the transport to the pending reply registry.
type outboundSender struct{ t *Transport }

func (s outboundSender) SendRequest(ctx context.Context, req *jsonrpc.Request) error {
	return s.t.Send(ctx, req)
}

func (s outboundSender) SendCancelled(ctx context.Context, id *jsonrpc.RequestID, reason string) error {
	return s.t.Notify(ctx, cancelledNotificationMethod, map[string]any{"requestId": id.Value(), "reason": reason})
}
