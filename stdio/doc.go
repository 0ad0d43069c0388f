// Package stdio implements a single-connection JSON-RPC transport over
// stdin/stdout. It is intended for servers launched as subprocesses, where
// the parent writes newline-delimited JSON to the child's stdin and reads
// replies from its stdout.
//
// Characteristics
//
//	Connection model : 1 process <-> 1 peer
//	Framing          : one JSON object per line, lines end with '\n'
//	Dispatch         : requests/notifications go to an InboundHandler
//	Replies          : correlated to requests this process sent via Call
//
// The transport knows nothing about method semantics. Lines that are blank
// are skipped; lines that are not valid JSON-RPC are logged and discarded
// without interrupting the stream.
//
// Example:
//
//	d := rpc.New()
//	d.Register("echo", func(ctx context.Context, p json.RawMessage) (any, error) { return p, nil })
//	t := stdio.NewTransport(d)
//	if err := t.Serve(ctx); err != nil { log.Fatal(err) }
package stdio
