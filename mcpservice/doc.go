// Package mcpservice implements the server side of the Model Context
// Protocol on top of an rpc.Dispatcher. A Server answers the initialize
// handshake, ping and cancellation, and routes resource and tool methods to
// capability implementations.
//
// Capabilities are small interfaces (ResourcesCapability, ToolsCapability,
// LoggingCapability). ToolsContainer and NewDynamicResources cover the common
// cases; anything else can implement the interfaces directly.
//
// Quick start:
//
//	type EchoArgs struct {
//	    Message string `json:"message" jsonschema:"description=Text to echo"`
//	}
//	tools := mcpservice.NewToolsContainer(
//	    mcpservice.NewTool[EchoArgs]("echo", func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[EchoArgs]) error {
//	        return w.AppendText("you said: " + r.Args().Message)
//	    }, mcpservice.WithToolDescription("Echo a message back to the caller")),
//	)
//
//	srv := mcpservice.NewServer(
//	    mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: "example", Version: "1.0.0"}),
//	    mcpservice.WithToolsCapability(tools),
//	)
//	d := rpc.New()
//	srv.Register(d)
//	t := stdio.NewTransport(d)
//	_ = srv.Announce(ctx, d, t)
//	_ = t.Serve(ctx)
//
// Handlers report caller mistakes (unknown tool, missing uri, malformed
// params) as invalid-params protocol errors. Any other failure surfaces to
// the peer as a generic internal error and is logged with its detail.
package mcpservice
