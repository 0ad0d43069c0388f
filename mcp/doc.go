// Package mcp contains protocol data types and constants shared by the
// transport and the server capability implementations. It mirrors the wire
// representation of the Model Context Protocol while keeping the surface
// Go-friendly (exported structs with json tags, string constants for method
// names and enumerations, helper validation functions).
//
// The package is free of transport logic: the stdio transport and the rpc
// dispatcher import these types but own framing and dispatch. Higher-level
// server packages (e.g. mcpservice) construct results using these concrete
// types and hand them to the dispatcher for serialization.
//
// # Method Names
//
// JSON-RPC method and notification names are enumerated as Method constants
// (e.g. ToolsListMethod). AnnounceMethod is not part of the handshake; it is
// the single unprompted notification a server sends once it is ready.
//
// # Capabilities
//
// ClientCapabilities and ServerCapabilities capture negotiated feature sets.
// They are thin structs shaped to match the wire format. Features, carried by
// the announce notification, is a coarser per-operation view derived from
// the handlers a server actually registered.
//
// # Pagination
//
// List operations use cursor-based pagination. PaginatedRequest and
// PaginatedResult are embedded in request / result envelopes to keep the core
// list types clean.
//
// Example (tool result construction):
//
//	res := &mcp.CallToolResult{
//	    Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: "hello"}},
//	}
//
// # Logging Levels
//
// LoggingLevel values mirror syslog severities. Use IsValidLoggingLevel to
// validate client-provided values.
package mcp
