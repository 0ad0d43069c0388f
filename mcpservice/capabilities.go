package mcpservice

import (
	"context"
	"errors"

	"github.com/ggoodman/mcp-postgres/mcp"
)

var (
	// ErrResourceNotFound is returned by ReadResource for an unknown URI.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrToolNotFound is returned by CallTool for an unknown tool name.
	ErrToolNotFound = errors.New("tool not found")
)

// ResourcesCapability defines the resource operations supported by the server.
// All methods MUST be safe for concurrent use.
type ResourcesCapability interface {
	// ListResources returns a (possibly paginated) list of resources.
	//
	// A nil cursor requests the first page. When more results are available,
	// Page.NextCursor SHOULD be set.
	ListResources(ctx context.Context, cursor *string) (Page[mcp.Resource], error)

	// ListResourceTemplates returns a (possibly paginated) list of resource templates.
	ListResourceTemplates(ctx context.Context, cursor *string) (Page[mcp.ResourceTemplate], error)

	// ReadResource returns the contents for a specific resource URI. Unknown
	// URIs SHOULD yield an error wrapping ErrResourceNotFound.
	ReadResource(ctx context.Context, uri string) ([]mcp.ResourceContents, error)
}

// ToolsCapability defines the server's tools surface area. All methods MUST be
// safe for concurrent use.
type ToolsCapability interface {
	// ListTools returns a (possibly paginated) list of tools.
	ListTools(ctx context.Context, cursor *string) (Page[mcp.Tool], error)

	// CallTool invokes a named tool. Input problems the caller can fix SHOULD
	// be reported as an IsError result rather than an error; an unknown tool
	// SHOULD yield an error wrapping ErrToolNotFound.
	CallTool(ctx context.Context, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error)
}

// LoggingCapability allows the client to adjust the server's logging level.
type LoggingCapability interface {
	SetLevel(ctx context.Context, level mcp.LoggingLevel) error
}
