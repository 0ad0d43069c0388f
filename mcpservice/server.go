package mcpservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ggoodman/mcp-postgres/internal/jsonrpc"
	"github.com/ggoodman/mcp-postgres/internal/logctx"
	"github.com/ggoodman/mcp-postgres/mcp"
	"github.com/ggoodman/mcp-postgres/rpc"
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// Server answers the MCP handshake and routes resource and tool methods to
// the configured capabilities. It is bound to a dispatcher with Register.
type Server struct {
	log *slog.Logger

	info            mcp.ImplementationInfo
	protocolVersion string
	instructions    string
	templates       []mcp.ResourceTemplate

	resources ResourcesCapability
	tools     ToolsCapability
	logging   LoggingCapability

	d *rpc.Dispatcher
}

// NewServer builds a Server using functional options.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithServerInfo sets the implementation info reported in initialize and announce.
func WithServerInfo(info mcp.ImplementationInfo) ServerOption {
	return func(s *Server) { s.info = info }
}

// WithProtocolVersion pins the protocol version the server reports. Without
// it the server echoes a supported client version and otherwise falls back
// to mcp.LatestProtocolVersion.
func WithProtocolVersion(version string) ServerOption {
	return func(s *Server) { s.protocolVersion = version }
}

// WithInstructions sets static human-readable instructions returned during initialize.
func WithInstructions(instr string) ServerOption {
	return func(s *Server) { s.instructions = instr }
}

// WithResourcesCapability enables the resources methods.
func WithResourcesCapability(c ResourcesCapability) ServerOption {
	return func(s *Server) { s.resources = c }
}

// WithToolsCapability enables the tools methods.
func WithToolsCapability(c ToolsCapability) ServerOption {
	return func(s *Server) { s.tools = c }
}

// WithLoggingCapability enables logging/setLevel.
func WithLoggingCapability(c LoggingCapability) ServerOption {
	return func(s *Server) { s.logging = c }
}

// WithResourceTemplates sets the templates listed in the initialize result.
func WithResourceTemplates(templates ...mcp.ResourceTemplate) ServerOption {
	return func(s *Server) { s.templates = append(s.templates, templates...) }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// Register binds the server's methods on d. Capability methods are only
// registered when the capability is configured.
func (s *Server) Register(d *rpc.Dispatcher) {
	s.d = d

	d.Register(string(mcp.InitializeMethod), s.handleInitialize)
	d.Register(string(mcp.InitializedMethod), s.handleEmpty)
	d.Register(string(mcp.InitializedNotificationMethod), s.handleEmpty)
	d.Register(string(mcp.PingMethod), s.handleEmpty)
	d.Register(string(mcp.CancelledNotificationMethod), s.handleCancelled)

	if s.resources != nil {
		d.Register(string(mcp.ResourcesListMethod), s.handleResourcesList)
		d.Register(string(mcp.ResourcesReadMethod), s.handleResourcesRead)
		d.Register(string(mcp.ResourcesTemplatesListMethod), s.handleResourceTemplatesList)
	}
	if s.tools != nil {
		d.Register(string(mcp.ToolsListMethod), s.handleToolsList)
		d.Register(string(mcp.ToolsCallMethod), s.handleToolsCall)
	}
	if s.logging != nil {
		d.Register(string(mcp.LoggingSetLevelMethod), s.handleSetLevel)
	}
}

// Announce sends the announce notification through w, advertising the
// server identity and the features registered on d. It fails with
// rpc.ErrAlreadyAnnounced when called more than once for d.
func (s *Server) Announce(ctx context.Context, d *rpc.Dispatcher, w rpc.Sender) error {
	params := mcp.AnnounceParams{
		ServerInfo:      s.info,
		ProtocolVersion: s.versionFor(""),
		Features:        featuresOf(d),
	}
	return d.Announce(ctx, w, string(mcp.AnnounceMethod), params)
}

func featuresOf(d *rpc.Dispatcher) mcp.Features {
	var f mcp.Features
	res := mcp.ResourceFeatures{
		List:      d.Has(string(mcp.ResourcesListMethod)),
		Read:      d.Has(string(mcp.ResourcesReadMethod)),
		Templates: d.Has(string(mcp.ResourcesTemplatesListMethod)),
	}
	if res.List || res.Read || res.Templates {
		f.Resources = &res
	}
	tools := mcp.ToolFeatures{
		List: d.Has(string(mcp.ToolsListMethod)),
		Call: d.Has(string(mcp.ToolsCallMethod)),
	}
	if tools.List || tools.Call {
		f.Tools = &tools
	}
	return f
}

func (s *Server) versionFor(client string) string {
	if s.protocolVersion != "" {
		return s.protocolVersion
	}
	if mcp.IsSupportedProtocolVersion(client) {
		return client
	}
	return mcp.LatestProtocolVersion
}

func (s *Server) capabilities() mcp.ServerCapabilities {
	var caps mcp.ServerCapabilities
	if s.resources != nil {
		caps.Resources = &mcp.ResourcesFlags{}
	}
	if s.tools != nil {
		caps.Tools = &mcp.ToolsFlags{}
	}
	if s.logging != nil {
		caps.Logging = &struct{}{}
	}
	return caps
}

func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage) (any, error) {
	var req mcp.InitializeRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "mcp.initialize",
		slog.String("client", req.ClientInfo.Name),
		slog.String("client_version", req.ClientInfo.Version),
		slog.String("protocol", req.ProtocolVersion),
	)

	templates := s.templates
	if templates == nil {
		templates = []mcp.ResourceTemplate{}
	}
	return &mcp.InitializeResult{
		ProtocolVersion:   s.versionFor(req.ProtocolVersion),
		Capabilities:      s.capabilities(),
		ServerInfo:        s.info,
		Instructions:      s.instructions,
		ResourceTemplates: templates,
	}, nil
}

func (s *Server) handleEmpty(context.Context, json.RawMessage) (any, error) {
	return &mcp.EmptyResult{}, nil
}

func (s *Server) handleCancelled(ctx context.Context, params json.RawMessage) (any, error) {
	var n mcp.CancelledNotification
	if err := decodeParams(params, &n); err != nil {
		return nil, err
	}
	var id jsonrpc.RequestID
	if err := json.Unmarshal(n.RequestID, &id); err != nil || id.IsNil() {
		return nil, rpc.InvalidParams("invalid requestId")
	}
	if s.d != nil && s.d.Cancel(&id) {
		s.log.DebugContext(ctx, "mcp.request.cancelled", slog.String("request_id", id.String()), slog.String("reason", n.Reason))
	}
	return nil, nil
}

func (s *Server) handleResourcesList(ctx context.Context, params json.RawMessage) (any, error) {
	var req mcp.ListResourcesRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	page, err := s.resources.ListResources(ctx, cursorOf(req.PaginatedRequest))
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return &mcp.ListResourcesResult{
		Resources:       page.Items,
		PaginatedResult: paginated(page.NextCursor),
	}, nil
}

func (s *Server) handleResourceTemplatesList(ctx context.Context, params json.RawMessage) (any, error) {
	var req mcp.ListResourceTemplatesRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	page, err := s.resources.ListResourceTemplates(ctx, cursorOf(req.PaginatedRequest))
	if err != nil {
		return nil, fmt.Errorf("list resource templates: %w", err)
	}
	return &mcp.ListResourceTemplatesResult{
		ResourceTemplates: page.Items,
		PaginatedResult:   paginated(page.NextCursor),
	}, nil
}

func (s *Server) handleResourcesRead(ctx context.Context, params json.RawMessage) (any, error) {
	var req mcp.ReadResourceRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	if req.URI == "" {
		return nil, rpc.InvalidParams("missing uri")
	}
	contents, err := s.resources.ReadResource(ctx, req.URI)
	if errors.Is(err, ErrResourceNotFound) {
		return nil, rpc.InvalidParams("resource not found: %s", req.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("read resource %s: %w", req.URI, err)
	}
	if contents == nil {
		contents = []mcp.ResourceContents{}
	}
	return &mcp.ReadResourceResult{Contents: contents}, nil
}

func (s *Server) handleToolsList(ctx context.Context, params json.RawMessage) (any, error) {
	var req mcp.ListToolsRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	page, err := s.tools.ListTools(ctx, cursorOf(req.PaginatedRequest))
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	return &mcp.ListToolsResult{
		Tools:           page.Items,
		PaginatedResult: paginated(page.NextCursor),
	}, nil
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (any, error) {
	var req mcp.CallToolRequestReceived
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, rpc.InvalidParams("missing tool name")
	}
	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: req.Name})
	if req.Meta != nil && req.Meta.ProgressToken != nil {
		if w, ok := rpc.SenderFrom(ctx); ok {
			ctx = WithProgressReporter(ctx, &notifyProgress{w: w, token: req.Meta.ProgressToken})
		}
	}

	res, err := s.tools.CallTool(ctx, &req)
	if errors.Is(err, ErrToolNotFound) {
		return nil, rpc.InvalidParams("unknown tool: %s", req.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("call tool %s: %w", req.Name, err)
	}
	if res == nil {
		res = &mcp.CallToolResult{Content: []mcp.ContentBlock{}}
	}
	if res.IsError {
		s.log.InfoContext(ctx, "mcp.tool.error_result")
	}
	return res, nil
}

func (s *Server) handleSetLevel(ctx context.Context, params json.RawMessage) (any, error) {
	var req mcp.SetLevelRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	if !mcp.IsValidLoggingLevel(req.Level) {
		return nil, rpc.InvalidParams("invalid logging level: %q", req.Level)
	}
	if err := s.logging.SetLevel(ctx, req.Level); err != nil {
		return nil, fmt.Errorf("set level: %w", err)
	}
	return &mcp.EmptyResult{}, nil
}

func decodeParams(params json.RawMessage, v any) error {
	if err := json.Unmarshal(params, v); err != nil {
		return rpc.InvalidParams("invalid params: %v", err)
	}
	return nil
}

func cursorOf(req mcp.PaginatedRequest) *string {
	if req.Cursor == "" {
		return nil
	}
	c := req.Cursor
	return &c
}

func paginated(next *string) mcp.PaginatedResult {
	if next == nil {
		return mcp.PaginatedResult{}
	}
	return mcp.PaginatedResult{NextCursor: *next}
}
