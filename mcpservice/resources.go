package mcpservice

import (
	"context"
	"fmt"

	"github.com/ggoodman/mcp-postgres/mcp"
)

type (
	ListResourcesFunc         func(ctx context.Context, cursor *string) (Page[mcp.Resource], error)
	ListResourceTemplatesFunc func(ctx context.Context, cursor *string) (Page[mcp.ResourceTemplate], error)
	ReadResourceFunc          func(ctx context.Context, uri string) ([]mcp.ResourceContents, error)
)

type DynamicResourcesOption func(*dynamicResources)

type dynamicResources struct {
	listFn    ListResourcesFunc
	listTplFn ListResourceTemplatesFunc
	readFn    ReadResourceFunc
}

// NewDynamicResources builds a ResourcesCapability from functions. A missing
// list function yields empty pages; a missing read function reports every URI
// as not found.
func NewDynamicResources(opts ...DynamicResourcesOption) ResourcesCapability {
	dr := &dynamicResources{}
	for _, opt := range opts {
		opt(dr)
	}
	return dr
}

func WithResourcesListFunc(fn ListResourcesFunc) DynamicResourcesOption {
	return func(d *dynamicResources) { d.listFn = fn }
}
func WithResourcesListTemplatesFunc(fn ListResourceTemplatesFunc) DynamicResourcesOption {
	return func(d *dynamicResources) { d.listTplFn = fn }
}
func WithResourcesReadFunc(fn ReadResourceFunc) DynamicResourcesOption {
	return func(d *dynamicResources) { d.readFn = fn }
}

func (d *dynamicResources) ListResources(ctx context.Context, cursor *string) (Page[mcp.Resource], error) {
	if d.listFn == nil {
		return NewPage[mcp.Resource](nil), nil
	}
	return d.listFn(ctx, cursor)
}
func (d *dynamicResources) ListResourceTemplates(ctx context.Context, cursor *string) (Page[mcp.ResourceTemplate], error) {
	if d.listTplFn == nil {
		return NewPage[mcp.ResourceTemplate](nil), nil
	}
	return d.listTplFn(ctx, cursor)
}
func (d *dynamicResources) ReadResource(ctx context.Context, uri string) ([]mcp.ResourceContents, error) {
	if d.readFn == nil {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, uri)
	}
	return d.readFn(ctx, uri)
}
