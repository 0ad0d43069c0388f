package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ggoodman/mcp-postgres/mcp"
	"github.com/ggoodman/mcp-postgres/mcpservice"
	"github.com/ggoodman/mcp-postgres/storage"
)

const (
	schemaPath     = "schema"
	schemaMimeType = "application/json"
)

// Resources exposes one schema resource per table at <base>/<table>/schema.
// Schema reads go through a storage.Cache.
type Resources struct {
	store    Store
	base     string
	cache    storage.Cache
	ttl      time.Duration
	pageSize int
	log      *slog.Logger
}

// ResourcesOption configures Resources.
type ResourcesOption func(*Resources)

// WithCache caches schema documents in c for ttl. A zero ttl caches without
// expiry.
func WithCache(c storage.Cache, ttl time.Duration) ResourcesOption {
	return func(r *Resources) {
		if c != nil {
			r.cache = c
			r.ttl = ttl
		}
	}
}

// WithPageSize sets how many resources are listed per page.
func WithPageSize(n int) ResourcesOption {
	return func(r *Resources) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// WithResourcesLogger overrides the logger.
func WithResourcesLogger(l *slog.Logger) ResourcesOption {
	return func(r *Resources) {
		if l != nil {
			r.log = l
		}
	}
}

// NewResources builds the schema resources of store rooted at base.
func NewResources(store Store, base string, opts ...ResourcesOption) *Resources {
	r := &Resources{
		store: store,
		base:  strings.TrimSuffix(base, "/"),
		cache: storage.Nop{},
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Templates returns the URI template describing every schema resource.
func (r *Resources) Templates() []mcp.ResourceTemplate {
	return []mcp.ResourceTemplate{{
		URITemplate: r.base + "/{table}/" + schemaPath,
		Name:        "table schema",
		Description: "Column names and data types of a table in the public schema",
		MimeType:    schemaMimeType,
	}}
}

func (r *Resources) schemaURI(table string) string {
	return r.base + "/" + table + "/" + schemaPath
}

// tableFromURI extracts the table name from a schema resource URI.
func (r *Resources) tableFromURI(uri string) (string, bool) {
	rest, ok := strings.CutPrefix(uri, r.base+"/")
	if !ok {
		return "", false
	}
	table, ok := strings.CutSuffix(rest, "/"+schemaPath)
	if !ok || table == "" || strings.Contains(table, "/") {
		return "", false
	}
	return table, true
}

// ListResources implements mcpservice.ResourcesCapability.
func (r *Resources) ListResources(ctx context.Context, cursor *string) (mcpservice.Page[mcp.Resource], error) {
	tables, err := r.store.Tables(ctx)
	if err != nil {
		return mcpservice.Page[mcp.Resource]{}, err
	}
	all := make([]mcp.Resource, 0, len(tables))
	for _, t := range tables {
		all = append(all, mcp.Resource{
			URI:      r.schemaURI(t),
			Name:     fmt.Sprintf("%q database schema", t),
			MimeType: schemaMimeType,
		})
	}
	return mcpservice.Paginate(all, cursor, r.pageSize), nil
}

// ListResourceTemplates implements mcpservice.ResourcesCapability.
func (r *Resources) ListResourceTemplates(_ context.Context, cursor *string) (mcpservice.Page[mcp.ResourceTemplate], error) {
	return mcpservice.Paginate(r.Templates(), cursor, r.pageSize), nil
}

// ReadResource implements mcpservice.ResourcesCapability.
func (r *Resources) ReadResource(ctx context.Context, uri string) ([]mcp.ResourceContents, error) {
	table, ok := r.tableFromURI(uri)
	if !ok {
		return nil, fmt.Errorf("%w: %s", mcpservice.ErrResourceNotFound, uri)
	}
	doc, err := r.schemaDocument(ctx, table)
	if errors.Is(err, ErrTableNotFound) {
		return nil, fmt.Errorf("%w: %s", mcpservice.ErrResourceNotFound, uri)
	}
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{{URI: uri, MimeType: schemaMimeType, Text: string(doc)}}, nil
}

func (r *Resources) schemaDocument(ctx context.Context, table string) ([]byte, error) {
	key := "schema:" + table
	doc, err := r.cache.Get(ctx, key)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		r.log.WarnContext(ctx, "postgres.cache.get_failed", slog.String("key", key), slog.String("err", err.Error()))
	}

	cols, err := r.store.TableSchema(ctx, table)
	if err != nil {
		return nil, err
	}
	doc, err = json.MarshalIndent(cols, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode schema of %s: %w", table, err)
	}
	if err := r.cache.Set(ctx, key, doc, r.ttl); err != nil {
		r.log.WarnContext(ctx, "postgres.cache.set_failed", slog.String("key", key), slog.String("err", err.Error()))
	}
	return doc, nil
}

var _ mcpservice.ResourcesCapability = (*Resources)(nil)
