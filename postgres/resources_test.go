package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ggoodman/mcp-postgres/mcpservice"
	"github.com/ggoodman/mcp-postgres/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBase = "postgres://app@db.local:5432/shop"

func TestResources_List(t *testing.T) {
	r := NewResources(newFakeStore(), testBase+"/")

	page, err := r.ListResources(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, testBase+"/orders/schema", page.Items[0].URI)
	assert.Equal(t, `"orders" database schema`, page.Items[0].Name)
	assert.Equal(t, "application/json", page.Items[0].MimeType)
	assert.Nil(t, page.NextCursor)
}

func TestResources_ListPaginates(t *testing.T) {
	r := NewResources(newFakeStore(), testBase, WithPageSize(1))

	page, err := r.ListResources(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.NotNil(t, page.NextCursor)

	page, err = r.ListResources(context.Background(), page.NextCursor)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, testBase+"/users/schema", page.Items[0].URI)
}

func TestResources_Templates(t *testing.T) {
	r := NewResources(newFakeStore(), testBase)
	page, err := r.ListResourceTemplates(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, testBase+"/{table}/schema", page.Items[0].URITemplate)
	assert.Equal(t, r.Templates(), page.Items)
}

func TestResources_ReadSchema(t *testing.T) {
	r := NewResources(newFakeStore(), testBase)

	contents, err := r.ReadResource(context.Background(), testBase+"/users/schema")
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, "application/json", contents[0].MimeType)

	var cols []map[string]string
	require.NoError(t, json.Unmarshal([]byte(contents[0].Text), &cols))
	assert.Equal(t, []map[string]string{
		{"column_name": "id", "data_type": "integer"},
		{"column_name": "email", "data_type": "text"},
	}, cols)
}

func TestResources_ReadNotFound(t *testing.T) {
	r := NewResources(newFakeStore(), testBase)

	for _, uri := range []string{
		testBase + "/missing/schema",
		testBase + "/users",
		testBase + "/a/b/schema",
		"postgres://elsewhere/db/users/schema",
		testBase + "//schema",
	} {
		_, err := r.ReadResource(context.Background(), uri)
		assert.ErrorIs(t, err, mcpservice.ErrResourceNotFound, uri)
	}
}

func TestResources_CachedReadsSkipStore(t *testing.T) {
	store := newFakeStore()
	cache, err := memory.New(16)
	require.NoError(t, err)
	defer cache.Close()
	r := NewResources(store, testBase, WithCache(cache, time.Minute))

	first, err := r.ReadResource(context.Background(), testBase+"/orders/schema")
	require.NoError(t, err)
	second, err := r.ReadResource(context.Background(), testBase+"/orders/schema")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.calls())
}

func TestResources_UncachedReadsHitStore(t *testing.T) {
	store := newFakeStore()
	r := NewResources(store, testBase)

	for range 3 {
		_, err := r.ReadResource(context.Background(), testBase+"/orders/schema")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, store.calls())
}
