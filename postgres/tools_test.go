package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ggoodman/mcp-postgres/mcp"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callQuery(t *testing.T, store Store, args string) (*mcp.CallToolResult, error) {
	t.Helper()
	tool := QueryTool(store)
	return tool.Handler(context.Background(), &mcp.CallToolRequestReceived{
		Name:      QueryToolName,
		Arguments: json.RawMessage(args),
	})
}

func TestQueryTool_Descriptor(t *testing.T) {
	desc := QueryTool(newFakeStore()).Descriptor
	assert.Equal(t, "query", desc.Name)
	assert.Equal(t, []string{"sql"}, desc.InputSchema.Required)
	assert.Equal(t, "string", desc.InputSchema.Properties["sql"].Type)
	require.NotNil(t, desc.Annotations)
	assert.True(t, desc.Annotations.ReadOnlyHint)
}

func TestQueryTool_ReturnsRowsAsJSON(t *testing.T) {
	store := newFakeStore()
	store.queryRows = []map[string]any{{"id": 1, "email": "a@example.com"}}

	res, err := callQuery(t, store, `{"sql":"  SELECT id, email FROM users  "}`)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "SELECT id, email FROM users", store.lastSQL)
	require.Len(t, res.Content, 1)
	assert.JSONEq(t, `[{"id":1,"email":"a@example.com"}]`, res.Content[0].Text)
	assert.Equal(t, 1, res.Meta["rowCount"])
	assert.Equal(t, map[string]any{"rows": store.queryRows}, res.StructuredContent)
}

func TestQueryTool_EmptySQL(t *testing.T) {
	res, err := callQuery(t, newFakeStore(), `{"sql":"   "}`)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestQueryTool_DatabaseErrorIsToolError(t *testing.T) {
	store := newFakeStore()
	store.queryErr = &pgconn.PgError{Code: "25006", Message: "cannot execute DELETE in a read-only transaction"}

	res, err := callQuery(t, store, `{"sql":"DELETE FROM users"}`)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "read-only transaction")
	assert.Contains(t, res.Content[0].Text, "25006")
}

func TestQueryTool_ConnectionErrorFailsCall(t *testing.T) {
	store := newFakeStore()
	store.queryErr = errors.New("dial tcp: connection refused")

	_, err := callQuery(t, store, `{"sql":"SELECT 1"}`)
	assert.ErrorContains(t, err, "connection refused")
}

func TestQueryTool_RejectsUnknownArguments(t *testing.T) {
	res, err := callQuery(t, newFakeStore(), `{"sql":"SELECT 1","limit":5}`)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
