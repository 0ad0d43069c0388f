package logctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_AddsGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewJSONHandler(&buf, nil))).With("component", "test")

	ctx := WithSessionData(context.Background(), &SessionData{SessionID: "s-1", ServerName: "pg"})
	ctx = WithRPCMessage(ctx, &RPCMessage{Method: "tools/call", ID: "7", Type: "request"})
	ctx = WithToolCallData(ctx, &ToolCallData{ToolName: "query"})
	logger.InfoContext(ctx, "hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "test", rec["component"])
	assert.Equal(t, map[string]any{"id": "s-1", "server": "pg"}, rec["sess"])
	assert.Equal(t, map[string]any{"method": "tools/call", "id": "7", "type": "request"}, rec["rpc"])
	assert.Equal(t, map[string]any{"name": "query"}, rec["tool"])
}

func TestHandler_NoContextData(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewJSONHandler(&buf, nil)))
	logger.Info("plain")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.NotContains(t, rec, "rpc")
	assert.NotContains(t, rec, "sess")
}
