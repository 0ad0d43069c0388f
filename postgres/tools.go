package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ggoodman/mcp-postgres/mcpservice"
	"github.com/jackc/pgx/v5/pgconn"
)

// QueryArgs is the input of the query tool.
type QueryArgs struct {
	SQL string `json:"sql" jsonschema:"description=SQL statement to run in a read-only transaction"`
}

// QueryToolName is the name the query tool is listed under.
const QueryToolName = "query"

// QueryTool returns the tool running read-only SQL against store. Errors
// reported by the database server are returned to the caller as tool
// errors; any other failure fails the call.
func QueryTool(store Store) mcpservice.StaticTool {
	return mcpservice.NewTool[QueryArgs](QueryToolName, func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[QueryArgs]) error {
		sql := strings.TrimSpace(r.Args().SQL)
		if sql == "" {
			w.SetError(true)
			return w.AppendText("sql must not be empty")
		}

		rows, err := store.Query(ctx, sql)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			w.SetError(true)
			return w.AppendText(fmt.Sprintf("%s (SQLSTATE %s)", pgErr.Message, pgErr.Code))
		}
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}

		text, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("encode rows: %w", err)
		}
		w.SetMeta("rowCount", len(rows))
		w.SetStructured(map[string]any{"rows": rows})
		return w.AppendText(string(text))
	},
		mcpservice.WithToolDescription("Run a read-only SQL query"),
		mcpservice.WithToolReadOnly(),
	)
}
