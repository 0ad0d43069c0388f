// Package postgres exposes a PostgreSQL database to MCP clients: one schema
// resource per table and a read-only query tool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Column describes one column of a table.
type Column struct {
	Name     string `json:"column_name"`
	DataType string `json:"data_type"`
}

// Store is the subset of database access the MCP surface needs.
type Store interface {
	Tables(ctx context.Context) ([]string, error)
	TableSchema(ctx context.Context, table string) ([]Column, error)
	Query(ctx context.Context, sql string) ([]map[string]any, error)
}

// ErrTableNotFound is returned by TableSchema for a table with no visible
// columns in the public schema.
var ErrTableNotFound = errors.New("table not found")

// DB is a Store backed by a pgx connection pool.
type DB struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// Option configures a DB.
type Option func(*DB)

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) {
		if l != nil {
			db.log = l
		}
	}
}

// Open connects a pool to databaseURL and verifies the server is reachable.
func Open(ctx context.Context, databaseURL string, opts ...Option) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := &DB{pool: pool, log: slog.Default()}
	for _, opt := range opts {
		opt(db)
	}
	db.log.InfoContext(ctx, "postgres.connected",
		slog.String("host", cfg.ConnConfig.Host),
		slog.String("database", cfg.ConnConfig.Database),
	)
	return db, nil
}

// Close releases every pooled connection.
func (db *DB) Close() {
	db.pool.Close()
}

const tablesSQL = `SELECT table_name FROM information_schema.tables
WHERE table_schema = 'public' ORDER BY table_name`

// Tables lists the tables of the public schema.
func (db *DB) Tables(ctx context.Context) ([]string, error) {
	rows, err := db.pool.Query(ctx, tablesSQL)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

const columnsSQL = `SELECT column_name, data_type FROM information_schema.columns
WHERE table_schema = 'public' AND table_name = $1 ORDER BY ordinal_position`

// TableSchema lists the columns of table in declaration order.
func (db *DB) TableSchema(ctx context.Context, table string) ([]Column, error) {
	rows, err := db.pool.Query(ctx, columnsSQL, table)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	cols, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Column])
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return cols, nil
}

// Query runs sql inside a read-only transaction that is always rolled back,
// returning each row as a column name to value map.
func (db *DB) Query(ctx context.Context, sql string) ([]map[string]any, error) {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer func() {
		if rerr := tx.Rollback(context.WithoutCancel(ctx)); rerr != nil && !errors.Is(rerr, pgx.ErrTxClosed) {
			db.log.WarnContext(ctx, "postgres.rollback_failed", slog.String("err", rerr.Error()))
		}
	}()

	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []map[string]any{}
	}
	return out, nil
}

// ResourceBase derives the base URI for schema resources from a database
// URL: the scheme is normalized to postgres and the password removed.
func ResourceBase(databaseURL string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("database url %q has no host", u.Redacted())
	}
	u.Scheme = "postgres"
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimSuffix(u.String(), "/"), nil
}

var _ Store = (*DB)(nil)
