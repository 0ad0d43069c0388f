// Command mcp-postgres serves read-only access to a PostgreSQL database over
// the MCP stdio transport.
//
// The database URL comes from the first argument or DATABASE_URL. Logs go to
// stderr; stdout carries the protocol.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/ggoodman/mcp-postgres/internal/config"
	"github.com/ggoodman/mcp-postgres/internal/logctx"
	"github.com/ggoodman/mcp-postgres/mcp"
	"github.com/ggoodman/mcp-postgres/mcpservice"
	"github.com/ggoodman/mcp-postgres/postgres"
	"github.com/ggoodman/mcp-postgres/rpc"
	"github.com/ggoodman/mcp-postgres/stdio"
	"github.com/ggoodman/mcp-postgres/storage"
	"github.com/ggoodman/mcp-postgres/storage/memory"
	"github.com/ggoodman/mcp-postgres/storage/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-postgres: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level := new(slog.LevelVar)
	level.Set(cfg.LogLevel)
	log := newLogger(cfg.LogFormat, level)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{
		SessionID:  uuid.NewString(),
		ServerName: cfg.ServerName,
	})

	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.WithLogger(log))
	if err != nil {
		return err
	}
	defer db.Close()

	cache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := cache.Close(); err != nil {
			log.WarnContext(ctx, "cache.close.failed", slog.String("err", err.Error()))
		}
	}()

	base, err := postgres.ResourceBase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	resources := postgres.NewResources(db, base,
		postgres.WithCache(cache, cfg.CacheTTL),
		postgres.WithPageSize(cfg.PageSize),
		postgres.WithResourcesLogger(log),
	)
	tools := mcpservice.NewToolsContainer(postgres.QueryTool(db))
	tools.SetPageSize(cfg.PageSize)

	middleware := []rpc.Middleware{rpc.LoggingMiddleware(log)}
	if cfg.QueryRateLimit > 0 {
		middleware = append(middleware, rpc.RateLimitMiddleware(cfg.QueryRateLimit, cfg.QueryRateBurst, string(mcp.ToolsCallMethod)))
	}
	d := rpc.New(
		rpc.WithLogger(log),
		rpc.WithMiddleware(middleware...),
		rpc.WithHandlerTimeout(cfg.HandlerTimeout),
	)

	srv := mcpservice.NewServer(
		mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: cfg.ServerName, Version: cfg.ServerVersion}),
		mcpservice.WithResourcesCapability(resources),
		mcpservice.WithResourceTemplates(resources.Templates()...),
		mcpservice.WithToolsCapability(tools),
		mcpservice.WithLoggingCapability(mcpservice.NewSlogLevelVarLogging(level)),
		mcpservice.WithLogger(log),
	)
	srv.Register(d)

	t := stdio.NewTransport(d,
		stdio.WithMaxLineBytes(cfg.MaxLineBytes),
		stdio.WithLogger(log),
	)
	if err := srv.Announce(ctx, d, t); err != nil {
		return fmt.Errorf("announce: %w", err)
	}

	log.InfoContext(ctx, "server.ready", slog.String("database", base))
	err = t.Serve(ctx)
	// Handlers must finish before the pool and cache close.
	d.Wait()
	if errors.Is(err, context.Canceled) {
		log.InfoContext(ctx, "server.shutdown")
		return nil
	}
	return err
}

func newLogger(format string, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(logctx.NewHandler(h))
}

func openCache(ctx context.Context, cfg *config.Config) (storage.Cache, error) {
	switch cfg.CacheBackend {
	case config.CacheRedis:
		c, err := redis.Open(ctx, cfg.RedisURL, redis.DefaultKeyPrefix)
		if err != nil {
			return nil, err
		}
		if cfg.CachePurge {
			if err := c.Purge(ctx); err != nil {
				_ = c.Close()
				return nil, fmt.Errorf("purge redis cache: %w", err)
			}
		}
		return c, nil
	case config.CacheNone:
		return storage.Nop{}, nil
	default:
		return memory.New(cfg.CacheSize)
	}
}
