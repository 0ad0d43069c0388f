package mcpservice

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ggoodman/mcp-postgres/mcp"
)

// ErrInvalidLoggingLevel is returned by SetLevel for a level outside the
// protocol's set.
var ErrInvalidLoggingLevel = errors.New("invalid logging level")

// slogLevels folds the eight protocol levels onto slog's four.
var slogLevels = map[mcp.LoggingLevel]slog.Level{
	mcp.LoggingLevelDebug:     slog.LevelDebug,
	mcp.LoggingLevelInfo:      slog.LevelInfo,
	mcp.LoggingLevelNotice:    slog.LevelInfo,
	mcp.LoggingLevelWarning:   slog.LevelWarn,
	mcp.LoggingLevelError:     slog.LevelError,
	mcp.LoggingLevelCritical:  slog.LevelError,
	mcp.LoggingLevelAlert:     slog.LevelError,
	mcp.LoggingLevelEmergency: slog.LevelError,
}

// NewSlogLevelVarLogging returns a LoggingCapability that moves lv. Every
// handler built with lv as its Leveler follows the client's requested level.
func NewSlogLevelVarLogging(lv *slog.LevelVar) LoggingCapability {
	return levelVarLogging{lv: lv}
}

type levelVarLogging struct{ lv *slog.LevelVar }

func (l levelVarLogging) SetLevel(_ context.Context, level mcp.LoggingLevel) error {
	sl, ok := slogLevels[level]
	if !ok {
		return ErrInvalidLoggingLevel
	}
	if l.lv != nil {
		l.lv.Set(sl)
	}
	return nil
}
