package log

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// LevelFatal is the severity of a failure that terminates the process.
// slog has no built-in level above Error.
const LevelFatal = slog.LevelError + 4

// ParseLevel converts a --log-level value into a slog level.
// Accepted values are debug, info, warn, error and fatal (case-insensitive).
func ParseLevel(s string) (slog.Level, error) {
	if strings.EqualFold(strings.TrimSpace(s), "fatal") {
		return LevelFatal, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// Fatal logs msg at LevelFatal. It does not exit; the caller returns the
// error up to main, which owns the exit code.
func Fatal(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	logger.Log(ctx, LevelFatal, msg, args...)
}

// replaceLevelName renders LevelFatal as "FATAL" instead of "ERROR+4".
func replaceLevelName(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok && level >= LevelFatal {
		return slog.String(slog.LevelKey, "FATAL")
	}
	return a
}
