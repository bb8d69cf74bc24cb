package main

import (
	"log/slog"
	"os"
	"strings"
)

var mainLogger *slog.Logger

var logLevelMap = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// initLogging sets up the structured logger the store reports through.
// CLI output goes to stdout; logs go to stderr so they can be redirected
// independently.
func initLogging(level string) error {
	parsed, ok := logLevelMap[strings.ToLower(level)]
	if !ok {
		parsed = slog.LevelWarn
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parsed})
	mainLogger = slog.New(handler)
	slog.SetDefault(mainLogger)
	return nil
}
