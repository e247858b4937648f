// Package logging builds the process logger from infra config.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"billtool/internal/domain"
)

// ParseLevel maps debug, info, warn(ing) and error to slog levels. Empty
// means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", s)
}

// New returns a text or JSON logger writing to w. An unknown level falls back
// to info and is reported once through the logger itself.
func New(infra domain.InfraConfig, w io.Writer) *slog.Logger {
	level, err := ParseLevel(infra.LogLevel)
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(infra.LogFormat, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(h)
	if err != nil {
		logger.Warn("invalid log level, using info", "error", err)
	}
	return logger
}
