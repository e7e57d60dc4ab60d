// Package logger builds the process slog.Logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"

	"contactlink/internal/platform/config"
)

// New returns a logger writing to w. The json format goes through a zap core;
// text uses slog's own handler for readable local output. The returned func
// flushes buffered entries and should run before exit.
func New(cfg config.LogConfig, w io.Writer) (*slog.Logger, func() error, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("parse log level: %w", err)
	}

	if cfg.Format == "text" {
		handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel(level)})
		return slog.New(handler), func() error { return nil }, nil
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	ws := zapcore.AddSync(w)
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), ws, level)
	return slog.New(zapslog.NewHandler(core)), ws.Sync, nil
}

func slogLevel(l zapcore.Level) slog.Level {
	switch {
	case l <= zapcore.DebugLevel:
		return slog.LevelDebug
	case l == zapcore.InfoLevel:
		return slog.LevelInfo
	case l == zapcore.WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
