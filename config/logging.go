package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace is a custom slog level for per-cycle pipeline tracing, one
// step more verbose than Debug, the same sub-Info level scheme the
// teacher defines for its own waveform/trace logging (core/util.go:
// LevelTrace, LevelWaveform).
const LevelTrace slog.Level = slog.LevelDebug - 4

var logLevels = map[string]slog.Level{
	"trace": LevelTrace,
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Trace logs msg at LevelTrace against the default logger, mirroring the
// teacher's own package-level core.Trace helper.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}

// NewLogger builds the slog.Logger spec §6's logfile/loglevel keys
// configure: LogFile empty routes to stderr (where every other
// diagnostic in this process already goes); LogLevel names one of
// trace/debug/info/warn/error and defaults to info on an unrecognized
// value rather than failing the run over a typo. The returned closer
// must be called once logging is done; it is a no-op when LogFile is
// empty.
func NewLogger(cfg *Config) (*slog.Logger, func() error, error) {
	w := os.Stderr
	closer := func() error { return nil }
	if cfg.LogFile != "" {
		f, err := os.Create(cfg.LogFile)
		if err != nil {
			return nil, nil, fmt.Errorf("config: opening logfile: %w", err)
		}
		w = f
		closer = f.Close
	}

	level, ok := logLevels[strings.ToLower(cfg.LogLevel)]
	if !ok {
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closer, nil
}
