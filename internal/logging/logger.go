package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"co2dash/internal/config"
)

func New(cfg config.Config, version string, appName string) *slog.Logger {
	return newLogger(os.Stdout, cfg, version, appName)
}

func newLogger(w io.Writer, cfg config.Config, version string, appName string) *slog.Logger {
	if version == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
	)
}

// SafeClose closes a resource and logs any error. Used on deferred paths where
// the close error cannot be returned to the caller.
func SafeClose(closer io.Closer, logger *slog.Logger, operation string) {
	if closer == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := closer.Close(); err != nil {
		logger.Error("failed to close resource",
			"operation", operation,
			"error", err,
		)
	}
}
