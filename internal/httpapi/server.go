package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"co2dash/internal/config"
)

// NewServer wraps handler with request logging. WriteTimeout is left unset
// because forecast fitting runs on the request goroutine.
func NewServer(cfg config.Config, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           requestLogger(handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
