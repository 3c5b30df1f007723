package httpapi

import (
	"database/sql"
	"log/slog"
	"net/http"

	"co2dash/internal/utils"
)

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewHealthchecker(db *sql.DB, logger *slog.Logger) healthchecker {
	return &healthcheckerImpl{db: db, logger: logger}
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	var ok int
	if err := h.db.QueryRowContext(r.Context(), `SELECT 1`).Scan(&ok); err != nil {
		h.logger.Error("failed to check database connectivity", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to check database connectivity")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func registerHealthcheck(mux *http.ServeMux, db *sql.DB, logger *slog.Logger) {
	healthchecker := NewHealthchecker(db, logger)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
