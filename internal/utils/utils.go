package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to write JSON", "error", err)
	}
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"message": msg,
	})
}

// WriteBody writes a pre-rendered body. Render into a buffer first so a
// template failure can still become a JSON error.
func WriteBody(w http.ResponseWriter, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Error("failed to write response", "content_type", contentType, "error", err)
	}
}

func WriteHTML(w http.ResponseWriter, status int, body []byte) {
	WriteBody(w, status, "text/html; charset=utf-8", body)
}
