package httpapi

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"co2dash/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestServer(t *testing.T, db *sql.DB, logger *slog.Logger) *httptest.Server {
	t.Helper()

	srv := NewServer(config.Config{HTTPAddr: ":0"}, NewMux(db, discardLogger()), logger)
	ts := httptest.NewServer(srv.Handler)

	t.Cleanup(ts.Close)
	return ts
}

func mustGetJSON[T any](t *testing.T, client *http.Client, url string, out *T) *http.Response {
	t.Helper()

	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, openTestDB(t), discardLogger())

	var body map[string]string
	resp := mustGetJSON(t, ts.Client(), ts.URL+"/healthz", &body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	if body["status"] != "ok" {
		t.Fatalf("body.status=%q want=%q", body["status"], "ok")
	}
}

func TestHealthz_closedDatabase(t *testing.T) {
	db := openTestDB(t)
	ts := newTestServer(t, db, discardLogger())
	_ = db.Close()

	var body map[string]string
	resp := mustGetJSON(t, ts.Client(), ts.URL+"/healthz", &body)

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusInternalServerError)
	}
	if body["message"] != "failed to check database connectivity" {
		t.Fatalf("body.message=%q", body["message"])
	}
}

func TestHealthz_methodNotAllowed(t *testing.T) {
	ts := newTestServer(t, openTestDB(t), discardLogger())

	resp, err := ts.Client().Post(ts.URL+"/healthz", "text/plain", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestRequestLogger(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	h := requestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), logger)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/predict?country_id=3", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status=%d want=%d", rec.Code, http.StatusTeapot)
	}
	out := logs.String()
	for _, want := range []string{"msg=\"http request\"", "method=GET", "path=/predict", "status=418", "duration_ms="} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}

func TestRequestLogger_defaultStatus(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	h := requestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}), logger)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(logs.String(), "status=200") {
		t.Errorf("log %q missing status=200", logs.String())
	}
}

func TestNewServer(t *testing.T) {
	srv := NewServer(config.Config{HTTPAddr: "127.0.0.1:9999"}, http.NewServeMux(), discardLogger())
	if srv.Addr != "127.0.0.1:9999" {
		t.Errorf("Addr=%q", srv.Addr)
	}
	if srv.ReadHeaderTimeout == 0 {
		t.Error("ReadHeaderTimeout unset")
	}
}
