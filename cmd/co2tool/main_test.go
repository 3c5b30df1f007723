package main

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"co2dash/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		SQLiteDriver:       "sqlite3",
		SQLitePath:         filepath.Join(t.TempDir(), "co2.db"),
		SQLiteMaxOpenConns: 1,
		SQLiteMaxIdleConns: 1,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_argumentErrors(t *testing.T) {
	tests := map[string][]string{
		"unknown command":  {"seed"},
		"migrate with arg": {"migrate", "x"},
		"import no path":   {"import"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			if err := run(context.Background(), testConfig(t), discardLogger(), args, io.Discard); err == nil {
				t.Fatalf("run(%v) err = nil; want error", args)
			}
		})
	}
}

func TestRun_migrate(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer
	if err := run(context.Background(), cfg, discardLogger(), []string{"migrate"}, &out); err != nil {
		t.Fatalf("run(migrate) err = %v", err)
	}
	if !strings.Contains(out.String(), "migrations applied") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRun_import(t *testing.T) {
	cfg := testConfig(t)
	csvPath := filepath.Join(t.TempDir(), "co2.csv")
	data := "country,surface_km2,year,co2\nFrance,551695,1990,400\nFrance,551695,1991,410\nChad,1284000,1990,\n"
	if err := os.WriteFile(csvPath, []byte(data), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	var out bytes.Buffer
	if err := run(context.Background(), cfg, discardLogger(), []string{"import", csvPath}, &out); err != nil {
		t.Fatalf("run(import) err = %v", err)
	}
	if got, want := out.String(), "imported 3 rows (2 countries, 2 years)\n"; got != want {
		t.Errorf("output = %q; want %q", got, want)
	}

	conn, err := sql.Open("sqlite3", cfg.SQLitePath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM emissions`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("emissions = %d; want 3", n)
	}
}

func TestRun_importMissingFile(t *testing.T) {
	err := run(context.Background(), testConfig(t), discardLogger(), []string{"import", "/nonexistent/co2.csv"}, io.Discard)
	if err == nil {
		t.Fatal("run(import missing) err = nil; want error")
	}
}
