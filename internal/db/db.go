package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"co2dash/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

func Open(cfg config.Config, logger *slog.Logger) (*sql.DB, error) {

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if cfg.SQLiteLogStatements {
		connector, err := NewLoggingConnector(dsn, logger)
		if err != nil {
			return nil, fmt.Errorf("db connector: %w", err)
		}
		db = sql.OpenDB(connector)
	} else {
		db, err = sql.Open(cfg.SQLiteDriver, dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}

	// Requests each hold one connection for their whole lifetime, so keep a few around.
	if cfg.SQLiteMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.SQLiteMaxOpenConns)
	}
	if cfg.SQLiteMaxIdleConns >= 0 {
		db.SetMaxIdleConns(cfg.SQLiteMaxIdleConns)
	}
	if cfg.SQLiteConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.SQLiteConnMaxLifetime)
	}

	// Validate connectivity early
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

func buildDSN(cfg config.Config) (string, error) {
	if cfg.SQLiteDSN != "" {
		return cfg.SQLiteDSN, nil
	}

	// Ensure directory exists for file-backed sqlite db
	path := cfg.SQLitePath
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	// - foreign_keys=on: enforce FK constraints
	// - busy_timeout: the dataset tool may hold a write lock while the server reads
	// - journal_mode=WAL: readers do not block on the importer
	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
