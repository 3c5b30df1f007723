package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	SQLiteDriver          string
	SQLiteDSN             string
	SQLitePath            string
	SQLiteMaxOpenConns    int
	SQLiteMaxIdleConns    int
	SQLiteConnMaxLifetime time.Duration
	// SQLiteLogStatements wraps the driver so every statement is logged at debug level.
	SQLiteLogStatements bool
	// Migrate creates the schema at startup. The dataset itself is loaded with cmd/co2tool.
	Migrate bool

	ChangepointPriorScale float64
	IntervalWidth         float64

	// MQTTBroker empty disables forecast event publishing.
	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	driver := strings.TrimSpace(os.Getenv("DB_DRIVER"))
	if driver == "" {
		driver = "sqlite3"
	}
	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	path := strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	if path == "" {
		path = "co2_emissions.db"
	}

	maxOpenConns, err := intFromEnv("DB_MAX_OPEN_CONNS", 4)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := intFromEnv("DB_MAX_IDLE_CONNS", 4)
	if err != nil {
		return Config{}, err
	}

	connMaxLifetimeStr := strings.TrimSpace(os.Getenv("DB_CONN_MAX_LIFETIME"))
	if connMaxLifetimeStr == "" {
		connMaxLifetimeStr = "0s"
	}
	connMaxLifetime, err := time.ParseDuration(connMaxLifetimeStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME %q: %w", connMaxLifetimeStr, err)
	}

	logSQL, err := boolFromEnv("DB_LOG_SQL", false)
	if err != nil {
		return Config{}, err
	}
	migrate, err := boolFromEnv("DB_MIGRATE", false)
	if err != nil {
		return Config{}, err
	}

	priorScale, err := floatFromEnv("FORECAST_CHANGEPOINT_PRIOR_SCALE", 0.5)
	if err != nil {
		return Config{}, err
	}
	if priorScale <= 0 {
		return Config{}, fmt.Errorf("FORECAST_CHANGEPOINT_PRIOR_SCALE must be > 0, got %v", priorScale)
	}
	intervalWidth, err := floatFromEnv("FORECAST_INTERVAL_WIDTH", 0.8)
	if err != nil {
		return Config{}, err
	}
	if intervalWidth <= 0 || intervalWidth >= 1 {
		return Config{}, fmt.Errorf("FORECAST_INTERVAL_WIDTH must be in (0, 1), got %v", intervalWidth)
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	mqttPort, err := intFromEnv("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}
	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "co2dash-server"
	}
	mqttTopicPrefix := strings.Trim(strings.TrimSpace(os.Getenv("MQTT_TOPIC_PREFIX")), "/")
	if mqttTopicPrefix == "" {
		mqttTopicPrefix = "co2/forecasts"
	}

	return Config{
		AppEnv:                appEnv,
		LogLevel:              level,
		HTTPAddr:              httpAddr,
		SQLiteDriver:          driver,
		SQLiteDSN:             dsn,
		SQLitePath:            path,
		SQLiteMaxOpenConns:    maxOpenConns,
		SQLiteMaxIdleConns:    maxIdleConns,
		SQLiteConnMaxLifetime: connMaxLifetime,
		SQLiteLogStatements:   logSQL,
		Migrate:               migrate,
		ChangepointPriorScale: priorScale,
		IntervalWidth:         intervalWidth,
		MQTTBroker:            mqttBroker,
		MQTTPort:              mqttPort,
		MQTTClientID:          mqttClientID,
		MQTTTopicPrefix:       mqttTopicPrefix,
	}, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func intFromEnv(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func floatFromEnv(key string, def float64) (float64, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return f, nil
}

func boolFromEnv(key string, def bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}
