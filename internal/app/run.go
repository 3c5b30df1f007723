package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"co2dash/internal/config"
	"co2dash/internal/db"
	"co2dash/internal/forecast"
	"co2dash/internal/httpapi"
	"co2dash/internal/migrate"
	"co2dash/internal/modules/emissions"
	"co2dash/internal/modules/emissions/service"
	emissionsviews "co2dash/internal/modules/emissions/views"
	"co2dash/internal/mqtt"
)

func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"sqliteDriver", cfg.SQLiteDriver,
		"sqlitePath", cfg.SQLitePath,
		"sqliteMaxOpenConns", cfg.SQLiteMaxOpenConns,
		"sqliteMaxIdleConns", cfg.SQLiteMaxIdleConns,
		"sqliteConnMaxLifetime", cfg.SQLiteConnMaxLifetime,
		"sqliteLogStatements", cfg.SQLiteLogStatements,
		"migrate", cfg.Migrate,
		"changepointPriorScale", cfg.ChangepointPriorScale,
		"intervalWidth", cfg.IntervalWidth,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopicPrefix", cfg.MQTTTopicPrefix,
	)
	dbConn, err := db.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	if cfg.Migrate {
		if err := migrate.Run(ctx, dbConn); err != nil {
			return err
		}
	}

	var ok int
	if err := dbConn.QueryRowContext(ctx, `SELECT 1`).Scan(&ok); err != nil {
		return err
	}
	if ok != 1 {
		return errors.New("database connection failed")
	}
	logger.Info("database connection successful")

	if err := emissionsviews.LoadTemplates(); err != nil {
		return err
	}

	forecaster, err := newForecaster(cfg)
	if err != nil {
		return err
	}

	publisher, disconnect := connectPublisher(ctx, cfg, logger)
	defer disconnect()

	mux := httpapi.NewMux(dbConn, logger)
	emissions.RegisterFeature(mux, dbConn, forecaster, publisher, logger)

	srv := httpapi.NewServer(cfg, mux, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

func newForecaster(cfg config.Config) (*forecast.Trend, error) {
	opts := forecast.DefaultOptions()
	if cfg.ChangepointPriorScale > 0 {
		opts.ChangepointPriorScale = cfg.ChangepointPriorScale
	}
	if cfg.IntervalWidth > 0 {
		opts.IntervalWidth = cfg.IntervalWidth
	}
	return forecast.NewTrend(opts)
}

// connectPublisher returns a nil publisher when MQTT is not configured. A broker
// that is down at startup is not fatal; publishes then fail with a logged warning.
func connectPublisher(ctx context.Context, cfg config.Config, logger *slog.Logger) (service.Publisher, func()) {
	if cfg.MQTTBroker == "" {
		logger.Info("mqtt disabled (MQTT_BROKER not set)")
		return nil, func() {}
	}

	p, err := mqtt.NewPublisher(cfg, logger)
	if err != nil {
		logger.Warn("mqtt publisher unavailable (continuing without mqtt)", "error", err)
		return nil, func() {}
	}

	// Short timeout so a missing broker does not block startup.
	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	err = p.Connect(connectCtx)
	connectCancel()
	if err != nil {
		logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
	}

	return p, func() {
		logger.Info("mqtt disconnecting")
		p.Disconnect()
	}
}
