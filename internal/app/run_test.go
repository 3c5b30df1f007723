package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"co2dash/internal/config"
	"co2dash/internal/forecast"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewForecaster(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr bool
	}{
		{"configured", config.Config{ChangepointPriorScale: 0.5, IntervalWidth: 0.8}, false},
		{"zero values fall back to defaults", config.Config{}, false},
		{"interval width out of range", config.Config{ChangepointPriorScale: 0.5, IntervalWidth: 1.5}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := newForecaster(tc.cfg)
			if tc.wantErr {
				if err == nil {
					t.Fatal("newForecaster() err = nil; want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("newForecaster() err = %v", err)
			}

			model, err := f.Fit(context.Background(), []forecast.Point{
				{Year: 1990, Value: 10}, {Year: 1991, Value: 12}, {Year: 1992, Value: 14},
			})
			if err != nil {
				t.Fatalf("Fit() err = %v", err)
			}
			preds, err := model.Predict(2)
			if err != nil {
				t.Fatalf("Predict() err = %v", err)
			}
			if len(preds) != 5 || preds[4].Year != 1994 {
				t.Fatalf("Predict(2) = %+v; want 5 periods ending 1994", preds)
			}
		})
	}
}

func TestForecastDefaultsMatchConfig(t *testing.T) {
	for _, k := range []string{
		"APP_ENV", "LOG_LEVEL", "HTTP_ADDR", "DB_DRIVER", "DB_DSN", "SQLITE_PATH",
		"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_LOG_SQL", "DB_MIGRATE",
		"FORECAST_CHANGEPOINT_PRIOR_SCALE", "FORECAST_INTERVAL_WIDTH",
		"MQTT_BROKER", "MQTT_PORT", "MQTT_CLIENT_ID", "MQTT_TOPIC_PREFIX",
	} {
		t.Setenv(k, "")
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() err = %v", err)
	}

	opts := forecast.DefaultOptions()
	if cfg.ChangepointPriorScale != opts.ChangepointPriorScale {
		t.Errorf("config prior scale = %v, forecast default = %v", cfg.ChangepointPriorScale, opts.ChangepointPriorScale)
	}
	if cfg.IntervalWidth != opts.IntervalWidth {
		t.Errorf("config interval width = %v, forecast default = %v", cfg.IntervalWidth, opts.IntervalWidth)
	}
}

func TestConnectPublisher_disabled(t *testing.T) {
	p, disconnect := connectPublisher(context.Background(), config.Config{}, discardLogger())
	if p != nil {
		t.Fatalf("publisher = %v; want nil when MQTT_BROKER is empty", p)
	}
	disconnect()
}

func TestConnectPublisher_brokerDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := config.Config{MQTTBroker: "127.0.0.1", MQTTPort: 1, MQTTClientID: "co2dash-test", MQTTTopicPrefix: "co2"}
	p, disconnect := connectPublisher(ctx, cfg, discardLogger())
	defer disconnect()

	if p == nil {
		t.Fatal("publisher = nil; want a disconnected publisher")
	}
}
