package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"co2dash/internal/modules/emissions/service"
	"co2dash/internal/modules/emissions/types"
)

// EmissionsService is the part of service.Service the handlers use.
type EmissionsService interface {
	SelectionData(ctx context.Context) (service.Selection, error)
	Countries(ctx context.Context) ([]types.Country, error)
	GlobalAverage(ctx context.Context) (types.Series, error)
	Compare(ctx context.Context, req service.ComparisonRequest) (service.ComparisonResult, error)
	Forecast(ctx context.Context, countryID int) (service.ForecastResult, error)
}

type EmissionsController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type emissionsControllerImpl struct {
	service EmissionsService
	logger  *slog.Logger
	now     func() time.Time
}

func NewEmissionsController(svc EmissionsService, logger *slog.Logger) EmissionsController {
	if logger == nil {
		logger = slog.Default()
	}
	return &emissionsControllerImpl{service: svc, logger: logger, now: time.Now}
}

func (c *emissionsControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", c.handleIndex)
	mux.HandleFunc("POST /", c.handleCompare)
	mux.HandleFunc("GET /predict", c.handleForecast)
	mux.HandleFunc("GET /predict/image", c.handleForecastImage)
	mux.HandleFunc("GET /export.xlsx", c.handleExport)
	mux.HandleFunc("GET /api/v1/countries", c.handleCountries)
	mux.HandleFunc("GET /api/v1/global-average", c.handleGlobalAverage)
}
