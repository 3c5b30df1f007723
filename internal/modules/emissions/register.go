package emissions

import (
	"database/sql"
	"log/slog"
	"net/http"

	"co2dash/internal/forecast"
	"co2dash/internal/modules/emissions/controller"
	"co2dash/internal/modules/emissions/service"
)

// RegisterFeature wires the emissions pages onto mux. publisher may be nil.
func RegisterFeature(mux *http.ServeMux, db *sql.DB, forecaster forecast.Forecaster, publisher service.Publisher, logger *slog.Logger) {
	opts := []service.Option{service.WithLogger(logger)}
	if publisher != nil {
		opts = append(opts, service.WithPublisher(publisher))
	}
	emissionsService := service.NewService(db, forecaster, opts...)
	emissionsController := controller.NewEmissionsController(emissionsService, logger)
	emissionsController.RegisterRoutes(mux)
}
