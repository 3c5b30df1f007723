// Package forecast holds the yearly forecasting backend used by the emissions
// module. Trend adapts go-forecaster to yearly points: a piecewise-linear
// trend with automatic changepoints and seasonality turned off.
package forecast

import (
	"context"
	"errors"
)

// Point is one observed yearly value.
type Point struct {
	Year  int
	Value float64
}

// Prediction is the model output for one yearly period.
type Prediction struct {
	Year     int
	Estimate float64
	Lower    float64
	Upper    float64
}

// Forecaster fits a model on a training series.
type Forecaster interface {
	Fit(ctx context.Context, training []Point) (Model, error)
}

// Model predicts the training years followed by periods future years.
type Model interface {
	Predict(periods int) ([]Prediction, error)
}

var (
	ErrNotEnoughData = errors.New("forecast: at least two training points are required")
	ErrDuplicateYear = errors.New("forecast: duplicate year in training data")
	ErrNonFinite     = errors.New("forecast: training data contains NaN or Inf")
	ErrPeriods       = errors.New("forecast: periods must be >= 0")
)
