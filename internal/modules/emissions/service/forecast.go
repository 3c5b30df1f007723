package service

import (
	"context"
	"fmt"
	"math"

	"co2dash/internal/forecast"
	"co2dash/internal/modules/emissions/repository"
	"co2dash/internal/modules/emissions/types"
)

const (
	// TrainFromYear is the first year used to fit the model. Earlier years are
	// still displayed.
	TrainFromYear = 1990
	// FuturePeriods is the number of yearly periods predicted past the last
	// observed year.
	FuturePeriods = 36
	// AxisMargin is added above the highest plotted value.
	AxisMargin = 500.0
)

// ForecastResult is everything the forecast page renders for one country.
type ForecastResult struct {
	Country types.Country
	// Observed is the full history without null values.
	Observed types.Series
	// Training is the part of Observed the model was fitted on.
	Training    types.Series
	Predictions []types.ForecastPoint
	// Merged holds observed values and, for later years, predicted estimates.
	Merged        types.Series
	GlobalAverage types.Series
	YMax          float64

	// NoData is set when the country has no recorded emissions. The model is
	// not invoked in that case.
	NoData bool
	// Err is the fit or predict failure shown to the user. It is not returned
	// as an error because the request still succeeds.
	Err error
}

// Failed reports whether the result carries a model failure.
func (r ForecastResult) Failed() bool { return r.Err != nil }

// Forecast fits the model on the country history and predicts FuturePeriods years ahead.
func (s *Service) Forecast(ctx context.Context, countryID int) (ForecastResult, error) {
	var res ForecastResult
	err := s.withSession(ctx, "forecast", func(repo repository.EmissionsRepository) error {
		var err error
		if res.Country, err = lookupCountry(ctx, repo, countryID); err != nil {
			return fmt.Errorf("get country: %w", err)
		}
		if res.Observed, err = repo.GetCountryHistory(ctx, countryID); err != nil {
			return fmt.Errorf("get country history: %w", err)
		}
		if len(res.Observed) == 0 {
			res.NoData = true
			return nil
		}
		if res.GlobalAverage, err = repo.GetGlobalAverage(ctx); err != nil {
			return fmt.Errorf("get global average: %w", err)
		}
		return nil
	})
	if err != nil {
		return ForecastResult{}, err
	}
	if res.NoData {
		s.logger.Info("forecast skipped, no data", "country_id", countryID)
		return res, nil
	}

	res.Training = trainingWindow(res.Observed)
	preds, err := s.fitAndPredict(ctx, res.Training)
	if err != nil {
		s.logger.Warn("forecast failed", "country_id", countryID, "error", err)
		res.Err = err
		return res, nil
	}
	res.Predictions = preds
	res.Merged = mergeObservedFirst(res.Observed, preds)
	res.YMax = axisUpperBound(res.Observed, preds)

	s.publish(ctx, res)
	return res, nil
}

// trainingWindow keeps the points at or after TrainFromYear.
func trainingWindow(observed types.Series) types.Series {
	out := types.Series{}
	for _, p := range observed {
		if p.Year >= TrainFromYear {
			out = append(out, p)
		}
	}
	return out
}

// fitAndPredict runs the backend and converts a panic into an error.
func (s *Service) fitAndPredict(ctx context.Context, training types.Series) (preds []types.ForecastPoint, err error) {
	defer func() {
		if r := recover(); r != nil {
			preds = nil
			err = fmt.Errorf("forecast backend panic: %v", r)
		}
	}()

	if len(training) == 0 {
		return nil, fmt.Errorf("no observations from %d onwards", TrainFromYear)
	}
	pts := make([]forecast.Point, len(training))
	for i, p := range training {
		pts[i] = forecast.Point{Year: p.Year, Value: p.Value}
	}

	model, err := s.forecaster.Fit(ctx, pts)
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	raw, err := model.Predict(FuturePeriods)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	preds = make([]types.ForecastPoint, len(raw))
	for i, p := range raw {
		preds[i] = types.ForecastPoint{Year: p.Year, Estimate: p.Estimate, Lower: p.Lower, Upper: p.Upper}
	}
	return preds, nil
}

// axisUpperBound is the highest observed value or upper bound, plus AxisMargin.
func axisUpperBound(observed types.Series, preds []types.ForecastPoint) float64 {
	hi := math.Inf(-1)
	for _, p := range observed {
		hi = math.Max(hi, p.Value)
	}
	for _, p := range preds {
		hi = math.Max(hi, p.Upper)
		hi = math.Max(hi, p.Estimate)
	}
	if math.IsInf(hi, -1) {
		hi = 0
	}
	return hi + AxisMargin
}

func (s *Service) publish(ctx context.Context, res ForecastResult) {
	if s.publisher == nil || len(res.Predictions) == 0 {
		return
	}
	last := res.Predictions[len(res.Predictions)-1]
	event := types.ForecastEvent{
		CountryID:        res.Country.ID,
		CountryName:      res.Country.Name,
		GeneratedAt:      s.now().UTC(),
		LastObservedYear: res.Observed[len(res.Observed)-1].Year,
		HorizonYear:      last.Year,
		Estimate:         last.Estimate,
		Lower:            last.Lower,
		Upper:            last.Upper,
	}
	if err := s.publisher.PublishForecast(ctx, event); err != nil {
		s.logger.Warn("publish forecast event failed", "country_id", res.Country.ID, "error", err)
	}
}
