package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"co2dash/internal/forecast"
	"co2dash/internal/modules/emissions/emissionstest"
	"co2dash/internal/modules/emissions/repository"
	"co2dash/internal/modules/emissions/types"
)

type spyForecaster struct {
	calls     int
	training  []forecast.Point
	estimate  float64
	spread    float64
	fitErr    error
	panicWith any
}

func (f *spyForecaster) Fit(_ context.Context, training []forecast.Point) (forecast.Model, error) {
	f.calls++
	f.training = append([]forecast.Point(nil), training...)
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if f.fitErr != nil {
		return nil, f.fitErr
	}
	years := make([]int, len(training))
	for i, p := range training {
		years[i] = p.Year
	}
	return &spyModel{years: years, estimate: f.estimate, spread: f.spread}, nil
}

type spyModel struct {
	years    []int
	estimate float64
	spread   float64
}

func (m *spyModel) Predict(periods int) ([]forecast.Prediction, error) {
	var out []forecast.Prediction
	add := func(y int) {
		out = append(out, forecast.Prediction{
			Year:     y,
			Estimate: m.estimate,
			Lower:    m.estimate - m.spread,
			Upper:    m.estimate + m.spread,
		})
	}
	for _, y := range m.years {
		add(y)
	}
	last := m.years[len(m.years)-1]
	for i := 1; i <= periods; i++ {
		add(last + i)
	}
	return out, nil
}

type recordingPublisher struct {
	events []types.ForecastEvent
	err    error
}

func (p *recordingPublisher) PublishForecast(_ context.Context, e types.ForecastEvent) error {
	p.events = append(p.events, e)
	return p.err
}

type failingRepo struct {
	repository.EmissionsRepository
}

func (failingRepo) GetCountry(context.Context, int) (types.Country, bool, error) {
	return types.Country{}, false, errors.New("disk on fire")
}

func (failingRepo) GetEmissions(context.Context, []int, int, int) ([]types.EmissionRow, error) {
	return nil, errors.New("disk on fire")
}

func newTestService(t *testing.T, f forecast.Forecaster, opts ...Option) (*Service, *sql.DB) {
	t.Helper()
	db := emissionstest.Open(t)
	emissionstest.Seed(t, db, emissionstest.Standard())
	return NewService(db, f, opts...), db
}

func requireNoSessionsInUse(t *testing.T, db *sql.DB) {
	t.Helper()
	assert.Equal(t, 0, db.Stats().InUse, "database session left open")
}

func TestSelectionData(t *testing.T) {
	svc, db := newTestService(t, &spyForecaster{})

	sel, err := svc.SelectionData(context.Background())
	require.NoError(t, err)

	var names []string
	for _, c := range sel.Countries {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Alpha", "Beta", "Delta", "Gamma"}, names)

	var years []int
	for _, y := range sel.Years {
		years = append(years, y.Year)
	}
	assert.Equal(t, []int{1985, 1990, 1995, 2000, 2005}, years)
	requireNoSessionsInUse(t, db)
}

func TestCompare_AlphaRawAndDensity(t *testing.T) {
	svc, db := newTestService(t, &spyForecaster{})
	ctx := context.Background()

	raw, err := svc.Compare(ctx, ComparisonRequest{CountryIDs: []int{1}, YearStart: 1990, YearEnd: 2000})
	require.NoError(t, err)
	require.Len(t, raw.Countries, 1)
	assert.Equal(t, "Alpha", raw.Countries[0].Country.Name)
	assert.Equal(t, types.Series{{Year: 1990, Value: 100}, {Year: 1995, Value: 150}, {Year: 2000, Value: 200}},
		raw.Countries[0].Series)

	dense, err := svc.Compare(ctx, ComparisonRequest{
		CountryIDs: []int{1}, YearStart: 1990, YearEnd: 2000,
		Options: ComparisonOptions{ShowDensity: true},
	})
	require.NoError(t, err)
	assert.Equal(t, types.Series{{Year: 1990, Value: 2}, {Year: 1995, Value: 3}, {Year: 2000, Value: 4}},
		dense.Countries[0].Series)
	requireNoSessionsInUse(t, db)
}

func TestCompare_DensityFallbackForMissingSurface(t *testing.T) {
	svc, _ := newTestService(t, &spyForecaster{})

	res, err := svc.Compare(context.Background(), ComparisonRequest{
		CountryIDs: []int{3}, YearStart: 1980, YearEnd: 2000,
		Options: ComparisonOptions{ShowDensity: true},
	})
	require.NoError(t, err)
	assert.Equal(t, types.Series{{Year: 1985, Value: 40}, {Year: 1990, Value: 20}}, res.Countries[0].Series)
}

func TestCompare_TwoCountriesGlobalAverageUnfiltered(t *testing.T) {
	svc, _ := newTestService(t, &spyForecaster{})
	ctx := context.Background()

	all, err := svc.GlobalAverage(ctx)
	require.NoError(t, err)

	res, err := svc.Compare(ctx, ComparisonRequest{
		CountryIDs: []int{1, 2}, YearStart: 1990, YearEnd: 1995,
		Options: ComparisonOptions{ShowGlobalAverage: true},
	})
	require.NoError(t, err)
	require.Len(t, res.Countries, 2)
	assert.Equal(t, "Alpha", res.Countries[0].Country.Name)
	assert.Equal(t, "Beta", res.Countries[1].Country.Name)
	// Beta 1995 is null, so only 1990 remains in range.
	assert.Equal(t, types.Series{{Year: 1990, Value: 300}}, res.Countries[1].Series)
	assert.Equal(t, all, res.GlobalAverage)
	assert.Len(t, res.GlobalAverage, 4, "average must cover years outside the selected range")
}

func TestCompare_UnknownCountryDegrades(t *testing.T) {
	svc, _ := newTestService(t, &spyForecaster{})

	res, err := svc.Compare(context.Background(), ComparisonRequest{CountryIDs: []int{999, 1, 999}, YearStart: 1990, YearEnd: 2000})
	require.NoError(t, err)
	require.Len(t, res.Countries, 2)
	assert.Equal(t, "Country 999", res.Countries[0].Country.Name)
	assert.Empty(t, res.Countries[0].Series)
	assert.Equal(t, []int{999, 1}, res.Request.CountryIDs)
}

func TestCompare_Validation(t *testing.T) {
	svc, _ := newTestService(t, &spyForecaster{})
	ctx := context.Background()

	tests := []struct {
		name string
		req  ComparisonRequest
		want error
	}{
		{"no countries", ComparisonRequest{YearStart: 1990, YearEnd: 2000}, ErrNoCountries},
		{"too many", ComparisonRequest{CountryIDs: []int{1, 2, 3, 4, 5, 6}, YearStart: 1990, YearEnd: 2000}, ErrTooMany},
		{"reversed range", ComparisonRequest{CountryIDs: []int{1}, YearStart: 2001, YearEnd: 2000}, ErrYearRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Compare(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCompare_StorageErrorReleasesSession(t *testing.T) {
	db := emissionstest.Open(t)
	svc := NewService(db, &spyForecaster{}, WithRepositoryFactory(func(repository.Querier) repository.EmissionsRepository {
		return failingRepo{}
	}))

	_, err := svc.Compare(context.Background(), ComparisonRequest{CountryIDs: []int{1}, YearStart: 1990, YearEnd: 2000})
	require.Error(t, err)
	requireNoSessionsInUse(t, db)
}

func TestForecast_NoDataSkipsModel(t *testing.T) {
	spy := &spyForecaster{}
	svc, db := newTestService(t, spy)

	res, err := svc.Forecast(context.Background(), 999)
	require.NoError(t, err)
	assert.True(t, res.NoData)
	assert.Equal(t, "Country 999", res.Country.Name)
	assert.Zero(t, spy.calls)
	requireNoSessionsInUse(t, db)

	res, err = svc.Forecast(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, res.NoData)
	assert.Equal(t, "Delta", res.Country.Name)
	assert.Zero(t, spy.calls)
}

func TestForecast_TrainingExcludesEarlyYears(t *testing.T) {
	spy := &spyForecaster{estimate: 10}
	svc, _ := newTestService(t, spy)

	res, err := svc.Forecast(context.Background(), 3)
	require.NoError(t, err)
	require.Nil(t, res.Err)
	require.Equal(t, 1, spy.calls)

	for _, p := range spy.training {
		assert.GreaterOrEqual(t, p.Year, TrainFromYear)
	}
	assert.Equal(t, []forecast.Point{{Year: 1990, Value: 20}}, spy.training)
	assert.Equal(t, types.Series{{Year: 1985, Value: 40}, {Year: 1990, Value: 20}}, res.Observed)
}

func TestForecast_HorizonMergeAndAxis(t *testing.T) {
	spy := &spyForecaster{estimate: 9999, spread: 100}
	svc, db := newTestService(t, spy)

	res, err := svc.Forecast(context.Background(), 1)
	require.NoError(t, err)
	require.Nil(t, res.Err)

	require.Len(t, res.Predictions, 3+FuturePeriods)
	assert.Equal(t, 2000+FuturePeriods, res.Predictions[len(res.Predictions)-1].Year)

	for _, obs := range res.Observed {
		v, ok := res.Merged.Lookup(obs.Year)
		require.True(t, ok)
		assert.Equal(t, obs.Value, v, "year %d must keep the observed value", obs.Year)
	}
	v, ok := res.Merged.Lookup(2001)
	require.True(t, ok)
	assert.Equal(t, 9999.0, v)
	for i := 1; i < len(res.Merged); i++ {
		assert.Less(t, res.Merged[i-1].Year, res.Merged[i].Year)
	}

	assert.Equal(t, 9999.0+100+AxisMargin, res.YMax)
	requireNoSessionsInUse(t, db)
}

func TestForecast_AxisCoversObservedPeak(t *testing.T) {
	spy := &spyForecaster{estimate: 1, spread: 1}
	svc, _ := newTestService(t, spy)

	res, err := svc.Forecast(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 500.0+AxisMargin, res.YMax)
}

func TestForecast_WithTrendBackend(t *testing.T) {
	backend, err := forecast.NewTrend(forecast.DefaultOptions())
	require.NoError(t, err)
	svc, _ := newTestService(t, backend)

	res, err := svc.Forecast(context.Background(), 1)
	require.NoError(t, err)
	require.Nil(t, res.Err)
	require.Len(t, res.Predictions, 3+FuturePeriods)

	hi := 0.0
	for _, p := range res.Predictions {
		assert.LessOrEqual(t, p.Lower, p.Upper)
		if p.Upper > hi {
			hi = p.Upper
		}
	}
	assert.Greater(t, res.YMax, hi)
	assert.GreaterOrEqual(t, res.YMax, hi+AxisMargin)
}

func TestForecast_SoftFailures(t *testing.T) {
	tests := []struct {
		name string
		spy  *spyForecaster
	}{
		{"fit error", &spyForecaster{fitErr: errors.New("singular matrix")}},
		{"backend panic", &spyForecaster{panicWith: "index out of range"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			svc, db := newTestService(t, tt.spy, WithPublisher(pub))

			res, err := svc.Forecast(context.Background(), 1)
			require.NoError(t, err)
			require.Error(t, res.Err)
			assert.True(t, res.Failed())
			assert.Empty(t, res.Merged)
			assert.Empty(t, pub.events)
			requireNoSessionsInUse(t, db)
		})
	}
}

func TestForecast_StorageErrorIsHard(t *testing.T) {
	db := emissionstest.Open(t)
	spy := &spyForecaster{}
	svc := NewService(db, spy, WithRepositoryFactory(func(repository.Querier) repository.EmissionsRepository {
		return failingRepo{}
	}))

	_, err := svc.Forecast(context.Background(), 1)
	require.Error(t, err)
	assert.Zero(t, spy.calls)
	requireNoSessionsInUse(t, db)
}

func TestForecast_PublishesEvent(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, &spyForecaster{estimate: 250, spread: 25},
		WithPublisher(pub), WithClock(func() time.Time { return now }))

	res, err := svc.Forecast(context.Background(), 1)
	require.NoError(t, err, "publish failures must not fail the request")
	require.Nil(t, res.Err)
	require.Len(t, pub.events, 1)

	e := pub.events[0]
	assert.Equal(t, 1, e.CountryID)
	assert.Equal(t, "Alpha", e.CountryName)
	assert.Equal(t, now, e.GeneratedAt)
	assert.Equal(t, 2000, e.LastObservedYear)
	assert.Equal(t, 2036, e.HorizonYear)
	assert.Equal(t, 250.0, e.Estimate)
	assert.Equal(t, 225.0, e.Lower)
	assert.Equal(t, 275.0, e.Upper)
}
