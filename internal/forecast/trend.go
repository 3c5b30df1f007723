package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aouyang1/go-forecaster/forecast"
	"github.com/aouyang1/go-forecaster/timedataset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Options configures Trend.
type Options struct {
	// ChangepointPriorScale sets trend flexibility: the share of MaxChangepoints
	// handed to the library's automatic changepoint placement.
	ChangepointPriorScale float64
	MaxChangepoints       int
	// IntervalWidth is the coverage of the [Lower, Upper] band.
	IntervalWidth float64
	// ResidualWindow is the rolling window, in years, of the residual spread.
	ResidualWindow int
}

func DefaultOptions() Options {
	return Options{
		ChangepointPriorScale: 0.5,
		MaxChangepoints:       25,
		IntervalWidth:         0.8,
		ResidualWindow:        5,
	}
}

// Trend fits go-forecaster series models on yearly points.
type Trend struct {
	opts Options
	z    float64
}

func NewTrend(opts Options) (*Trend, error) {
	if opts.ChangepointPriorScale <= 0 {
		return nil, fmt.Errorf("forecast: changepoint prior scale must be > 0, got %v", opts.ChangepointPriorScale)
	}
	if opts.MaxChangepoints < 0 {
		return nil, fmt.Errorf("forecast: max changepoints must be >= 0, got %d", opts.MaxChangepoints)
	}
	if opts.IntervalWidth <= 0 || opts.IntervalWidth >= 1 {
		return nil, fmt.Errorf("forecast: interval width must be in (0, 1), got %v", opts.IntervalWidth)
	}
	if opts.ResidualWindow < 3 {
		return nil, fmt.Errorf("forecast: residual window must be >= 3, got %d", opts.ResidualWindow)
	}
	return &Trend{
		opts: opts,
		z:    distuv.UnitNormal.Quantile(0.5 + opts.IntervalWidth/2),
	}, nil
}

type trendModel struct {
	years  []int
	series *forecast.Forecast
	// band predicts the half width of the interval; nil on short histories,
	// where the flat half width is used instead.
	band *forecast.Forecast
	flat float64
}

func (t *Trend) Fit(ctx context.Context, training []Point) (Model, error) {
	pts := make([]Point, len(training))
	copy(pts, training)
	sort.Slice(pts, func(i, j int) bool { return pts[i].Year < pts[j].Year })

	if len(pts) < 2 {
		return nil, ErrNotEnoughData
	}
	years := make([]int, len(pts))
	values := make([]float64, len(pts))
	for i, p := range pts {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return nil, ErrNonFinite
		}
		if i > 0 && pts[i-1].Year == p.Year {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateYear, p.Year)
		}
		years[i] = p.Year
		values[i] = p.Value
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ts := yearTimes(years)
	data, err := timedataset.NewUnivariateDataset(ts, values)
	if err != nil {
		return nil, fmt.Errorf("forecast: training dataset: %w", err)
	}
	series, err := forecast.New(seriesOptions(numChangepoints(t.opts, len(pts))))
	if err != nil {
		return nil, fmt.Errorf("forecast: init series model: %w", err)
	}
	if err := series.Fit(data); err != nil {
		return nil, fmt.Errorf("forecast: fit series: %w", err)
	}

	m := &trendModel{years: years, series: series}
	residual := series.Residuals()
	w := t.opts.ResidualWindow
	if len(residual) < 2*w {
		_, sd := stat.MeanStdDev(residual, nil)
		m.flat = t.z * sd
		return m, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spread := make([]float64, len(residual)-w+1)
	for i := range spread {
		_, sd := stat.MeanStdDev(residual[i:i+w], nil)
		spread[i] = t.z * sd
	}
	// each window is stamped with its centre year
	start := w/2 - 1
	end := len(ts) - w/2 - w%2
	bandData, err := timedataset.NewUnivariateDataset(ts[start:end], spread)
	if err != nil {
		return nil, fmt.Errorf("forecast: residual dataset: %w", err)
	}
	band, err := forecast.New(seriesOptions(0))
	if err != nil {
		return nil, fmt.Errorf("forecast: init residual model: %w", err)
	}
	if err := band.Fit(bandData); err != nil {
		return nil, fmt.Errorf("forecast: fit residual: %w", err)
	}
	m.band = band
	return m, nil
}

func (m *trendModel) Predict(periods int) ([]Prediction, error) {
	if periods < 0 {
		return nil, ErrPeriods
	}
	years := make([]int, 0, len(m.years)+periods)
	years = append(years, m.years...)
	last := m.years[len(m.years)-1]
	for i := 1; i <= periods; i++ {
		years = append(years, last+i)
	}
	ts := yearTimes(years)

	est, err := m.series.Predict(ts)
	if err != nil {
		return nil, fmt.Errorf("forecast: predict series: %w", err)
	}
	half := make([]float64, len(ts))
	if m.band != nil {
		if half, err = m.band.Predict(ts); err != nil {
			return nil, fmt.Errorf("forecast: predict residual: %w", err)
		}
	} else {
		for i := range half {
			half[i] = m.flat
		}
	}

	upper := make([]float64, len(est))
	lower := make([]float64, len(est))
	for i := range half {
		half[i] = math.Max(half[i], 0)
	}
	copy(upper, est)
	copy(lower, est)
	floats.Add(upper, half)
	floats.Sub(lower, half)

	out := make([]Prediction, len(years))
	for i, y := range years {
		out[i] = Prediction{Year: y, Estimate: est[i], Lower: lower[i], Upper: upper[i]}
	}
	return out, nil
}

func seriesOptions(changepoints int) *forecast.Options {
	opt := forecast.NewDefaultOptions()
	opt.SeasonalityOptions.SeasonalityConfigs = nil
	opt.ChangepointOptions.EnableGrowth = true
	opt.ChangepointOptions.Auto = changepoints > 0
	opt.ChangepointOptions.AutoNumChangepoints = changepoints
	return opt
}

// numChangepoints scales MaxChangepoints by the prior scale and leaves at
// least three points per trend segment.
func numChangepoints(opts Options, points int) int {
	n := int(math.Round(math.Min(opts.ChangepointPriorScale, 1) * float64(opts.MaxChangepoints)))
	if limit := points/3 - 1; n > limit {
		n = limit
	}
	return max(n, 0)
}

func yearTimes(years []int) []time.Time {
	ts := make([]time.Time, len(years))
	for i, y := range years {
		ts[i] = time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return ts
}
