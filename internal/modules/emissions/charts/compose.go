package charts

import (
	"time"

	"co2dash/internal/modules/emissions/service"
	"co2dash/internal/modules/emissions/types"
)

const (
	BandName          = "Confidence interval"
	GlobalAverageName = "Global average"
	TodayName         = "Today"
	MergedName        = "Total CO₂ (observed + predicted)"

	titleRaw     = "CO₂ Emissions (Mt)"
	titleDensity = "CO₂ Emissions (t/km²)"
	titleYear    = "Year"

	background = "#121212"
)

// ColorPair is the line colour and the translucent fill of one series.
type ColorPair struct {
	Line string
	Fill string
}

// Palette cycles when more series than entries are drawn.
var Palette = []ColorPair{
	{Line: "#FF6A00", Fill: "rgba(255,106,0,0.2)"},
	{Line: "#00BFFF", Fill: "rgba(0,191,255,0.2)"},
	{Line: "#32CD32", Fill: "rgba(50,205,50,0.2)"},
	{Line: "#FFD700", Fill: "rgba(255,215,0,0.2)"},
	{Line: "#FF1493", Fill: "rgba(255,20,147,0.2)"},
}

func PaletteColor(i int) ColorPair {
	return Palette[i%len(Palette)]
}

// ComposeComparison draws one filled line per selected country, in selection
// order, and the global average when requested.
func ComposeComparison(res service.ComparisonResult) Figure {
	opts := res.Request.Options
	fig := Figure{Title: "CO₂ Emissions Comparison", XTitle: titleYear, YTitle: yTitle(opts.ShowDensity)}

	for i, cs := range res.Countries {
		c := PaletteColor(i)
		x, y := seriesXY(cs.Series)
		fig.Layers = append(fig.Layers, Layer{
			Name:      cs.Country.Name,
			X:         x,
			Y:         y,
			Color:     c.Line,
			Width:     2,
			Fill:      FillToZero,
			FillColor: c.Fill,
			Markers:   true,
		})
	}
	if opts.ShowGlobalAverage {
		fig.Layers = append(fig.Layers, globalAverageLayer(res.GlobalAverage))
	}
	return fig
}

// ComposeForecast layers, bottom to top: the upper bound, the lower bound
// filled up to it, the merged observed and predicted area, the dotted global
// average and the dashed vertical today line.
func ComposeForecast(res service.ForecastResult, now time.Time) Figure {
	fig := Figure{
		Title:  "CO₂ forecast: " + res.Country.Name,
		XTitle: titleYear,
		YTitle: titleRaw,
		YMax:   res.YMax,
	}

	x := make([]float64, len(res.Predictions))
	upper := make([]float64, len(res.Predictions))
	lower := make([]float64, len(res.Predictions))
	for i, p := range res.Predictions {
		x[i] = float64(p.Year)
		upper[i] = p.Upper
		lower[i] = p.Lower
	}
	mx, my := seriesXY(res.Merged)
	today := FractionalYear(now)

	fig.Layers = []Layer{
		{X: x, Y: upper},
		{
			Name:      BandName,
			X:         x,
			Y:         lower,
			Fill:      FillToPrevious,
			FillColor: "rgba(255,140,0,0.3)",
		},
		{
			Name:      MergedName,
			X:         mx,
			Y:         my,
			Color:     "rgba(255,140,0,1)",
			Width:     3,
			Fill:      FillToZero,
			FillColor: "rgba(255,94,0,0.25)",
			Markers:   true,
		},
		globalAverageLayer(res.GlobalAverage),
		{
			Name:  TodayName,
			X:     []float64{today, today},
			Y:     []float64{0, res.YMax},
			Color: "red",
			Width: 2,
			Dash:  Dashed,
		},
	}
	return fig
}

func globalAverageLayer(avg types.Series) Layer {
	x, y := seriesXY(avg)
	return Layer{
		Name:    GlobalAverageName,
		X:       x,
		Y:       y,
		Color:   "gray",
		Width:   2,
		Dash:    Dotted,
		Opacity: 0.4,
	}
}

func yTitle(density bool) string {
	if density {
		return titleDensity
	}
	return titleRaw
}

func seriesXY(s types.Series) ([]float64, []float64) {
	x := make([]float64, len(s))
	y := make([]float64, len(s))
	for i, p := range s {
		x[i] = float64(p.Year)
		y[i] = p.Value
	}
	return x, y
}
