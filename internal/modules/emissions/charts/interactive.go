package charts

import (
	"fmt"
	"io"

	echarts "github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const chartHeight = "640px"

// RenderHTML writes fig as a standalone go-echarts page. The views embed it
// in an iframe.
func RenderHTML(w io.Writer, fig Figure) error {
	if err := fig.validate(); err != nil {
		return err
	}
	if err := interactiveLine(fig).Render(w); err != nil {
		return fmt.Errorf("charts: render html: %w", err)
	}
	return nil
}

func interactiveLine(fig Figure) *echarts.Line {
	line := echarts.NewLine()

	yAxis := opts.YAxis{Name: fig.YTitle, Type: "value"}
	if fig.YMax > 0 {
		yAxis.Min = 0
		yAxis.Max = fig.YMax
	}
	line.SetGlobalOptions(
		echarts.WithInitializationOpts(opts.Initialization{
			PageTitle:       fig.Title,
			Theme:           "dark",
			BackgroundColor: background,
			Width:           "100%",
			Height:          chartHeight,
		}),
		echarts.WithTitleOpts(opts.Title{
			Title:      fig.Title,
			TitleStyle: &opts.TextStyle{Color: "#ff9800", FontSize: 22},
		}),
		echarts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		echarts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
			Top:  "40",
			Data: legendNames(fig),
		}),
		echarts.WithXAxisOpts(opts.XAxis{
			Name: fig.XTitle,
			Type: "value",
			Min:  "dataMin",
			Max:  "dataMax",
		}),
		echarts.WithYAxisOpts(yAxis),
		echarts.WithDataZoomOpts(opts.DataZoom{
			Type:  "inside",
			Start: 0,
			End:   100,
		}),
		echarts.WithGridOpts(opts.Grid{
			Left:   "6%",
			Right:  "4%",
			Bottom: "8%",
			Top:    "90",
		}),
	)

	for i, l := range fig.Layers {
		line.AddSeries(seriesName(l, i), lineData(l), seriesOpts(fig.Layers, i)...)
	}
	return line
}

func seriesOpts(layers []Layer, i int) []echarts.SeriesOpts {
	l := layers[i]
	alpha := float32(opacity(l))
	so := []echarts.SeriesOpts{
		echarts.WithLineChartOpts(opts.LineChart{
			ShowSymbol: opts.Bool(l.Markers),
			Symbol:     "circle",
		}),
		echarts.WithLineStyleOpts(opts.LineStyle{
			Color:   l.Color,
			Width:   float32(l.Width),
			Type:    dashType(l.Dash),
			Opacity: opts.Float(alpha),
		}),
	}
	if l.Color != "" {
		so = append(so, echarts.WithItemStyleOpts(opts.ItemStyle{Color: l.Color}))
	}

	// A band is drawn as the layer below filled to zero in the band colour,
	// then this layer filled to zero in the background colour.
	switch {
	case l.Fill == FillToZero:
		so = append(so, echarts.WithAreaStyleOpts(opts.AreaStyle{Color: l.FillColor, Opacity: opts.Float(alpha)}))
	case l.Fill == FillToPrevious && i > 0:
		so = append(so, echarts.WithAreaStyleOpts(opts.AreaStyle{Color: background, Opacity: opts.Float(1)}))
	case i+1 < len(layers) && layers[i+1].Fill == FillToPrevious:
		next := layers[i+1]
		so = append(so, echarts.WithAreaStyleOpts(opts.AreaStyle{Color: next.FillColor, Opacity: opts.Float(float32(opacity(next)))}))
	}
	return so
}

func lineData(l Layer) []opts.LineData {
	data := make([]opts.LineData, len(l.X))
	for i := range l.X {
		data[i] = opts.LineData{Value: []any{l.X[i], l.Y[i]}}
	}
	return data
}

func legendNames(fig Figure) []string {
	var names []string
	for _, l := range fig.Layers {
		if l.Name != "" {
			names = append(names, l.Name)
		}
	}
	return names
}

func seriesName(l Layer, i int) string {
	if l.Name != "" {
		return l.Name
	}
	return fmt.Sprintf("layer %d", i)
}

func dashType(d Dash) string {
	switch d {
	case Dashed:
		return "dashed"
	case Dotted:
		return "dotted"
	default:
		return "solid"
	}
}

func opacity(l Layer) float64 {
	if l.Opacity > 0 && l.Opacity < 1 {
		return l.Opacity
	}
	return 1
}
