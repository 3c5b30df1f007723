package charts

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var ErrFormat = errors.New("charts: unsupported image format")

const (
	imageWidth  = 12 * vg.Inch
	imageHeight = 6 * vg.Inch
)

// ContentType returns the MIME type of an image format accepted by RenderImage.
func ContentType(format string) (string, error) {
	switch format {
	case "png":
		return "image/png", nil
	case "svg":
		return "image/svg+xml", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrFormat, format)
	}
}

// RenderImage draws fig as a static png or svg image. Fills, dashes, opacity
// and the pinned y range are honoured.
func RenderImage(w io.Writer, fig Figure, format string) error {
	if _, err := ContentType(format); err != nil {
		return err
	}
	if err := fig.validate(); err != nil {
		return err
	}

	p, err := buildPlot(fig)
	if err != nil {
		return err
	}

	wt, err := p.WriterTo(imageWidth, imageHeight, format)
	if err != nil {
		return fmt.Errorf("charts: create %s writer: %w", format, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("charts: write %s: %w", format, err)
	}
	return nil
}

func buildPlot(fig Figure) (*plot.Plot, error) {
	p := plot.New()

	fg := color.White
	bg, err := parseColor(background, 0)
	if err != nil {
		return nil, err
	}
	p.BackgroundColor = bg
	p.Title.Text = fig.Title
	p.Title.TextStyle.Color = color.NRGBA{R: 0xff, G: 0x98, A: 0xff}
	p.Title.TextStyle.Font.Size = vg.Points(22)
	p.Legend.TextStyle.Color = fg
	p.Legend.Top = true
	p.Legend.Left = true
	styleAxis(&p.X, fig.XTitle, fg)
	styleAxis(&p.Y, fig.YTitle, fg)

	grid := plotter.NewGrid()
	gridColor := color.NRGBA{R: 255, G: 255, B: 255, A: 20}
	grid.Vertical.Color = gridColor
	grid.Horizontal.Color = gridColor
	p.Add(grid)

	var prev plotter.XYs
	for i, l := range fig.Layers {
		xys := layerXYs(l)
		if err := addLayer(p, l, xys, prev); err != nil {
			return nil, fmt.Errorf("charts: layer %d: %w", i, err)
		}
		prev = xys
	}

	if fig.YMax > 0 {
		p.Y.Min, p.Y.Max = 0, fig.YMax
	}
	return p, nil
}

func styleAxis(a *plot.Axis, title string, fg color.Color) {
	a.Label.Text = title
	a.Label.TextStyle.Color = fg
	a.Color = fg
	a.Tick.Color = fg
	a.Tick.Label.Color = fg
}

func addLayer(p *plot.Plot, l Layer, xys, prev plotter.XYs) error {
	if len(xys) == 0 {
		return nil
	}
	var thumbs []plot.Thumbnailer

	if l.Fill == FillToPrevious && len(prev) > 0 {
		band := make(plotter.XYs, 0, len(prev)+len(xys))
		band = append(band, prev...)
		for i := len(xys) - 1; i >= 0; i-- {
			band = append(band, xys[i])
		}
		poly, err := plotter.NewPolygon(band)
		if err != nil {
			return err
		}
		fill, err := parseColor(l.FillColor, l.Opacity)
		if err != nil {
			return err
		}
		poly.Color = fill
		poly.LineStyle.Width = 0
		p.Add(poly)
		thumbs = append(thumbs, poly)
	}

	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	line.LineStyle = lineStyle(l)
	if l.Color != "" {
		c, err := parseColor(l.Color, l.Opacity)
		if err != nil {
			return err
		}
		line.LineStyle.Color = c
	}
	if l.Fill == FillToZero && l.FillColor != "" {
		c, err := parseColor(l.FillColor, l.Opacity)
		if err != nil {
			return err
		}
		line.FillColor = c
	}
	p.Add(line)
	if line.LineStyle.Width > 0 {
		thumbs = append(thumbs, line)
	}

	if l.Markers {
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = color.White
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(sc)
	}

	if l.Name != "" && len(thumbs) > 0 {
		p.Legend.Add(l.Name, thumbs...)
	}
	return nil
}

func lineStyle(l Layer) draw.LineStyle {
	ls := plotter.DefaultLineStyle
	ls.Width = vg.Points(l.Width)
	switch l.Dash {
	case Dashed:
		ls.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
	case Dotted:
		ls.Dashes = []vg.Length{vg.Points(2), vg.Points(3)}
	}
	return ls
}

func layerXYs(l Layer) plotter.XYs {
	xys := make(plotter.XYs, len(l.X))
	for i := range l.X {
		xys[i] = plotter.XY{X: l.X[i], Y: l.Y[i]}
	}
	return xys
}

var namedColors = map[string]color.NRGBA{
	"white": {R: 255, G: 255, B: 255, A: 255},
	"black": {A: 255},
	"gray":  {R: 128, G: 128, B: 128, A: 255},
	"grey":  {R: 128, G: 128, B: 128, A: 255},
	"red":   {R: 255, A: 255},
	"blue":  {B: 255, A: 255},
}

// parseColor understands #rrggbb, rgb(), rgba() and a few names. A non-zero
// opacity scales the alpha channel.
func parseColor(s string, opacity float64) (color.NRGBA, error) {
	c, err := parseColorSpec(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return color.NRGBA{}, err
	}
	if opacity > 0 && opacity < 1 {
		c.A = uint8(float64(c.A) * opacity)
	}
	return c, nil
}

func parseColorSpec(s string) (color.NRGBA, error) {
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	if strings.HasPrefix(s, "#") && len(s) == 7 {
		v, err := strconv.ParseUint(s[1:], 16, 32)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("charts: invalid colour %q", s)
		}
		return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
	}

	var body string
	switch {
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		body = s[len("rgba(") : len(s)-1]
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		body = s[len("rgb(") : len(s)-1]
	default:
		return color.NRGBA{}, fmt.Errorf("charts: invalid colour %q", s)
	}
	parts := strings.Split(body, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, fmt.Errorf("charts: invalid colour %q", s)
	}
	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || v < 0 || v > 255 {
			return color.NRGBA{}, fmt.Errorf("charts: invalid colour %q", s)
		}
		rgb[i] = uint8(v)
	}
	alpha := 1.0
	if len(parts) == 4 {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return color.NRGBA{}, fmt.Errorf("charts: invalid colour %q", s)
		}
		alpha = a
	}
	return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: uint8(alpha*255 + 0.5)}, nil
}
