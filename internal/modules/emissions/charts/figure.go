// Package charts builds the dashboard figures. A Figure is an ordered list of
// layers; RenderHTML draws it as an interactive go-echarts page and
// RenderImage draws it as a static image with gonum/plot.
package charts

import (
	"fmt"
	"time"
)

type Dash int

const (
	Solid Dash = iota
	Dashed
	Dotted
)

type Fill int

const (
	FillNone Fill = iota
	FillToZero
	// FillToPrevious shades the area between this layer and the one below it.
	FillToPrevious
)

// Layer is one series. X values are fractional years.
type Layer struct {
	// Name is the legend entry. Unnamed layers stay out of the legend and tooltip.
	Name      string
	X         []float64
	Y         []float64
	Color     string
	Width     float64
	Dash      Dash
	Fill      Fill
	FillColor string
	Markers   bool
	// Opacity scales the line and fill alpha; 0 means opaque.
	Opacity float64
}

// Figure layers are drawn in order, the first at the bottom.
type Figure struct {
	Title  string
	XTitle string
	YTitle string
	// YMax pins the y axis to [0, YMax]; 0 leaves it automatic.
	YMax   float64
	Layers []Layer
}

// LayerByName returns the first layer with the given legend name.
func (f Figure) LayerByName(name string) (Layer, bool) {
	for _, l := range f.Layers {
		if l.Name == name {
			return l, true
		}
	}
	return Layer{}, false
}

// FractionalYear places t on the yearly x axis.
func FractionalYear(t time.Time) float64 {
	start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	end := start.AddDate(1, 0, 0)
	return float64(t.Year()) + t.Sub(start).Hours()/end.Sub(start).Hours()
}

func (f Figure) validate() error {
	for i, l := range f.Layers {
		if len(l.X) != len(l.Y) {
			return fmt.Errorf("charts: layer %d: x has %d values, y has %d", i, len(l.X), len(l.Y))
		}
	}
	return nil
}
