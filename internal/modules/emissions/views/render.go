package views

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"

	"co2dash/internal/modules/emissions/types"
)

//go:embed templates
var viewsFS embed.FS

var pageTmpl *template.Template

var errNotLoaded = errors.New("emissions templates not loaded: call views.LoadTemplates during startup")

// loadTemplatesFromFS loads page templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	pageTmpl, err = template.ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	return nil
}

// LoadTemplates loads embedded templates. Call during startup before serving
// requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// IndexData is the view model of the selection form.
type IndexData struct {
	Countries []types.Country
	Years     []types.Year
	// Slots numbers the country selectors, 1-based.
	Slots     []int
	YearStart int
	YearEnd   int
}

type ComparisonData struct {
	// Chart is the standalone chart page from charts.RenderHTML.
	Chart             string
	Countries         []types.Country
	YearStart         int
	YearEnd           int
	ShowDensity       bool
	ShowGlobalAverage bool
	AI                bool
	ExportURL         string
}

type ForecastData struct {
	Chart         string
	Country       types.Country
	TrainFromYear int
	HorizonYear   int
	ImageURL      string
}

// MessageData renders as "<Lead><strong>Emphasis</strong><Tail>".
type MessageData struct {
	Lead     string
	Emphasis string
	Tail     string
}

func RenderIndex(w io.Writer, data *IndexData) error {
	return execute(w, "index.html", data)
}

func RenderComparison(w io.Writer, data *ComparisonData) error {
	return execute(w, "plot.html", data)
}

func RenderForecast(w io.Writer, data *ForecastData) error {
	return execute(w, "forecast.html", data)
}

// RenderMessage writes a bare paragraph fragment, without the page layout.
func RenderMessage(w io.Writer, data *MessageData) error {
	return execute(w, "partials/message.html", data)
}

func execute(w io.Writer, name string, data any) error {
	if pageTmpl == nil {
		return errNotLoaded
	}
	return pageTmpl.ExecuteTemplate(w, name, data)
}
