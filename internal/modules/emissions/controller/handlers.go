package controller

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"co2dash/internal/modules/emissions/charts"
	"co2dash/internal/modules/emissions/export"
	"co2dash/internal/modules/emissions/service"
	"co2dash/internal/modules/emissions/types"
	"co2dash/internal/modules/emissions/views"
	"co2dash/internal/utils"
)

func (c *emissionsControllerImpl) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	sel, err := c.service.SelectionData(r.Context())
	if err != nil {
		c.logger.Error("index: load selection failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load countries")
		return
	}
	data := &views.IndexData{
		Countries: sel.Countries,
		Years:     sel.Years,
		Slots:     countrySlots,
		YearStart: service.DefaultYearStart,
		YearEnd:   service.DefaultYearEnd,
	}
	var buf bytes.Buffer
	if err := views.RenderIndex(&buf, data); err != nil {
		c.logger.Error("index template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	utils.WriteHTML(w, http.StatusOK, buf.Bytes())
}

func (c *emissionsControllerImpl) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	req, err := parseComparisonForm(r.PostForm)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, ok := c.compare(w, r, req)
	if !ok {
		return
	}

	countries := make([]types.Country, len(res.Countries))
	for i, cs := range res.Countries {
		countries[i] = cs.Country
	}
	chart, err := renderChart(charts.ComposeComparison(res))
	if err != nil {
		c.logger.Error("comparison chart render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	opts := res.Request.Options
	data := &views.ComparisonData{
		Chart:             chart,
		Countries:         countries,
		YearStart:         res.Request.YearStart,
		YearEnd:           res.Request.YearEnd,
		ShowDensity:       opts.ShowDensity,
		ShowGlobalAverage: opts.ShowGlobalAverage,
		AI:                opts.AI,
		ExportURL:         exportURL(res.Request),
	}
	var buf bytes.Buffer
	if err := views.RenderComparison(&buf, data); err != nil {
		c.logger.Error("comparison template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	utils.WriteHTML(w, http.StatusOK, buf.Bytes())
}

// compare runs the comparison and writes the error response on failure.
func (c *emissionsControllerImpl) compare(w http.ResponseWriter, r *http.Request, req service.ComparisonRequest) (service.ComparisonResult, bool) {
	res, err := c.service.Compare(r.Context(), req)
	switch {
	case err == nil:
		return res, true
	case errors.Is(err, service.ErrNoCountries), errors.Is(err, service.ErrTooMany), errors.Is(err, service.ErrYearRange):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		c.logger.Error("comparison failed", "countries", req.CountryIDs, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load emissions")
	}
	return service.ComparisonResult{}, false
}

func (c *emissionsControllerImpl) handleForecast(w http.ResponseWriter, r *http.Request) {
	countryID := parseCountryID(r.URL.Query().Get("country_id"))

	res, err := c.service.Forecast(r.Context(), countryID)
	if err != nil {
		c.logger.Error("forecast: load failed", "country_id", countryID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load emissions")
		return
	}

	var buf bytes.Buffer
	switch {
	case res.NoData:
		err = views.RenderMessage(&buf, &views.MessageData{
			Lead: "No data available for ", Emphasis: res.Country.Name, Tail: ".",
		})
	case res.Failed():
		err = views.RenderMessage(&buf, &views.MessageData{
			Lead: fmt.Sprintf("Error while generating the chart: %v", res.Err),
		})
	default:
		var chart string
		if chart, err = renderChart(charts.ComposeForecast(res, c.now())); err != nil {
			break
		}
		err = views.RenderForecast(&buf, &views.ForecastData{
			Chart:         chart,
			Country:       res.Country,
			TrainFromYear: service.TrainFromYear,
			HorizonYear:   horizonYear(res),
			ImageURL:      imageURL(countryID, defaultImageFormat),
		})
	}
	if err != nil {
		c.logger.Error("forecast template render failed", "country_id", countryID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	utils.WriteHTML(w, http.StatusOK, buf.Bytes())
}

func renderChart(fig charts.Figure) (string, error) {
	var buf bytes.Buffer
	if err := charts.RenderHTML(&buf, fig); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (c *emissionsControllerImpl) handleForecastImage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, err := parseImageFormat(q.Get("format"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	countryID := parseCountryID(q.Get("country_id"))

	res, err := c.service.Forecast(r.Context(), countryID)
	if err != nil {
		c.logger.Error("forecast image: load failed", "country_id", countryID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load emissions")
		return
	}
	if res.NoData {
		utils.WriteError(w, http.StatusNotFound, fmt.Sprintf("no data available for %s", res.Country.Name))
		return
	}
	if res.Failed() {
		utils.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("error while generating the chart: %v", res.Err))
		return
	}

	var buf bytes.Buffer
	if err := charts.RenderImage(&buf, charts.ComposeForecast(res, c.now()), format); err != nil {
		c.logger.Error("forecast image render failed", "country_id", countryID, "format", format, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render image")
		return
	}
	ct, _ := charts.ContentType(format)
	utils.WriteBody(w, http.StatusOK, ct, buf.Bytes())
}

func (c *emissionsControllerImpl) handleExport(w http.ResponseWriter, r *http.Request) {
	req, err := parseExportQuery(r.URL.Query())
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, ok := c.compare(w, r, req)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteComparison(&buf, res, c.logger); err != nil {
		c.logger.Error("export failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to build workbook")
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="co2-comparison.xlsx"`)
	utils.WriteBody(w, http.StatusOK, export.ContentType, buf.Bytes())
}

func (c *emissionsControllerImpl) handleCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := c.service.Countries(r.Context())
	if err != nil {
		c.logger.Error("countries: load failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load countries")
		return
	}
	if countries == nil {
		countries = []types.Country{}
	}
	utils.WriteJSON(w, http.StatusOK, countries)
}

func (c *emissionsControllerImpl) handleGlobalAverage(w http.ResponseWriter, r *http.Request) {
	avg, err := c.service.GlobalAverage(r.Context())
	if err != nil {
		c.logger.Error("global average: load failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load global average")
		return
	}
	if avg == nil {
		avg = types.Series{}
	}
	utils.WriteJSON(w, http.StatusOK, avg)
}

func horizonYear(res service.ForecastResult) int {
	if len(res.Predictions) == 0 {
		return 0
	}
	return res.Predictions[len(res.Predictions)-1].Year
}
