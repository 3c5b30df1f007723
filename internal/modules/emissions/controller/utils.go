package controller

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"co2dash/internal/modules/emissions/charts"
	"co2dash/internal/modules/emissions/service"
)

const (
	defaultForecastCountryID = 1
	defaultImageFormat       = "png"
)

// countrySlots numbers the country selectors of the comparison form.
var countrySlots = []int{1, 2, 3, 4, 5}

// parseComparisonForm reads country1..country5, year_start, year_end and the
// display flags. Blank selectors are skipped.
func parseComparisonForm(form url.Values) (service.ComparisonRequest, error) {
	var ids []int
	for _, slot := range countrySlots {
		key := fmt.Sprintf("country%d", slot)
		s := strings.TrimSpace(form.Get(key))
		if s == "" {
			continue
		}
		id, err := strconv.Atoi(s)
		if err != nil {
			return service.ComparisonRequest{}, fmt.Errorf("invalid '%s' (expected integer)", key)
		}
		ids = append(ids, id)
	}
	return comparisonRequest(form, ids)
}

// parseExportQuery reads repeated country parameters plus the same range and
// flags as the comparison form.
func parseExportQuery(q url.Values) (service.ComparisonRequest, error) {
	var ids []int
	for _, s := range q["country"] {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.Atoi(s)
		if err != nil {
			return service.ComparisonRequest{}, fmt.Errorf("invalid 'country' %q (expected integer)", s)
		}
		ids = append(ids, id)
	}
	return comparisonRequest(q, ids)
}

func comparisonRequest(v url.Values, ids []int) (service.ComparisonRequest, error) {
	start, err := intOrDefault(v, "year_start", service.DefaultYearStart)
	if err != nil {
		return service.ComparisonRequest{}, err
	}
	end, err := intOrDefault(v, "year_end", service.DefaultYearEnd)
	if err != nil {
		return service.ComparisonRequest{}, err
	}
	return service.ComparisonRequest{
		CountryIDs: ids,
		YearStart:  start,
		YearEnd:    end,
		Options: service.ComparisonOptions{
			ShowDensity:       isOn(v.Get("show_density")),
			ShowGlobalAverage: isOn(v.Get("show_global_avg")),
			AI:                isOn(v.Get("ai")),
		},
	}, nil
}

func intOrDefault(v url.Values, key string, def int) (int, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid '%s' (expected integer)", key)
	}
	return n, nil
}

// isOn treats checkbox and boolean-ish values as set.
func isOn(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1":
		return true
	}
	return false
}

// parseCountryID falls back to the default country when the value is absent
// or not an integer.
func parseCountryID(s string) int {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultForecastCountryID
	}
	return id
}

func parseImageFormat(s string) (string, error) {
	format := strings.ToLower(strings.TrimSpace(s))
	if format == "" {
		format = defaultImageFormat
	}
	if _, err := charts.ContentType(format); err != nil {
		return "", fmt.Errorf("invalid 'format' %q (expected png or svg)", s)
	}
	return format, nil
}

func exportURL(req service.ComparisonRequest) string {
	q := url.Values{}
	for _, id := range req.CountryIDs {
		q.Add("country", strconv.Itoa(id))
	}
	q.Set("year_start", strconv.Itoa(req.YearStart))
	q.Set("year_end", strconv.Itoa(req.YearEnd))
	if req.Options.ShowDensity {
		q.Set("show_density", "on")
	}
	return "/export.xlsx?" + q.Encode()
}

func imageURL(countryID int, format string) string {
	q := url.Values{}
	q.Set("country_id", strconv.Itoa(countryID))
	q.Set("format", format)
	return "/predict/image?" + q.Encode()
}
