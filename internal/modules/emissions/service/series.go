package service

import (
	"sort"

	"co2dash/internal/modules/emissions/types"
)

// fallbackSurface replaces a missing or non-positive surface area in density mode.
const fallbackSurface = 1.0

// BuildSeries turns joined emission rows into one year-ordered series per
// requested country. Every id gets an entry, empty when it has no rows. Rows
// with a NULL value are left out; nothing is interpolated. In density mode each
// value is divided by the country's surface area.
func BuildSeries(rows []types.EmissionRow, countryIDs []int, density bool) map[int]types.Series {
	out := make(map[int]types.Series, len(countryIDs))
	for _, id := range countryIDs {
		out[id] = types.Series{}
	}
	for _, r := range rows {
		s, ok := out[r.CountryID]
		if !ok || r.CO2 == nil {
			continue
		}
		v := *r.CO2
		if density {
			v /= surfaceDivisor(r.SurfaceKm2)
		}
		out[r.CountryID] = append(s, types.Point{Year: r.Year, Value: v})
	}
	for id, s := range out {
		out[id] = sortSeries(s)
	}
	return out
}

func surfaceDivisor(surface *float64) float64 {
	if surface == nil || *surface <= 0 {
		return fallbackSurface
	}
	return *surface
}

// sortSeries orders by year and keeps the first value of a repeated year.
func sortSeries(s types.Series) types.Series {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Year < s[j].Year })
	out := s[:0]
	for _, p := range s {
		if len(out) > 0 && out[len(out)-1].Year == p.Year {
			continue
		}
		out = append(out, p)
	}
	return out
}

// uniqueIDs drops repeated ids, keeping first positions.
func uniqueIDs(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// mergeObservedFirst combines observed values with predicted estimates. A
// year present in both keeps the observed value.
func mergeObservedFirst(observed types.Series, predicted []types.ForecastPoint) types.Series {
	merged := make(types.Series, 0, len(observed)+len(predicted))
	seen := make(map[int]bool, len(observed))
	for _, p := range observed {
		seen[p.Year] = true
		merged = append(merged, p)
	}
	for _, p := range predicted {
		if seen[p.Year] {
			continue
		}
		seen[p.Year] = true
		merged = append(merged, types.Point{Year: p.Year, Value: p.Estimate})
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Year < merged[j].Year })
	return merged
}
