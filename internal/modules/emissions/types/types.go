package types

import "time"

type Country struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	SurfaceKm2 *float64 `json:"surfaceKm2,omitempty"`
}

type Year struct {
	ID   int `json:"id"`
	Year int `json:"year"`
}

// EmissionRow is one emissions fact joined with its year value and the
// country's surface area.
type EmissionRow struct {
	CountryID  int
	Year       int
	CO2        *float64
	SurfaceKm2 *float64
}

type Point struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// Series is ordered by ascending year.
type Series []Point

func (s Series) Years() []int {
	out := make([]int, len(s))
	for i, p := range s {
		out[i] = p.Year
	}
	return out
}

func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Lookup returns the value recorded for year.
func (s Series) Lookup(year int) (float64, bool) {
	for _, p := range s {
		if p.Year == year {
			return p.Value, true
		}
	}
	return 0, false
}

type ForecastPoint struct {
	Year     int     `json:"year"`
	Estimate float64 `json:"estimate"`
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
}

// ForecastEvent summarizes a computed forecast for downstream consumers.
type ForecastEvent struct {
	CountryID        int       `json:"country_id"`
	CountryName      string    `json:"country_name"`
	GeneratedAt      time.Time `json:"generated_at"`
	LastObservedYear int       `json:"last_observed_year"`
	HorizonYear      int       `json:"horizon_year"`
	Estimate         float64   `json:"estimate"`
	Lower            float64   `json:"lower"`
	Upper            float64   `json:"upper"`
}
