package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"co2dash/internal/modules/emissions/types"
)

//go:embed sql/get-countries.sql
var getCountriesSQL string

//go:embed sql/get-years.sql
var getYearsSQL string

//go:embed sql/get-country.sql
var getCountrySQL string

//go:embed sql/get-emissions.sql
var getEmissionsSQL string

//go:embed sql/get-country-history.sql
var getCountryHistorySQL string

//go:embed sql/get-global-average.sql
var getGlobalAverageSQL string

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type EmissionsRepository interface {
	GetCountries(ctx context.Context) ([]types.Country, error)
	GetYears(ctx context.Context) ([]types.Year, error)
	// GetCountry reports found=false for an unknown id.
	GetCountry(ctx context.Context, id int) (country types.Country, found bool, err error)
	GetEmissions(ctx context.Context, countryIDs []int, yearStart, yearEnd int) ([]types.EmissionRow, error)
	// GetCountryHistory returns the non-null values of one country ordered by year.
	GetCountryHistory(ctx context.Context, id int) (types.Series, error)
	// GetGlobalAverage returns the mean of all non-null values per year over every country.
	GetGlobalAverage(ctx context.Context) (types.Series, error)
}

type repositoryImpl struct {
	q Querier
}

func NewRepository(q Querier) EmissionsRepository {
	return &repositoryImpl{q: q}
}

func (r *repositoryImpl) GetCountries(ctx context.Context) ([]types.Country, error) {
	rows, err := r.q.QueryContext(ctx, getCountriesSQL)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows, "countries")

	var out []types.Country
	for rows.Next() {
		c, err := scanCountry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) GetYears(ctx context.Context) ([]types.Year, error) {
	rows, err := r.q.QueryContext(ctx, getYearsSQL)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows, "years")

	var out []types.Year
	for rows.Next() {
		var y types.Year
		if err := rows.Scan(&y.ID, &y.Year); err != nil {
			return nil, err
		}
		out = append(out, y)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) GetCountry(ctx context.Context, id int) (types.Country, bool, error) {
	c, err := scanCountry(r.q.QueryRowContext(ctx, getCountrySQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Country{}, false, nil
	}
	if err != nil {
		return types.Country{}, false, fmt.Errorf("get country %d: %w", id, err)
	}
	return c, true, nil
}

func (r *repositoryImpl) GetEmissions(ctx context.Context, countryIDs []int, yearStart, yearEnd int) ([]types.EmissionRow, error) {
	if len(countryIDs) == 0 {
		return nil, nil
	}
	ids, err := json.Marshal(countryIDs)
	if err != nil {
		return nil, fmt.Errorf("encode country ids: %w", err)
	}
	rows, err := r.q.QueryContext(ctx, getEmissionsSQL, string(ids), yearStart, yearEnd)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows, "emissions")

	var out []types.EmissionRow
	for rows.Next() {
		var (
			row     types.EmissionRow
			co2     sql.NullFloat64
			surface sql.NullFloat64
		)
		if err := rows.Scan(&row.CountryID, &row.Year, &co2, &surface); err != nil {
			return nil, err
		}
		row.CO2 = nullableFloat(co2)
		row.SurfaceKm2 = nullableFloat(surface)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) GetCountryHistory(ctx context.Context, id int) (types.Series, error) {
	rows, err := r.q.QueryContext(ctx, getCountryHistorySQL, id)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows, "country history")
	return scanSeries(rows)
}

func (r *repositoryImpl) GetGlobalAverage(ctx context.Context) (types.Series, error) {
	rows, err := r.q.QueryContext(ctx, getGlobalAverageSQL)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows, "global average")
	return scanSeries(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCountry(s scanner) (types.Country, error) {
	var (
		c       types.Country
		surface sql.NullFloat64
	)
	if err := s.Scan(&c.ID, &c.Name, &surface); err != nil {
		return types.Country{}, err
	}
	c.SurfaceKm2 = nullableFloat(surface)
	return c, nil
}

func scanSeries(rows *sql.Rows) (types.Series, error) {
	var out types.Series
	for rows.Next() {
		var p types.Point
		if err := rows.Scan(&p.Year, &p.Value); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Error("close "+what+" rows", "error", err)
	}
}
