// Package dataset loads the static emissions dataset into the database the
// server reads from. Input is CSV with a header naming the columns
// country, surface_km2, year and co2 in any order.
package dataset

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"co2dash/internal/logging"
)

const (
	colCountry = "country"
	colSurface = "surface_km2"
	colYear    = "year"
	colCO2     = "co2"
)

// Row is one country-year record. Blank surface_km2 or co2 cells are stored as NULL.
type Row struct {
	Country    string
	SurfaceKm2 *float64
	Year       int
	CO2        *float64
}

type Stats struct {
	Rows      int
	Countries int
	Years     int
}

// ReadCSV parses every data row of r. Errors carry the 1-based CSV line.
func ReadCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read csv header: empty input")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)

		row, err := parseRecord(record, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{colCountry, colSurface, colYear, colCO2} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("csv header missing column %q", required)
		}
	}
	return idx, nil
}

func parseRecord(record []string, idx map[string]int) (Row, error) {
	field := func(name string) string {
		return strings.TrimSpace(record[idx[name]])
	}

	var row Row
	row.Country = field(colCountry)
	if row.Country == "" {
		return Row{}, errors.New("country is empty")
	}

	year, err := strconv.Atoi(field(colYear))
	if err != nil {
		return Row{}, fmt.Errorf("invalid year %q", field(colYear))
	}
	row.Year = year

	if row.SurfaceKm2, err = optionalFloat(colSurface, field(colSurface)); err != nil {
		return Row{}, err
	}
	if row.CO2, err = optionalFloat(colCO2, field(colCO2)); err != nil {
		return Row{}, err
	}
	return row, nil
}

func optionalFloat(name, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, s)
	}
	return &f, nil
}

//go:embed sql/upsert-country.sql
var upsertCountrySQL string

//go:embed sql/select-country-id.sql
var selectCountrySQL string

//go:embed sql/upsert-year.sql
var upsertYearSQL string

//go:embed sql/select-year-id.sql
var selectYearSQL string

//go:embed sql/upsert-emission.sql
var upsertEmissionSQL string

// Import upserts rows in a single transaction. Countries are matched by name
// and years by value; re-importing a row overwrites its co2 value.
func Import(ctx context.Context, db *sql.DB, rows []Row, logger *slog.Logger) (Stats, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			logger.Error("import rollback failed", "error", err)
		}
	}()

	im, err := newImporter(ctx, tx, logger)
	if err != nil {
		return Stats{}, err
	}
	defer im.close()

	for i, row := range rows {
		if err := im.add(ctx, row); err != nil {
			return Stats{}, fmt.Errorf("row %d (%s %d): %w", i+1, row.Country, row.Year, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit import: %w", err)
	}
	stats := Stats{Rows: len(rows), Countries: len(im.countries), Years: len(im.years)}
	logger.Info("dataset imported", "rows", stats.Rows, "countries", stats.Countries, "years", stats.Years)
	return stats, nil
}

type importer struct {
	logger *slog.Logger

	upsertCountry  *sql.Stmt
	selectCountry  *sql.Stmt
	upsertYear     *sql.Stmt
	selectYear     *sql.Stmt
	upsertEmission *sql.Stmt

	countries map[string]int
	years     map[int]int
}

func newImporter(ctx context.Context, tx *sql.Tx, logger *slog.Logger) (*importer, error) {
	im := &importer{
		logger:    logger,
		countries: map[string]int{},
		years:     map[int]int{},
	}
	for _, s := range []struct {
		dst   **sql.Stmt
		query string
	}{
		{&im.upsertCountry, upsertCountrySQL},
		{&im.selectCountry, selectCountrySQL},
		{&im.upsertYear, upsertYearSQL},
		{&im.selectYear, selectYearSQL},
		{&im.upsertEmission, upsertEmissionSQL},
	} {
		stmt, err := tx.PrepareContext(ctx, s.query)
		if err != nil {
			im.close()
			return nil, fmt.Errorf("prepare import statement: %w", err)
		}
		*s.dst = stmt
	}
	return im, nil
}

func (im *importer) add(ctx context.Context, row Row) error {
	countryID, err := im.countryID(ctx, row)
	if err != nil {
		return err
	}
	yearID, err := im.yearID(ctx, row.Year)
	if err != nil {
		return err
	}
	if _, err := im.upsertEmission.ExecContext(ctx, countryID, yearID, row.CO2); err != nil {
		return fmt.Errorf("upsert emission: %w", err)
	}
	return nil
}

func (im *importer) countryID(ctx context.Context, row Row) (int, error) {
	id, seen := im.countries[row.Country]
	// Surface area is refreshed only from rows that carry it.
	if seen && row.SurfaceKm2 == nil {
		return id, nil
	}
	if _, err := im.upsertCountry.ExecContext(ctx, row.Country, row.SurfaceKm2); err != nil {
		return 0, fmt.Errorf("upsert country: %w", err)
	}
	if seen {
		return id, nil
	}
	if err := im.selectCountry.QueryRowContext(ctx, row.Country).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup country: %w", err)
	}
	im.countries[row.Country] = id
	return id, nil
}

func (im *importer) yearID(ctx context.Context, year int) (int, error) {
	if id, ok := im.years[year]; ok {
		return id, nil
	}
	if _, err := im.upsertYear.ExecContext(ctx, year); err != nil {
		return 0, fmt.Errorf("upsert year: %w", err)
	}
	var id int
	if err := im.selectYear.QueryRowContext(ctx, year).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup year: %w", err)
	}
	im.years[year] = id
	return id, nil
}

func (im *importer) close() {
	for _, stmt := range []*sql.Stmt{im.upsertCountry, im.selectCountry, im.upsertYear, im.selectYear, im.upsertEmission} {
		if stmt != nil {
			logging.SafeClose(stmt, im.logger, "import statement")
		}
	}
}
