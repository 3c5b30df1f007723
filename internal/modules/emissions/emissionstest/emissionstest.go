// Package emissionstest provides an in-memory emissions database for tests.
package emissionstest

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"co2dash/internal/migrate"
	"co2dash/internal/modules/emissions/types"
)

var dbSeq atomic.Int64

type Emission struct {
	CountryID int
	Year      int
	CO2       *float64
}

type Fixture struct {
	Countries []types.Country
	Emissions []Emission
	// Years without emissions; years referenced by Emissions are added automatically.
	Years []int
}

// F returns a pointer to v.
func F(v float64) *float64 { return &v }

// Open returns a migrated, shared-cache in-memory database closed at test cleanup.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:emissionstest%d?mode=memory&cache=shared&_foreign_keys=on", dbSeq.Add(1))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// shared-cache memory databases vanish with their last connection
	db.SetMaxIdleConns(4)
	t.Cleanup(func() { _ = db.Close() })

	if err := migrate.Run(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Seed inserts the fixture. Year ids equal the year value.
func Seed(t testing.TB, db *sql.DB, f Fixture) {
	t.Helper()
	for _, c := range f.Countries {
		if _, err := db.Exec(`INSERT INTO countries (country_id, name, surface_km2) VALUES (?, ?, ?)`,
			c.ID, c.Name, c.SurfaceKm2); err != nil {
			t.Fatalf("insert country %d: %v", c.ID, err)
		}
	}
	years := map[int]bool{}
	for _, y := range f.Years {
		years[y] = true
	}
	for _, e := range f.Emissions {
		years[e.Year] = true
	}
	for y := range years {
		if _, err := db.Exec(`INSERT INTO years (year_id, year) VALUES (?, ?)`, y, y); err != nil {
			t.Fatalf("insert year %d: %v", y, err)
		}
	}
	for _, e := range f.Emissions {
		if _, err := db.Exec(`INSERT INTO emissions (country_id, year_id, co2) VALUES (?, ?, ?)`,
			e.CountryID, e.Year, e.CO2); err != nil {
			t.Fatalf("insert emission %d/%d: %v", e.CountryID, e.Year, err)
		}
	}
}

// Standard is a small dataset: Alpha with the reference values, Beta with a
// null year, Gamma without a surface area, Delta with no emissions at all.
func Standard() Fixture {
	return Fixture{
		Countries: []types.Country{
			{ID: 1, Name: "Alpha", SurfaceKm2: F(50)},
			{ID: 2, Name: "Beta", SurfaceKm2: F(200)},
			{ID: 3, Name: "Gamma"},
			{ID: 4, Name: "Delta", SurfaceKm2: F(10)},
		},
		Emissions: []Emission{
			{CountryID: 1, Year: 1990, CO2: F(100)},
			{CountryID: 1, Year: 1995, CO2: F(150)},
			{CountryID: 1, Year: 2000, CO2: F(200)},
			{CountryID: 2, Year: 1990, CO2: F(300)},
			{CountryID: 2, Year: 1995, CO2: nil},
			{CountryID: 2, Year: 2000, CO2: F(500)},
			{CountryID: 3, Year: 1985, CO2: F(40)},
			{CountryID: 3, Year: 1990, CO2: F(20)},
		},
		Years: []int{2005},
	}
}
