package service

import (
	"context"
	"errors"
	"fmt"

	"co2dash/internal/modules/emissions/repository"
	"co2dash/internal/modules/emissions/types"
)

const (
	MaxCountries     = 5
	DefaultYearStart = 1990
	DefaultYearEnd   = 2023
)

var (
	ErrNoCountries = errors.New("select at least one country")
	ErrTooMany     = fmt.Errorf("select at most %d countries", MaxCountries)
	ErrYearRange   = errors.New("year_start must be <= year_end")
)

// ComparisonOptions are the display switches of the comparison view.
type ComparisonOptions struct {
	ShowDensity       bool
	ShowGlobalAverage bool
	// AI is accepted and echoed back; it has no effect.
	AI bool
}

type ComparisonRequest struct {
	CountryIDs []int
	YearStart  int
	YearEnd    int
	Options    ComparisonOptions
}

func (r ComparisonRequest) Validate() error {
	if len(r.CountryIDs) == 0 {
		return ErrNoCountries
	}
	if len(r.CountryIDs) > MaxCountries {
		return ErrTooMany
	}
	if r.YearStart > r.YearEnd {
		return ErrYearRange
	}
	return nil
}

type CountrySeries struct {
	Country types.Country
	Series  types.Series
}

type ComparisonResult struct {
	Request ComparisonRequest
	// Countries follows the selection order.
	Countries []CountrySeries
	// GlobalAverage covers the whole dataset regardless of the selection.
	GlobalAverage types.Series
}

func (s *Service) Compare(ctx context.Context, req ComparisonRequest) (ComparisonResult, error) {
	req.CountryIDs = uniqueIDs(req.CountryIDs)
	if err := req.Validate(); err != nil {
		return ComparisonResult{}, err
	}

	res := ComparisonResult{Request: req}
	err := s.withSession(ctx, "comparison", func(repo repository.EmissionsRepository) error {
		rows, err := repo.GetEmissions(ctx, req.CountryIDs, req.YearStart, req.YearEnd)
		if err != nil {
			return fmt.Errorf("get emissions: %w", err)
		}
		series := BuildSeries(rows, req.CountryIDs, req.Options.ShowDensity)

		for _, id := range req.CountryIDs {
			c, err := lookupCountry(ctx, repo, id)
			if err != nil {
				return err
			}
			res.Countries = append(res.Countries, CountrySeries{Country: c, Series: series[id]})
		}

		if res.GlobalAverage, err = repo.GetGlobalAverage(ctx); err != nil {
			return fmt.Errorf("get global average: %w", err)
		}
		return nil
	})
	if err != nil {
		return ComparisonResult{}, err
	}

	s.logger.Debug("comparison built",
		"countries", req.CountryIDs,
		"year_start", req.YearStart,
		"year_end", req.YearEnd,
		"density", req.Options.ShowDensity,
	)
	return res, nil
}
