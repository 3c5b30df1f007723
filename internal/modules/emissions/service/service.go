package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"co2dash/internal/forecast"
	"co2dash/internal/logging"
	"co2dash/internal/modules/emissions/repository"
	"co2dash/internal/modules/emissions/types"
)

// SessionProvider hands out one database connection per request. *sql.DB
// satisfies it.
type SessionProvider interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

// RepositoryFactory builds a repository over one session.
type RepositoryFactory func(q repository.Querier) repository.EmissionsRepository

// Publisher receives a summary of every successful forecast.
type Publisher interface {
	PublishForecast(ctx context.Context, event types.ForecastEvent) error
}

// Service answers the emissions queries, one database session per call.
type Service struct {
	sessions   SessionProvider
	newRepo    RepositoryFactory
	forecaster forecast.Forecaster
	publisher  Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// Option customises a Service built by NewService.
type Option func(*Service)

func WithRepositoryFactory(f RepositoryFactory) Option {
	return func(s *Service) { s.newRepo = f }
}

// WithPublisher sets the forecast event sink. A nil publisher disables publishing.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a Service using the sqlite repository unless WithRepositoryFactory overrides it.
func NewService(sessions SessionProvider, forecaster forecast.Forecaster, opts ...Option) *Service {
	s := &Service{
		sessions:   sessions,
		newRepo:    repository.NewRepository,
		forecaster: forecaster,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// withSession runs fn against a repository bound to a fresh connection and
// releases the connection on every return path, panics included.
func (s *Service) withSession(ctx context.Context, op string, fn func(repo repository.EmissionsRepository) error) error {
	conn, err := s.sessions.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%s: acquire session: %w", op, err)
	}
	defer logging.SafeClose(conn, s.logger, op+" session")
	return fn(s.newRepo(conn))
}

type Selection struct {
	Countries []types.Country
	Years     []types.Year
}

// SelectionData lists countries by name and years by value for the selection form.
func (s *Service) SelectionData(ctx context.Context) (Selection, error) {
	var sel Selection
	err := s.withSession(ctx, "selection", func(repo repository.EmissionsRepository) error {
		var err error
		if sel.Countries, err = repo.GetCountries(ctx); err != nil {
			return fmt.Errorf("get countries: %w", err)
		}
		if sel.Years, err = repo.GetYears(ctx); err != nil {
			return fmt.Errorf("get years: %w", err)
		}
		return nil
	})
	return sel, err
}

// Countries lists countries ordered by name.
func (s *Service) Countries(ctx context.Context) ([]types.Country, error) {
	var out []types.Country
	err := s.withSession(ctx, "countries", func(repo repository.EmissionsRepository) error {
		var err error
		out, err = repo.GetCountries(ctx)
		return err
	})
	return out, err
}

// GlobalAverage returns the per-year mean over the whole dataset.
func (s *Service) GlobalAverage(ctx context.Context) (types.Series, error) {
	var out types.Series
	err := s.withSession(ctx, "global average", func(repo repository.EmissionsRepository) error {
		var err error
		out, err = repo.GetGlobalAverage(ctx)
		return err
	})
	return out, err
}

func placeholderCountry(id int) types.Country {
	return types.Country{ID: id, Name: fmt.Sprintf("Country %d", id)}
}

func lookupCountry(ctx context.Context, repo repository.EmissionsRepository, id int) (types.Country, error) {
	c, found, err := repo.GetCountry(ctx, id)
	if err != nil {
		return types.Country{}, err
	}
	if !found {
		return placeholderCountry(id), nil
	}
	return c, nil
}
