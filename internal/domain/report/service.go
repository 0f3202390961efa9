package report

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bistro/internal/domain/auth"
	"github.com/xenking/bistro/internal/telemetry"
)

// NopCache never hits.
type NopCache struct{}

func (NopCache) GetTopDishes(context.Context, int) ([]TopDish, bool, error) { return nil, false, nil }
func (NopCache) SetTopDishes(context.Context, int, []TopDish) error         { return nil }

// Service is the manager reporting facade.
type Service struct {
	reports Repository
	cache   Cache
	metrics *telemetry.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithCache sets the top dishes cache.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithMetrics sets the counters the service records to.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a reporting Service.
func NewService(reports Repository, opts ...Option) *Service {
	s := &Service{
		reports: reports,
		cache:   NopCache{},
		metrics: telemetry.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// TopDishes returns the n most frequently ordered dishes. Cache failures are
// logged and the query runs against storage.
func (s *Service) TopDishes(ctx context.Context, p *auth.Principal, n int) ([]TopDish, error) {
	if err := auth.Authorize(p, auth.OpViewReports); err != nil {
		return nil, err
	}
	if n < 1 || n > MaxTopN {
		return nil, ErrInvalidLimit
	}

	lg := zctx.From(ctx)
	cached, ok, err := s.cache.GetTopDishes(ctx, n)
	if err != nil {
		lg.Warn("Top dishes cache read failed", zap.Error(err))
	}
	s.metrics.ReportCacheLookup(ctx, ok)
	if ok {
		return cached, nil
	}

	dishes, err := s.reports.TopDishes(ctx, n)
	if err != nil {
		return nil, errors.Wrap(err, "top dishes")
	}
	if err := s.cache.SetTopDishes(ctx, n, dishes); err != nil {
		lg.Warn("Top dishes cache write failed", zap.Error(err))
	}
	return dishes, nil
}

// RevenueInRange sums the current price of every order line whose order was
// created within the inclusive range.
func (s *Service) RevenueInRange(ctx context.Context, p *auth.Principal, start, end string) (*Revenue, error) {
	if err := auth.Authorize(p, auth.OpViewReports); err != nil {
		return nil, err
	}
	from, to, err := ParseRange(start, end)
	if err != nil {
		return nil, err
	}
	lines, err := s.reports.RevenueLines(ctx, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "revenue lines")
	}
	return &Revenue{
		Start: from,
		End:   to,
		Total: SumRevenue(lines),
		Lines: lines,
	}, nil
}
