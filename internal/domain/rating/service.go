package rating

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/bistro/internal/domain/auth"
	"github.com/xenking/bistro/internal/domain/dish"
	"github.com/xenking/bistro/internal/domain/event"
	"github.com/xenking/bistro/internal/telemetry"
)

// Summary is the caller's score alongside the dish average.
type Summary struct {
	DishID        string
	UserRating    int
	AverageRating decimal.Decimal
	Count         int64
}

// Service submits ratings and computes averages. Averages are always read
// from storage.
type Service struct {
	ratings Repository
	dishes  dish.Repository
	events  event.Publisher
	metrics *telemetry.Metrics
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithEvents sets the publisher notified after ratings change.
func WithEvents(p event.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithMetrics sets the counters the service records to.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a rating Service.
func NewService(ratings Repository, dishes dish.Repository, opts ...Option) *Service {
	s := &Service{
		ratings: ratings,
		dishes:  dishes,
		events:  event.Nop{},
		metrics: telemetry.Nop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SubmitRating records the caller's first rating of a dish.
func (s *Service) SubmitRating(ctx context.Context, p *auth.Principal, dishID string, score int) (*Rating, error) {
	if err := s.check(ctx, p, dishID, score); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	r := &Rating{
		ID:        uuid.New().String(),
		UserID:    p.UserID,
		DishID:    dishID,
		Score:     score,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.ratings.Create(ctx, r); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrDuplicate
		}
		return nil, errors.Wrap(err, "create rating")
	}
	s.recorded(ctx, r, false)
	return r, nil
}

// UpdateRating overwrites the caller's existing score for a dish.
func (s *Service) UpdateRating(ctx context.Context, p *auth.Principal, dishID string, score int) (*Rating, error) {
	if err := s.check(ctx, p, dishID, score); err != nil {
		return nil, err
	}
	r, err := s.ratings.UpdateScore(ctx, p.UserID, dishID, score, s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "update rating")
	}
	s.recorded(ctx, r, true)
	return r, nil
}

// UserRating returns the caller's score for a dish, 0 when unrated.
func (s *Service) UserRating(ctx context.Context, p *auth.Principal, dishID string) (int, error) {
	if err := auth.Authorize(p, auth.OpViewRatings); err != nil {
		return 0, err
	}
	r, err := s.ratings.Get(ctx, p.UserID, dishID)
	switch {
	case errors.Is(err, ErrNotFound):
		return 0, nil
	case err != nil:
		return 0, errors.Wrap(err, "get rating")
	}
	return r.Score, nil
}

// ListUserRatings returns every rating the caller made.
func (s *Service) ListUserRatings(ctx context.Context, p *auth.Principal) ([]Rating, error) {
	if err := auth.Authorize(p, auth.OpViewRatings); err != nil {
		return nil, err
	}
	ratings, err := s.ratings.ListByUser(ctx, p.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "list ratings")
	}
	return ratings, nil
}

// AverageRating returns the dish's mean score rounded to two places.
func (s *Service) AverageRating(ctx context.Context, dishID string) (decimal.Decimal, error) {
	st, err := s.ratings.Stats(ctx, dishID)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "rating stats")
	}
	return st.Average(), nil
}

// Summary returns the caller's score and the dish average together.
func (s *Service) Summary(ctx context.Context, p *auth.Principal, dishID string) (*Summary, error) {
	if err := auth.Authorize(p, auth.OpViewRatings); err != nil {
		return nil, err
	}
	if err := s.dishExists(ctx, dishID); err != nil {
		return nil, err
	}
	score, err := s.UserRating(ctx, p, dishID)
	if err != nil {
		return nil, err
	}
	st, err := s.ratings.Stats(ctx, dishID)
	if err != nil {
		return nil, errors.Wrap(err, "rating stats")
	}
	return &Summary{
		DishID:        dishID,
		UserRating:    score,
		AverageRating: st.Average(),
		Count:         st.Count,
	}, nil
}

func (s *Service) check(ctx context.Context, p *auth.Principal, dishID string, score int) error {
	if err := auth.Authorize(p, auth.OpRateDish); err != nil {
		return err
	}
	if !ValidScore(score) {
		return ErrInvalidScore
	}
	return s.dishExists(ctx, dishID)
}

func (s *Service) dishExists(ctx context.Context, dishID string) error {
	if _, err := s.dishes.GetByID(ctx, dishID); err != nil {
		if errors.Is(err, dish.ErrNotFound) {
			return ErrUnknownDish
		}
		return errors.Wrap(err, "get dish")
	}
	return nil
}

func (s *Service) recorded(ctx context.Context, r *Rating, update bool) {
	s.metrics.RatingSubmitted(ctx, update)
	zctx.From(ctx).Info("Dish rated",
		zap.String("dish_id", r.DishID),
		zap.String("user_id", r.UserID),
		zap.Int("score", r.Score),
		zap.Bool("update", update),
	)
	kind := event.RatingSubmitted
	if update {
		kind = event.RatingUpdated
	}
	ev := event.Event{
		Kind:   kind,
		Key:    r.DishID,
		UserID: r.UserID,
		At:     r.UpdatedAt,
		Attrs:  map[string]string{"score": strconv.Itoa(r.Score)},
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		zctx.From(ctx).Warn("Publish event failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}
