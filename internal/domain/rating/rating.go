// Package rating aggregates per-user dish scores.
package rating

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

const (
	MinScore = 1
	MaxScore = 5
)

var (
	ErrInvalidScore = errors.New("score must be between 1 and 5")
	ErrUnknownDish  = errors.New("dish not found")
	ErrDuplicate    = errors.New("dish already rated by user")
	ErrNotFound     = errors.New("rating not found")
)

// Rating is one user's score for one dish. A user has at most one rating per dish.
type Rating struct {
	ID        string
	UserID    string
	DishID    string
	DishName  string
	Score     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stats is the raw aggregate used to derive an average.
type Stats struct {
	Sum   int64
	Count int64
}

// Average returns the mean score rounded to two places, or zero when there
// are no ratings.
func (s Stats) Average() decimal.Decimal {
	if s.Count == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(s.Sum).Div(decimal.NewFromInt(s.Count)).Round(2)
}

// ValidScore reports whether score is within MinScore..MaxScore.
func ValidScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}

// Repository persists ratings.
type Repository interface {
	Get(ctx context.Context, userID, dishID string) (*Rating, error)
	// Create fails with ErrDuplicate if the user already rated the dish.
	Create(ctx context.Context, r *Rating) error
	// UpdateScore fails with ErrNotFound if there is nothing to update.
	UpdateScore(ctx context.Context, userID, dishID string, score int, at time.Time) (*Rating, error)
	ListByUser(ctx context.Context, userID string) ([]Rating, error)
	Stats(ctx context.Context, dishID string) (Stats, error)
}
