package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bistro/internal/domain/rating"
)

const (
	ratingColumns = `r.id, r.user_id, r.dish_id, d.name, r.score, r.created_at, r.updated_at`

	getRatingSQL = `SELECT ` + ratingColumns + `
		FROM ratings r JOIN dishes d ON d.id = r.dish_id
		WHERE r.user_id = $1 AND r.dish_id = $2`

	listRatingsByUserSQL = `SELECT ` + ratingColumns + `
		FROM ratings r JOIN dishes d ON d.id = r.dish_id
		WHERE r.user_id = $1 ORDER BY r.updated_at DESC, r.id`

	insertRatingSQL = `INSERT INTO ratings (id, user_id, dish_id, score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	updateRatingSQL = `UPDATE ratings SET score = $3, updated_at = $4
		WHERE user_id = $1 AND dish_id = $2`

	ratingStatsSQL = `SELECT COALESCE(SUM(score), 0), COUNT(*) FROM ratings WHERE dish_id = $1`
)

var _ rating.Repository = (*RatingRepository)(nil)

// RatingRepository implements rating.Repository backed by PostgreSQL.
type RatingRepository struct {
	pool *pgxpool.Pool
}

// NewRatingRepository returns a RatingRepository that uses the given pool.
func NewRatingRepository(pool *pgxpool.Pool) *RatingRepository {
	return &RatingRepository{pool: pool}
}

func (r *RatingRepository) Get(ctx context.Context, userID, dishID string) (*rating.Rating, error) {
	rows, err := r.pool.Query(ctx, getRatingSQL, userID, dishID)
	if err != nil {
		return nil, errors.Wrap(err, "get rating")
	}
	rt, err := pgx.CollectExactlyOneRow(rows, scanRating)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rating.ErrNotFound
		}
		return nil, errors.Wrap(err, "get rating")
	}
	return &rt, nil
}

// Create inserts a rating. The (user_id, dish_id) unique constraint turns a
// concurrent double submit into rating.ErrDuplicate.
func (r *RatingRepository) Create(ctx context.Context, rt *rating.Rating) error {
	_, err := r.pool.Exec(ctx, insertRatingSQL, rt.ID, rt.UserID, rt.DishID, rt.Score, rt.CreatedAt, rt.UpdatedAt)
	switch {
	case isUniqueViolation(err):
		return rating.ErrDuplicate
	case isForeignKeyViolation(err):
		return rating.ErrUnknownDish
	case err != nil:
		return errors.Wrap(err, "insert rating")
	}
	return nil
}

func (r *RatingRepository) UpdateScore(ctx context.Context, userID, dishID string, score int, at time.Time) (*rating.Rating, error) {
	tag, err := r.pool.Exec(ctx, updateRatingSQL, userID, dishID, score, at)
	if err != nil {
		return nil, errors.Wrap(err, "update rating")
	}
	if tag.RowsAffected() == 0 {
		return nil, rating.ErrNotFound
	}
	return r.Get(ctx, userID, dishID)
}

func (r *RatingRepository) ListByUser(ctx context.Context, userID string) ([]rating.Rating, error) {
	rows, err := r.pool.Query(ctx, listRatingsByUserSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list ratings")
	}
	return pgx.CollectRows(rows, scanRating)
}

func (r *RatingRepository) Stats(ctx context.Context, dishID string) (rating.Stats, error) {
	var st rating.Stats
	if err := r.pool.QueryRow(ctx, ratingStatsSQL, dishID).Scan(&st.Sum, &st.Count); err != nil {
		return rating.Stats{}, errors.Wrap(err, "rating stats")
	}
	return st, nil
}

func scanRating(row pgx.CollectableRow) (rating.Rating, error) {
	var rt rating.Rating
	err := row.Scan(&rt.ID, &rt.UserID, &rt.DishID, &rt.DishName, &rt.Score, &rt.CreatedAt, &rt.UpdatedAt)
	return rt, err
}
