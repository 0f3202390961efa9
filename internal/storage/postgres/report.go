package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bistro/internal/domain/report"
)

const (
	topDishesSQL = `SELECT d.id, d.name, COUNT(oi.id) AS order_count
		FROM order_items oi JOIN dishes d ON d.id = oi.dish_id
		GROUP BY d.id, d.name
		ORDER BY order_count DESC, d.id ASC
		LIMIT $1`

	revenueLinesSQL = `SELECT o.id, d.id, d.name, d.price, oi.quantity, o.created_at
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN dishes d ON d.id = oi.dish_id
		WHERE o.created_at BETWEEN $1 AND $2
		ORDER BY o.created_at, o.id, oi.position`
)

var _ report.Repository = (*ReportRepository)(nil)

// ReportRepository runs the analytics queries.
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository returns a ReportRepository that uses the given pool.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

func (r *ReportRepository) TopDishes(ctx context.Context, n int) ([]report.TopDish, error) {
	rows, err := r.pool.Query(ctx, topDishesSQL, n)
	if err != nil {
		return nil, errors.Wrap(err, "top dishes")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (report.TopDish, error) {
		var t report.TopDish
		err := row.Scan(&t.DishID, &t.Name, &t.OrderCount)
		return t, err
	})
}

// RevenueLines returns every line of orders created within [start, end],
// priced at the dish's current price.
func (r *ReportRepository) RevenueLines(ctx context.Context, start, end time.Time) ([]report.RevenueLine, error) {
	rows, err := r.pool.Query(ctx, revenueLinesSQL, start, end)
	if err != nil {
		return nil, errors.Wrap(err, "revenue lines")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (report.RevenueLine, error) {
		var l report.RevenueLine
		err := row.Scan(&l.OrderID, &l.DishID, &l.DishName, &l.Price, &l.Quantity, &l.OrderedAt)
		return l, err
	})
}
