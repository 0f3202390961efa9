package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/bistro/internal/domain/dish"
)

const (
	dishColumns = `d.id, d.name, d.description, d.price, COALESCE(d.category_id, ''), COALESCE(c.name, ''),
		COALESCE((SELECT ROUND(AVG(r.score)::numeric, 2) FROM ratings r WHERE r.dish_id = d.id), 0),
		d.created_at, d.modified_at`

	listDishesSQL = `SELECT ` + dishColumns + `
		FROM dishes d LEFT JOIN categories c ON c.id = d.category_id
		ORDER BY d.id`

	getDishByIDSQL = `SELECT ` + dishColumns + `
		FROM dishes d LEFT JOIN categories c ON c.id = d.category_id
		WHERE d.id = $1`

	getDishesByIDsSQL = `SELECT ` + dishColumns + `
		FROM dishes d LEFT JOIN categories c ON c.id = d.category_id
		WHERE d.id = ANY($1)`

	updateDishPriceSQL = `UPDATE dishes SET price = $2, modified_at = now() WHERE id = $1`

	listCategoriesSQL = `SELECT id, name, active FROM categories ORDER BY name`
)

var _ dish.Repository = (*DishRepository)(nil)

// DishRepository implements dish.Repository backed by PostgreSQL.
type DishRepository struct {
	pool *pgxpool.Pool
}

// NewDishRepository returns a DishRepository that uses the given pool.
func NewDishRepository(pool *pgxpool.Pool) *DishRepository {
	return &DishRepository{pool: pool}
}

// List returns the whole menu ordered by ID.
func (r *DishRepository) List(ctx context.Context) ([]dish.Dish, error) {
	rows, err := r.pool.Query(ctx, listDishesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list dishes")
	}
	return pgx.CollectRows(rows, scanDish)
}

// GetByID returns a single dish by its identifier.
func (r *DishRepository) GetByID(ctx context.Context, id string) (*dish.Dish, error) {
	rows, err := r.pool.Query(ctx, getDishByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get dish %q", id)
	}
	d, err := pgx.CollectExactlyOneRow(rows, scanDish)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dish.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get dish %q", id)
	}
	return &d, nil
}

// GetByIDs returns the dishes matching any of the given IDs. Missing IDs are
// silently absent from the result.
func (r *DishRepository) GetByIDs(ctx context.Context, ids []string) ([]dish.Dish, error) {
	rows, err := r.pool.Query(ctx, getDishesByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get dishes by ids")
	}
	return pgx.CollectRows(rows, scanDish)
}

// UpdatePrice sets the current price of a dish.
func (r *DishRepository) UpdatePrice(ctx context.Context, id string, price decimal.Decimal) (*dish.Dish, error) {
	tag, err := r.pool.Exec(ctx, updateDishPriceSQL, id, price)
	if err != nil {
		return nil, errors.Wrapf(err, "update dish %q price", id)
	}
	if tag.RowsAffected() == 0 {
		return nil, dish.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// ListCategories returns all categories ordered by name.
func (r *DishRepository) ListCategories(ctx context.Context) ([]dish.Category, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (dish.Category, error) {
		var c dish.Category
		err := row.Scan(&c.ID, &c.Name, &c.Active)
		return c, err
	})
}

func scanDish(row pgx.CollectableRow) (dish.Dish, error) {
	var d dish.Dish
	err := row.Scan(
		&d.ID, &d.Name, &d.Description, &d.Price, &d.CategoryID, &d.CategoryName,
		&d.AverageRating, &d.CreatedAt, &d.ModifiedAt,
	)
	return d, err
}
