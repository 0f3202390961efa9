package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bistro/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, user_id, address_id, status, created_at, total_price)
		VALUES ($1, $2, $3, $4, $5, $6)`

	insertOrderItemSQL = `INSERT INTO order_items (id, order_id, dish_id, quantity, unit_price, position)
		VALUES ($1, $2, $3, $4, $5, $6)`

	orderColumns = `id, user_id, address_id, status, created_at, total_price`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC, id`

	listOrdersByStatusSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE status = $1 ORDER BY created_at DESC, id`

	listOrderItemsSQL = `SELECT oi.order_id, oi.id, oi.dish_id, d.name, oi.quantity, oi.unit_price, oi.position
		FROM order_items oi JOIN dishes d ON d.id = oi.dish_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.position`

	transitionOrderSQL = `UPDATE orders SET status = $2 WHERE id = $1 AND status = 'pending'`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order row and all item rows in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return inTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.UserID, o.AddressID, string(o.Status), o.CreatedAt, o.TotalPrice,
		); err != nil {
			return errors.Wrapf(err, "insert order %q", o.ID)
		}

		batch := &pgx.Batch{}
		for _, it := range o.Items {
			batch.Queue(insertOrderItemSQL, it.ID, o.ID, it.DishID, it.Quantity, it.UnitPrice, it.Position)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrapf(err, "insert items of order %q", o.ID)
		}
		return nil
	})
}

// GetByID returns the order with its items in insertion order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	orders := []order.Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string, status order.Status) ([]order.Order, error) {
	return r.list(ctx, listOrdersByUserSQL, userID, string(status))
}

func (r *OrderRepository) ListByStatus(ctx context.Context, status order.Status) ([]order.Order, error) {
	return r.list(ctx, listOrdersByStatusSQL, string(status))
}

// Transition is a compare-and-set from pending to the target status.
func (r *OrderRepository) Transition(ctx context.Context, id string, to order.Status) (bool, error) {
	tag, err := r.pool.Exec(ctx, transitionOrderSQL, id, string(to))
	if err != nil {
		return false, errors.Wrapf(err, "transition order %q", id)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "scan orders")
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the items of all given orders with a single query.
func (r *OrderRepository) attachItems(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := r.pool.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "list order items")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID string
			it      order.Item
		)
		if err := rows.Scan(&orderID, &it.ID, &it.DishID, &it.DishName, &it.Quantity, &it.UnitPrice, &it.Position); err != nil {
			return errors.Wrap(err, "scan order item")
		}
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return errors.Wrap(rows.Err(), "iterate order items")
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.AddressID, &status, &o.CreatedAt, &o.TotalPrice)
	o.Status = order.Status(status)
	return o, err
}
