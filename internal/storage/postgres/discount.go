package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bistro/internal/domain/discount"
)

const (
	discountColumns = `id, code, discount_percentage, expiration_date, is_active, used_count, max_usage_per_user, created_at`

	getDiscountByCodeSQL = `SELECT ` + discountColumns + ` FROM discount_codes WHERE code = $1`

	listDiscountsSQL = `SELECT ` + discountColumns + ` FROM discount_codes ORDER BY created_at DESC, code`

	insertDiscountSQL = `INSERT INTO discount_codes
		(id, code, discount_percentage, expiration_date, is_active, used_count, max_usage_per_user, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	importDiscountSQL = insertDiscountSQL + ` ON CONFLICT (code) DO NOTHING`

	deactivateDiscountSQL = `UPDATE discount_codes SET is_active = FALSE WHERE id = $1 AND is_active`

	deactivateExpiredSQL = `UPDATE discount_codes SET is_active = FALSE
		WHERE is_active AND expiration_date <= $1`

	upsertUsageSQL = `INSERT INTO user_discounts (user_id, discount_code_id, usage_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, discount_code_id)
		DO UPDATE SET usage_count = user_discounts.usage_count + 1
		WHERE user_discounts.usage_count < $3
		RETURNING usage_count`

	incrementUsedCountSQL = `UPDATE discount_codes SET used_count = used_count + 1
		WHERE id = $1 AND is_active AND expiration_date > now()`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool  *pgxpool.Pool
	retry RetryConfig
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool, retry RetryConfig) *DiscountRepository {
	return &DiscountRepository{pool: pool, retry: retry}
}

// FindByCode looks up a code by exact match.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Code, error) {
	rows, err := r.pool.Query(ctx, getDiscountByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find discount code %q", code)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrCodeNotFound
		}
		return nil, errors.Wrapf(err, "find discount code %q", code)
	}
	return &c, nil
}

func (r *DiscountRepository) Create(ctx context.Context, c *discount.Code) error {
	_, err := r.pool.Exec(ctx, insertDiscountSQL,
		c.ID, c.Code, c.Percentage, c.ExpirationDate, c.IsActive, c.UsedCount, c.MaxUsagePerUser, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return discount.ErrDuplicateCode
		}
		return errors.Wrapf(err, "insert discount code %q", c.Code)
	}
	return nil
}

func (r *DiscountRepository) List(ctx context.Context) ([]discount.Code, error) {
	rows, err := r.pool.Query(ctx, listDiscountsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list discount codes")
	}
	return pgx.CollectRows(rows, scanDiscount)
}

func (r *DiscountRepository) Deactivate(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, deactivateDiscountSQL, id)
	if err != nil {
		return false, errors.Wrapf(err, "deactivate discount code %q", id)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *DiscountRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, deactivateExpiredSQL, now)
	if err != nil {
		return 0, errors.Wrap(err, "deactivate expired codes")
	}
	return tag.RowsAffected(), nil
}

// RecordUsage upserts the per-user counter under its row lock and bumps the
// global used_count in the same transaction. The transaction is retried on
// serialization failures and deadlocks.
func (r *DiscountRepository) RecordUsage(ctx context.Context, userID, codeID string, limit int) (*discount.Usage, error) {
	usage := &discount.Usage{UserID: userID, CodeID: codeID}
	err := withRetry(ctx, r.retry, func(ctx context.Context) error {
		return inTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
			err := tx.QueryRow(ctx, upsertUsageSQL, userID, codeID, limit).Scan(&usage.UsageCount)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return discount.ErrUsageLimitReached
				}
				return errors.Wrap(err, "upsert usage")
			}
			tag, err := tx.Exec(ctx, incrementUsedCountSQL, codeID)
			if err != nil {
				return errors.Wrap(err, "increment used_count")
			}
			if tag.RowsAffected() == 0 {
				return discount.ErrExpiredOrInactive
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return usage, nil
}

// Import inserts codes in one batch, skipping codes that already exist, and
// returns how many rows were added.
func (r *DiscountRepository) Import(ctx context.Context, codes []discount.Code) (int64, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, c := range codes {
		batch.Queue(importDiscountSQL,
			c.ID, c.Code, c.Percentage, c.ExpirationDate, c.IsActive, c.UsedCount, c.MaxUsagePerUser, c.CreatedAt,
		)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()

	var inserted int64
	for range codes {
		tag, err := br.Exec()
		if err != nil {
			return inserted, errors.Wrap(err, "import discount codes")
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

func scanDiscount(row pgx.CollectableRow) (discount.Code, error) {
	var c discount.Code
	err := row.Scan(
		&c.ID, &c.Code, &c.Percentage, &c.ExpirationDate, &c.IsActive,
		&c.UsedCount, &c.MaxUsagePerUser, &c.CreatedAt,
	)
	return c, err
}
