// Package discount implements the discount code ledger: code validity,
// lazy expiry and per-user usage limits.
package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrCodeNotFound is returned when no discount code matches.
	ErrCodeNotFound = errors.New("discount code not found")
	// ErrExpiredOrInactive is returned when a code is past its expiration or switched off.
	ErrExpiredOrInactive = errors.New("discount code is expired or inactive")
	// ErrUsageLimitReached is returned when the caller exhausted max_usage_per_user.
	ErrUsageLimitReached = errors.New("discount code usage limit reached")
	// ErrDuplicateCode is returned when creating a code that already exists.
	ErrDuplicateCode = errors.New("discount code already exists")
	// ErrInvalidPercentage is returned when the percentage is outside 1..100.
	ErrInvalidPercentage = errors.New("discount percentage must be between 1 and 100")
	// ErrExpirationInPast is returned when the expiration date is not in the future.
	ErrExpirationInPast = errors.New("expiration date must be in the future")
	// ErrInvalidCode is returned when the code string is blank.
	ErrInvalidCode = errors.New("discount code must not be empty")
)

// DefaultMaxUsagePerUser applies when a code is created without an explicit limit.
const DefaultMaxUsagePerUser = 1

// Code is a discount code definition together with its global usage counter.
type Code struct {
	ID              string
	Code            string
	Percentage      int
	ExpirationDate  time.Time
	IsActive        bool
	UsedCount       int
	MaxUsagePerUser int
	CreatedAt       time.Time
}

// Usage tracks how many times one user applied one code.
type Usage struct {
	UserID     string
	CodeID     string
	UsageCount int
}

// Repository persists codes and per-user usage.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Code, error)
	Create(ctx context.Context, c *Code) error
	List(ctx context.Context) ([]Code, error)
	// Deactivate flips is_active to false if it is still true and reports
	// whether a row changed.
	Deactivate(ctx context.Context, id string) (bool, error)
	// DeactivateExpired deactivates every active code whose expiration_date
	// is not after now and returns how many rows changed.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	// RecordUsage atomically increments the user's usage_count for the code,
	// creating the row on first use, and increments the code's used_count.
	// It fails with ErrUsageLimitReached when usage_count already equals limit.
	RecordUsage(ctx context.Context, userID, codeID string, limit int) (*Usage, error)
}
