// Package report provides manager analytics over placed orders.
package report

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

const (
	DefaultTopN = 5
	MaxTopN     = 100
)

var (
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrInvalidLimit     = errors.New("limit must be between 1 and 100")
)

// TopDish is a dish ranked by how many order lines reference it.
type TopDish struct {
	DishID     string
	Name       string
	OrderCount int64
}

// RevenueLine is an order line contributing to revenue. Price is the dish's
// current price, not the price at order time.
type RevenueLine struct {
	OrderID   string
	DishID    string
	DishName  string
	Price     decimal.Decimal
	Quantity  int
	OrderedAt time.Time
}

// Revenue is the result of a revenue query.
type Revenue struct {
	Start time.Time
	End   time.Time
	Total decimal.Decimal
	Lines []RevenueLine
}

// Repository runs the aggregate queries.
type Repository interface {
	// TopDishes ranks dishes by order line count descending, ties by dish id.
	TopDishes(ctx context.Context, n int) ([]TopDish, error)
	// RevenueLines returns lines of orders created within [start, end].
	RevenueLines(ctx context.Context, start, end time.Time) ([]RevenueLine, error)
}

// Cache stores ranked dishes for a short time.
type Cache interface {
	GetTopDishes(ctx context.Context, n int) ([]TopDish, bool, error)
	SetTopDishes(ctx context.Context, n int, dishes []TopDish) error
}

// SumRevenue adds the price of every line once. Quantity is not multiplied in.
func SumRevenue(lines []RevenueLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Price)
	}
	return total.Round(2)
}

const dateLayout = "2006-01-02"

// ParseRange parses report bounds given as dates or RFC 3339 timestamps.
// A date-only end bound covers the whole day.
func ParseRange(start, end string) (time.Time, time.Time, error) {
	from, _, err := parseBound(start)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrapf(ErrInvalidDateRange, "start %q", start)
	}
	to, dateOnly, err := parseBound(end)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrapf(ErrInvalidDateRange, "end %q", end)
	}
	if dateOnly {
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, errors.Wrap(ErrInvalidDateRange, "start after end")
	}
	return from, to, nil
}

func parseBound(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}
