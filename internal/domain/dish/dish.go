// Package dish holds the menu read model the ordering core prices against.
package dish

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested dish does not exist.
	ErrNotFound = errors.New("dish not found")
	// ErrNegativePrice is returned when a price edit would go below zero.
	ErrNegativePrice = errors.New("price must not be negative")
)

// Dish represents a menu item available for ordering. AverageRating is
// derived from stored ratings on read.
type Dish struct {
	ID            string
	Name          string
	Description   string
	Price         decimal.Decimal
	CategoryID    string
	CategoryName  string
	AverageRating decimal.Decimal
	CreatedAt     time.Time
	ModifiedAt    time.Time
}

// Category groups dishes on the menu.
type Category struct {
	ID     string
	Name   string
	Active bool
}

// Repository defines catalog reads and the manager price edit.
type Repository interface {
	List(ctx context.Context) ([]Dish, error)
	GetByID(ctx context.Context, id string) (*Dish, error)
	GetByIDs(ctx context.Context, ids []string) ([]Dish, error)
	UpdatePrice(ctx context.Context, id string, price decimal.Decimal) (*Dish, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// PriceTable indexes dish prices by ID.
func PriceTable(dishes []Dish) map[string]decimal.Decimal {
	m := make(map[string]decimal.Decimal, len(dishes))
	for _, d := range dishes {
		m[d.ID] = d.Price
	}
	return m
}
