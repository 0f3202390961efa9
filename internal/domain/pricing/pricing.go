// Package pricing computes line and order totals with exact decimal arithmetic.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// UnknownDishError indicates a line references a dish missing from the price table.
type UnknownDishError struct {
	DishID string
}

func (e *UnknownDishError) Error() string {
	return fmt.Sprintf("dish %s not found", e.DishID)
}

// InvalidQuantityError indicates a line has a non-positive quantity.
type InvalidQuantityError struct {
	DishID   string
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for dish %s", e.DishID)
}

// NegativePriceError indicates a dish is priced below zero.
type NegativePriceError struct {
	DishID string
	Price  decimal.Decimal
}

func (e *NegativePriceError) Error() string {
	return fmt.Sprintf("price %s of dish %s is negative", e.Price, e.DishID)
}

// Line is a single (dish, quantity) request.
type Line struct {
	DishID   string
	Quantity int
}

// PricedLine is a Line resolved against the price table.
type PricedLine struct {
	DishID    string
	Quantity  int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

// Quote is the result of pricing a set of lines.
type Quote struct {
	Lines []PricedLine
	Total decimal.Decimal
}

// LineTotal returns price * quantity.
func LineTotal(dishID string, price decimal.Decimal, quantity int) (decimal.Decimal, error) {
	if quantity <= 0 {
		return decimal.Zero, &InvalidQuantityError{DishID: dishID, Quantity: quantity}
	}
	if price.IsNegative() {
		return decimal.Zero, &NegativePriceError{DishID: dishID, Price: price}
	}
	return price.Mul(decimal.NewFromInt(int64(quantity))), nil
}

// Price resolves every line against prices and sums the line totals.
// Lines are validated in order, so the first offending line determines the error.
func Price(lines []Line, prices map[string]decimal.Decimal) (Quote, error) {
	q := Quote{
		Lines: make([]PricedLine, 0, len(lines)),
		Total: decimal.Zero,
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return Quote{}, &InvalidQuantityError{DishID: l.DishID, Quantity: l.Quantity}
		}
		price, ok := prices[l.DishID]
		if !ok {
			return Quote{}, &UnknownDishError{DishID: l.DishID}
		}
		total, err := LineTotal(l.DishID, price, l.Quantity)
		if err != nil {
			return Quote{}, err
		}
		q.Lines = append(q.Lines, PricedLine{
			DishID:    l.DishID,
			Quantity:  l.Quantity,
			UnitPrice: price,
			Total:     total,
		})
		q.Total = q.Total.Add(total)
	}
	q.Total = q.Total.Round(2)
	return q, nil
}

// OrderTotal sums already priced lines.
func OrderTotal(lines []PricedLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total)
	}
	return sum.Round(2)
}
