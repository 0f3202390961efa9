// Package order implements the order lifecycle: creation with a frozen total,
// staff completion and time-gated customer cancellation.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusCompleted, StatusCanceled:
		return st, nil
	default:
		return "", ErrInvalidStatus
	}
}

// CancelWindow is how long a customer must wait after placing an order
// before they may cancel it.
const CancelWindow = 30 * time.Minute

var (
	ErrNotFound          = errors.New("order not found")
	ErrNotOwner          = errors.New("order belongs to another user")
	ErrEmptyOrder        = errors.New("order must contain at least one item")
	ErrAddressNotOwned   = errors.New("address does not belong to the user")
	ErrInvalidTransition = errors.New("order is not pending")
	ErrAlreadyCanceled   = errors.New("order is already canceled")
	ErrTooEarly          = errors.New("order can be canceled only 30 minutes after creation")
	ErrInvalidStatus     = errors.New("invalid order status")
)

// Order is a customer order. TotalPrice is computed once at creation from the
// dish prices of that moment and never recomputed.
type Order struct {
	ID         string
	UserID     string
	AddressID  string
	Status     Status
	CreatedAt  time.Time
	TotalPrice decimal.Decimal
	Items      []Item
}

// Item is one order line. Position preserves insertion order.
type Item struct {
	ID        string
	DishID    string
	DishName  string
	Quantity  int
	UnitPrice decimal.Decimal
	Position  int
}

// LineRequest is one requested (dish, quantity) pair.
type LineRequest struct {
	DishID   string
	Quantity int
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create stores the order and its items atomically.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// ListByUser returns the user's orders in the given status, newest first.
	ListByUser(ctx context.Context, userID string, status Status) ([]Order, error)
	// ListByStatus returns all orders in the given status, newest first.
	ListByStatus(ctx context.Context, status Status) ([]Order, error)
	// Transition moves a pending order to the target status. It reports false
	// when the order was no longer pending.
	Transition(ctx context.Context, id string, to Status) (bool, error)
}
