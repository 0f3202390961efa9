package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/bistro/internal/domain/address"
	"github.com/xenking/bistro/internal/domain/auth"
	"github.com/xenking/bistro/internal/domain/dish"
	"github.com/xenking/bistro/internal/domain/event"
	"github.com/xenking/bistro/internal/domain/pricing"
	"github.com/xenking/bistro/internal/telemetry"
)

// Service encapsulates order lifecycle business logic.
type Service struct {
	dishes    dish.Repository
	addresses address.Repository
	orders    Repository
	events    event.Publisher
	metrics   *telemetry.Metrics
	receipts  ReceiptEncoder
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithEvents sets the publisher notified after lifecycle changes.
func WithEvents(p event.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithMetrics sets the counters the service records to.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithReceipts sets the encoder used by ReceiptQR.
func WithReceipts(r ReceiptEncoder) Option {
	return func(s *Service) { s.receipts = r }
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	dishes dish.Repository,
	addresses address.Repository,
	orders Repository,
	opts ...Option,
) *Service {
	s := &Service{
		dishes:    dishes,
		addresses: addresses,
		orders:    orders,
		events:    event.Nop{},
		metrics:   telemetry.Nop(),
		receipts:  QRReceipts{},
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateOrder validates the lines, prices them against current dish prices
// and persists a pending order with its frozen total.
func (s *Service) CreateOrder(ctx context.Context, p *auth.Principal, addressID string, lines []LineRequest) (*Order, error) {
	if err := auth.Authorize(p, auth.OpCreateOrder); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	ids := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	priced := make([]pricing.Line, len(lines))
	for i, l := range lines {
		if l.Quantity <= 0 {
			return nil, &pricing.InvalidQuantityError{DishID: l.DishID, Quantity: l.Quantity}
		}
		priced[i] = pricing.Line{DishID: l.DishID, Quantity: l.Quantity}
		if _, ok := seen[l.DishID]; !ok {
			seen[l.DishID] = struct{}{}
			ids = append(ids, l.DishID)
		}
	}

	addr, err := s.addresses.GetByID(ctx, strings.TrimSpace(addressID))
	switch {
	case errors.Is(err, address.ErrNotFound):
		return nil, ErrAddressNotOwned
	case err != nil:
		return nil, errors.Wrap(err, "get address")
	case addr.UserID != p.UserID:
		return nil, ErrAddressNotOwned
	}

	fetched, err := s.dishes.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get dishes")
	}
	names := make(map[string]string, len(fetched))
	for _, d := range fetched {
		names[d.ID] = d.Name
	}

	quote, err := pricing.Price(priced, dish.PriceTable(fetched))
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	o := &Order{
		ID:         uuid.New().String(),
		UserID:     p.UserID,
		AddressID:  addr.ID,
		Status:     StatusPending,
		CreatedAt:  now,
		TotalPrice: quote.Total,
		Items:      make([]Item, len(quote.Lines)),
	}
	for i, l := range quote.Lines {
		o.Items[i] = Item{
			ID:        uuid.New().String(),
			DishID:    l.DishID,
			DishName:  names[l.DishID],
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Position:  i,
		}
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.metrics.OrderCreated(ctx, o.TotalPrice.InexactFloat64())
	zctx.From(ctx).Info("Order created",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.Int("items", len(o.Items)),
		zap.String("total", o.TotalPrice.StringFixed(2)),
	)
	s.publish(ctx, event.Event{
		Kind:   event.OrderCreated,
		Key:    o.ID,
		UserID: o.UserID,
		At:     now,
		Attrs: map[string]string{
			"total":      o.TotalPrice.StringFixed(2),
			"address_id": o.AddressID,
		},
	})
	return o, nil
}

// CompleteOrder marks a pending order as completed.
func (s *Service) CompleteOrder(ctx context.Context, p *auth.Principal, orderID string) (*Order, error) {
	if err := auth.Authorize(p, auth.OpCompleteOrder); err != nil {
		return nil, err
	}
	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPending {
		return nil, ErrInvalidTransition
	}
	return s.transition(ctx, p, o, StatusCompleted)
}

// CancelOrder cancels the caller's own pending order once CancelWindow has
// elapsed since creation. The window boundary itself is allowed.
func (s *Service) CancelOrder(ctx context.Context, p *auth.Principal, orderID string) (*Order, error) {
	if err := auth.Authorize(p, auth.OpCancelOwnOrder); err != nil {
		return nil, err
	}
	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != p.UserID {
		return nil, ErrNotOwner
	}
	switch o.Status {
	case StatusCanceled:
		return nil, ErrAlreadyCanceled
	case StatusCompleted:
		return nil, ErrInvalidTransition
	}
	if s.now().Sub(o.CreatedAt) < CancelWindow {
		return nil, ErrTooEarly
	}
	return s.transition(ctx, p, o, StatusCanceled)
}

// StaffCancelOrder cancels any pending order without the ownership and
// waiting-time checks.
func (s *Service) StaffCancelOrder(ctx context.Context, p *auth.Principal, orderID string) (*Order, error) {
	if err := auth.Authorize(p, auth.OpStaffCancelOrder); err != nil {
		return nil, err
	}
	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch o.Status {
	case StatusCanceled:
		return nil, ErrAlreadyCanceled
	case StatusCompleted:
		return nil, ErrInvalidTransition
	}
	return s.transition(ctx, p, o, StatusCanceled)
}

// UpdateStatus applies a staff status change requested by name.
func (s *Service) UpdateStatus(ctx context.Context, p *auth.Principal, orderID string, status Status) (*Order, error) {
	switch status {
	case StatusCompleted:
		return s.CompleteOrder(ctx, p, orderID)
	case StatusCanceled:
		return s.StaffCancelOrder(ctx, p, orderID)
	default:
		return nil, ErrInvalidStatus
	}
}

// GetOrder returns an order visible to the caller: their own, or any for staff.
func (s *Service) GetOrder(ctx context.Context, p *auth.Principal, orderID string) (*Order, error) {
	if err := auth.Authorize(p, auth.OpViewOwnOrders); err != nil {
		return nil, err
	}
	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != p.UserID && !p.Role.Staff() {
		return nil, ErrNotOwner
	}
	return o, nil
}

// ListPending returns the caller's pending orders.
func (s *Service) ListPending(ctx context.Context, p *auth.Principal) ([]Order, error) {
	return s.listOwn(ctx, p, StatusPending)
}

// ListCompleted returns the caller's completed orders.
func (s *Service) ListCompleted(ctx context.Context, p *auth.Principal) ([]Order, error) {
	return s.listOwn(ctx, p, StatusCompleted)
}

// ManagerListPending returns every pending order.
func (s *Service) ManagerListPending(ctx context.Context, p *auth.Principal) ([]Order, error) {
	return s.listAll(ctx, p, StatusPending)
}

// ManagerListCompleted returns every completed order.
func (s *Service) ManagerListCompleted(ctx context.Context, p *auth.Principal) ([]Order, error) {
	return s.listAll(ctx, p, StatusCompleted)
}

// List returns the orders in status visible to the caller: every order for
// staff, their own for customers.
func (s *Service) List(ctx context.Context, p *auth.Principal, status Status) ([]Order, error) {
	if p != nil && p.Role.Staff() {
		return s.listAll(ctx, p, status)
	}
	return s.listOwn(ctx, p, status)
}

func (s *Service) listOwn(ctx context.Context, p *auth.Principal, status Status) ([]Order, error) {
	if err := auth.Authorize(p, auth.OpViewOwnOrders); err != nil {
		return nil, err
	}
	orders, err := s.orders.ListByUser(ctx, p.UserID, status)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s orders", status)
	}
	return orders, nil
}

func (s *Service) listAll(ctx context.Context, p *auth.Principal, status Status) ([]Order, error) {
	if err := auth.Authorize(p, auth.OpViewAllOrders); err != nil {
		return nil, err
	}
	orders, err := s.orders.ListByStatus(ctx, status)
	if err != nil {
		return nil, errors.Wrapf(err, "list all %s orders", status)
	}
	return orders, nil
}

func (s *Service) get(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// transition performs the compare-and-set from pending. Losing a concurrent
// race surfaces as ErrInvalidTransition.
func (s *Service) transition(ctx context.Context, p *auth.Principal, o *Order, to Status) (*Order, error) {
	ok, err := s.orders.Transition(ctx, o.ID, to)
	if err != nil {
		return nil, errors.Wrapf(err, "transition order to %s", to)
	}
	if !ok {
		zctx.From(ctx).Info("Order transition lost race",
			zap.String("order_id", o.ID),
			zap.String("to", string(to)),
		)
		return nil, ErrInvalidTransition
	}
	o.Status = to

	s.metrics.OrderTransitioned(ctx, string(to))
	zctx.From(ctx).Info("Order status changed",
		zap.String("order_id", o.ID),
		zap.String("status", string(to)),
		zap.String("by", p.UserID),
	)
	kind := event.OrderCompleted
	if to == StatusCanceled {
		kind = event.OrderCanceled
	}
	s.publish(ctx, event.Event{
		Kind:   kind,
		Key:    o.ID,
		UserID: o.UserID,
		At:     s.now().UTC(),
		Attrs:  map[string]string{"by": p.UserID},
	})
	return o, nil
}

func (s *Service) publish(ctx context.Context, ev event.Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		zctx.From(ctx).Warn("Publish event failed",
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
	}
}
