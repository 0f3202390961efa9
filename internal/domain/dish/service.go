package dish

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/bistro/internal/domain/auth"
)

// Service exposes the menu to callers, enforcing the authorization policy.
type Service struct {
	dishes Repository
}

// NewService creates a menu Service.
func NewService(dishes Repository) *Service {
	return &Service{dishes: dishes}
}

// List returns the whole menu.
func (s *Service) List(ctx context.Context, p *auth.Principal) ([]Dish, error) {
	if err := auth.Authorize(p, auth.OpBrowseMenu); err != nil {
		return nil, err
	}
	dishes, err := s.dishes.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list dishes")
	}
	return dishes, nil
}

// Get returns a single dish.
func (s *Service) Get(ctx context.Context, p *auth.Principal, id string) (*Dish, error) {
	if err := auth.Authorize(p, auth.OpBrowseMenu); err != nil {
		return nil, err
	}
	return s.dishes.GetByID(ctx, id)
}

// Categories returns all menu categories.
func (s *Service) Categories(ctx context.Context, p *auth.Principal) ([]Category, error) {
	if err := auth.Authorize(p, auth.OpBrowseMenu); err != nil {
		return nil, err
	}
	return s.dishes.ListCategories(ctx)
}

// UpdatePrice changes the current price of a dish. Orders already placed keep
// the total computed when they were created.
func (s *Service) UpdatePrice(ctx context.Context, p *auth.Principal, id string, price decimal.Decimal) (*Dish, error) {
	if err := auth.Authorize(p, auth.OpEditDish); err != nil {
		return nil, err
	}
	if price.IsNegative() {
		return nil, ErrNegativePrice
	}
	d, err := s.dishes.UpdatePrice(ctx, id, price.Round(2))
	if err != nil {
		return nil, err
	}
	zctx.From(ctx).Info("Dish price updated",
		zap.String("dish_id", id),
		zap.String("price", d.Price.StringFixed(2)),
		zap.String("by", p.UserID),
	)
	return d, nil
}
