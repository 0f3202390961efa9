// Package address manages delivery addresses owned by customers.
package address

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/bistro/internal/domain/auth"
)

var (
	// ErrNotFound is returned when an address does not exist.
	ErrNotFound = errors.New("address not found")
	// ErrInvalid is returned when street or area is blank.
	ErrInvalid = errors.New("street and area are required")
)

// Address is a delivery location owned by exactly one user.
type Address struct {
	ID     string
	UserID string
	Street string
	Area   string
}

// String formats the address the way receipts show it.
func (a Address) String() string {
	return a.Street + ", " + a.Area
}

// Repository persists addresses.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Address, error)
	ListByUser(ctx context.Context, userID string) ([]Address, error)
	Create(ctx context.Context, a *Address) error
}

// Service lets a principal manage their own addresses.
type Service struct {
	addresses Repository
}

// NewService creates an address Service.
func NewService(addresses Repository) *Service {
	return &Service{addresses: addresses}
}

// List returns the caller's addresses.
func (s *Service) List(ctx context.Context, p *auth.Principal) ([]Address, error) {
	if err := auth.Authorize(p, auth.OpManageAddresses); err != nil {
		return nil, err
	}
	return s.addresses.ListByUser(ctx, p.UserID)
}

// Create stores a new address owned by the caller.
func (s *Service) Create(ctx context.Context, p *auth.Principal, street, area string) (*Address, error) {
	if err := auth.Authorize(p, auth.OpManageAddresses); err != nil {
		return nil, err
	}
	street, area = strings.TrimSpace(street), strings.TrimSpace(area)
	if street == "" || area == "" {
		return nil, ErrInvalid
	}
	a := &Address{
		ID:     uuid.New().String(),
		UserID: p.UserID,
		Street: street,
		Area:   area,
	}
	if err := s.addresses.Create(ctx, a); err != nil {
		return nil, errors.Wrap(err, "create address")
	}
	return a, nil
}
