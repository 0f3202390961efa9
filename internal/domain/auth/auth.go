// Package auth defines the authenticated principal, its role, and the
// authorization predicate every domain operation is checked against.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// Role is the coarse permission level of a principal.
type Role string

const (
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
	RoleCustomer Role = "customer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleManager, RoleEmployee, RoleCustomer:
		return true
	default:
		return false
	}
}

// Staff reports whether r belongs to restaurant personnel.
func (r Role) Staff() bool {
	return r == RoleManager || r == RoleEmployee
}

var (
	// ErrUnauthenticated is returned when no principal accompanies a request.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when the principal's role may not perform an operation.
	ErrForbidden = errors.New("operation not permitted for role")
	// ErrTokenNotFound is returned by Repository when no active token matches.
	ErrTokenNotFound = errors.New("token not found")
)

// Principal is an authenticated caller.
type Principal struct {
	UserID   string
	Username string
	Role     Role
}

// Repository resolves bearer token hashes to principals.
type Repository interface {
	FindByTokenHash(ctx context.Context, hash string) (*Principal, error)
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored in ctx, if any.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
