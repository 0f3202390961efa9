package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bistro/internal/domain/auth"
)

const (
	findPrincipalByTokenSQL = `SELECT u.id, u.username, u.role
		FROM auth_tokens t JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = $1 AND t.active`

	upsertUserSQL = `INSERT INTO users (id, username, role) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, role = EXCLUDED.role`

	storeTokenSQL = `INSERT INTO auth_tokens (token_hash, user_id) VALUES ($1, $2)
		ON CONFLICT (token_hash) DO UPDATE SET user_id = EXCLUDED.user_id, active = TRUE`
)

var _ auth.Repository = (*TokenRepository)(nil)

// TokenRepository resolves bearer token hashes to principals.
type TokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository returns a TokenRepository that uses the given pool.
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// FindByTokenHash looks up the owner of an active token by its HMAC-SHA256 hash.
func (r *TokenRepository) FindByTokenHash(ctx context.Context, hash string) (*auth.Principal, error) {
	var (
		p    auth.Principal
		role string
	)
	err := r.pool.QueryRow(ctx, findPrincipalByTokenSQL, hash).Scan(&p.UserID, &p.Username, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrTokenNotFound
		}
		return nil, errors.Wrap(err, "find token")
	}
	p.Role = auth.Role(role)
	return &p, nil
}

// UpsertUser creates or updates a user record.
func (r *TokenRepository) UpsertUser(ctx context.Context, p auth.Principal) error {
	if _, err := r.pool.Exec(ctx, upsertUserSQL, p.UserID, p.Username, string(p.Role)); err != nil {
		return errors.Wrapf(err, "upsert user %q", p.Username)
	}
	return nil
}

// StoreToken binds a token hash to a user.
func (r *TokenRepository) StoreToken(ctx context.Context, hash, userID string) error {
	if _, err := r.pool.Exec(ctx, storeTokenSQL, hash, userID); err != nil {
		return errors.Wrap(err, "store token")
	}
	return nil
}
