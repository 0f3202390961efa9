package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bistro/internal/domain/auth"
)

// HashToken returns the hex HMAC-SHA256 of token keyed by pepper. Only hashes
// are stored, so a leaked tokens table cannot be replayed.
func HashToken(token string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticator resolves "Authorization: Bearer <token>" to a principal.
type Authenticator struct {
	tokens auth.Repository
	pepper []byte
}

// NewAuthenticator returns an Authenticator looking tokens up in tokens.
func NewAuthenticator(tokens auth.Repository, pepper []byte) *Authenticator {
	return &Authenticator{tokens: tokens, pepper: pepper}
}

// Middleware rejects requests without a valid bearer token and stores the
// principal in the request context otherwise.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, r, auth.ErrUnauthenticated)
			return
		}

		ctx := r.Context()
		p, err := a.tokens.FindByTokenHash(ctx, HashToken(token, a.pepper))
		if err != nil {
			if errors.Is(err, auth.ErrTokenNotFound) {
				err = auth.ErrUnauthenticated
			}
			writeError(w, r, errors.Wrap(err, "authenticate"))
			return
		}

		ctx = auth.WithPrincipal(ctx, p)
		ctx = zctx.Base(ctx, zctx.From(ctx).With(
			zap.String("user_id", p.UserID),
			zap.String("role", string(p.Role)),
		))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
