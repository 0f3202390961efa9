package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bistro/internal/domain/address"
	"github.com/xenking/bistro/internal/domain/auth"
	"github.com/xenking/bistro/internal/domain/discount"
	"github.com/xenking/bistro/internal/domain/dish"
	"github.com/xenking/bistro/internal/domain/order"
	"github.com/xenking/bistro/internal/domain/pricing"
	"github.com/xenking/bistro/internal/domain/rating"
	"github.com/xenking/bistro/internal/domain/report"
	"github.com/xenking/bistro/pkg/httpmiddleware"
)

// requestError is a malformed request body or parameter.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type errorKind struct {
	status int
	kind   string
}

var sentinelKinds = []struct {
	err  error
	kind errorKind
}{
	{auth.ErrUnauthenticated, errorKind{http.StatusUnauthorized, "Unauthorized"}},
	{auth.ErrForbidden, errorKind{http.StatusForbidden, "Forbidden"}},

	{order.ErrNotFound, errorKind{http.StatusNotFound, "OrderNotFound"}},
	{order.ErrNotOwner, errorKind{http.StatusForbidden, "NotOwner"}},
	{order.ErrEmptyOrder, errorKind{http.StatusBadRequest, "EmptyOrder"}},
	{order.ErrAddressNotOwned, errorKind{http.StatusBadRequest, "AddressNotOwned"}},
	{order.ErrInvalidStatus, errorKind{http.StatusBadRequest, "InvalidStatus"}},
	{order.ErrInvalidTransition, errorKind{http.StatusConflict, "InvalidTransition"}},
	{order.ErrAlreadyCanceled, errorKind{http.StatusConflict, "AlreadyCanceled"}},
	{order.ErrTooEarly, errorKind{http.StatusConflict, "TooEarly"}},

	{discount.ErrCodeNotFound, errorKind{http.StatusBadRequest, "CodeNotFound"}},
	{discount.ErrExpiredOrInactive, errorKind{http.StatusBadRequest, "CodeExpiredOrInactive"}},
	{discount.ErrUsageLimitReached, errorKind{http.StatusConflict, "UsageLimitReached"}},
	{discount.ErrDuplicateCode, errorKind{http.StatusConflict, "DuplicateCode"}},
	{discount.ErrInvalidPercentage, errorKind{http.StatusBadRequest, "InvalidPercentage"}},
	{discount.ErrExpirationInPast, errorKind{http.StatusBadRequest, "ExpirationInPast"}},
	{discount.ErrInvalidCode, errorKind{http.StatusBadRequest, "InvalidCode"}},

	{rating.ErrInvalidScore, errorKind{http.StatusBadRequest, "InvalidScore"}},
	{rating.ErrUnknownDish, errorKind{http.StatusNotFound, "DishNotFound"}},
	{rating.ErrDuplicate, errorKind{http.StatusConflict, "DuplicateRating"}},
	{rating.ErrNotFound, errorKind{http.StatusNotFound, "RatingNotFound"}},

	{dish.ErrNotFound, errorKind{http.StatusNotFound, "DishNotFound"}},
	{dish.ErrNegativePrice, errorKind{http.StatusBadRequest, "NegativePrice"}},

	{address.ErrNotFound, errorKind{http.StatusNotFound, "AddressNotFound"}},
	{address.ErrInvalid, errorKind{http.StatusBadRequest, "InvalidRequest"}},

	{report.ErrInvalidDateRange, errorKind{http.StatusBadRequest, "InvalidDateRange"}},
	{report.ErrInvalidLimit, errorKind{http.StatusBadRequest, "InvalidLimit"}},
}

// classify maps a domain error to its HTTP status, kind and message. ok is
// false for unexpected errors.
func classify(err error) (k errorKind, msg string, ok bool) {
	var (
		reqErr *requestError
		udErr  *pricing.UnknownDishError
		iqErr  *pricing.InvalidQuantityError
		npErr  *pricing.NegativePriceError
	)
	switch {
	case errors.As(err, &reqErr):
		return errorKind{http.StatusBadRequest, "InvalidRequest"}, reqErr.Error(), true
	case errors.As(err, &udErr):
		return errorKind{http.StatusBadRequest, "UnknownDish"}, udErr.Error(), true
	case errors.As(err, &iqErr):
		return errorKind{http.StatusBadRequest, "InvalidQuantity"}, iqErr.Error(), true
	case errors.As(err, &npErr):
		return errorKind{http.StatusBadRequest, "NegativePrice"}, npErr.Error(), true
	}
	for _, s := range sentinelKinds {
		if errors.Is(err, s.err) {
			return s.kind, s.err.Error(), true
		}
	}
	return errorKind{}, "", false
}

// writeError renders err as the JSON error envelope. Unexpected errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	k, msg, ok := classify(err)
	if !ok {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "InternalError", "internal server error")
		return
	}
	httpmiddleware.WriteError(w, k.status, k.kind, msg)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	httpmiddleware.WriteError(w, http.StatusNotFound, "NotFound", "route not found")
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed")
}
