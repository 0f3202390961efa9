// Package handler exposes the ordering services over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/xenking/bistro/internal/domain/address"
	"github.com/xenking/bistro/internal/domain/auth"
	"github.com/xenking/bistro/internal/domain/discount"
	"github.com/xenking/bistro/internal/domain/dish"
	"github.com/xenking/bistro/internal/domain/order"
	"github.com/xenking/bistro/internal/domain/rating"
	"github.com/xenking/bistro/internal/domain/report"
)

// Orders is the order lifecycle as used by the HTTP layer.
type Orders interface {
	CreateOrder(ctx context.Context, p *auth.Principal, addressID string, lines []order.LineRequest) (*order.Order, error)
	GetOrder(ctx context.Context, p *auth.Principal, orderID string) (*order.Order, error)
	List(ctx context.Context, p *auth.Principal, status order.Status) ([]order.Order, error)
	CancelOrder(ctx context.Context, p *auth.Principal, orderID string) (*order.Order, error)
	UpdateStatus(ctx context.Context, p *auth.Principal, orderID string, status order.Status) (*order.Order, error)
	ReceiptQR(ctx context.Context, p *auth.Principal, orderID string) ([]byte, error)
}

// Discounts is the discount ledger as used by the HTTP layer.
type Discounts interface {
	ApplyCode(ctx context.Context, p *auth.Principal, code string) (*discount.Applied, error)
	CreateCode(ctx context.Context, p *auth.Principal, req discount.CreateRequest) (*discount.Code, error)
	ListCodes(ctx context.Context, p *auth.Principal) ([]discount.Code, error)
}

// Ratings is the rating aggregator as used by the HTTP layer.
type Ratings interface {
	SubmitRating(ctx context.Context, p *auth.Principal, dishID string, score int) (*rating.Rating, error)
	UpdateRating(ctx context.Context, p *auth.Principal, dishID string, score int) (*rating.Rating, error)
	Summary(ctx context.Context, p *auth.Principal, dishID string) (*rating.Summary, error)
	ListUserRatings(ctx context.Context, p *auth.Principal) ([]rating.Rating, error)
}

// Menu is the dish catalog as used by the HTTP layer.
type Menu interface {
	List(ctx context.Context, p *auth.Principal) ([]dish.Dish, error)
	Get(ctx context.Context, p *auth.Principal, id string) (*dish.Dish, error)
	Categories(ctx context.Context, p *auth.Principal) ([]dish.Category, error)
	UpdatePrice(ctx context.Context, p *auth.Principal, id string, price decimal.Decimal) (*dish.Dish, error)
}

// Addresses manages the caller's delivery addresses.
type Addresses interface {
	List(ctx context.Context, p *auth.Principal) ([]address.Address, error)
	Create(ctx context.Context, p *auth.Principal, street, area string) (*address.Address, error)
}

// Reports serves manager analytics.
type Reports interface {
	TopDishes(ctx context.Context, p *auth.Principal, n int) ([]report.TopDish, error)
	RevenueInRange(ctx context.Context, p *auth.Principal, start, end string) (*report.Revenue, error)
}

var (
	_ Orders    = (*order.Service)(nil)
	_ Discounts = (*discount.Ledger)(nil)
	_ Ratings   = (*rating.Service)(nil)
	_ Menu      = (*dish.Service)(nil)
	_ Addresses = (*address.Service)(nil)
	_ Reports   = (*report.Service)(nil)
)

// Services groups the domain dependencies of Handler.
type Services struct {
	Orders    Orders
	Discounts Discounts
	Ratings   Ratings
	Menu      Menu
	Addresses Addresses
	Reports   Reports
}

// Handler serves the JSON API.
type Handler struct {
	orders    Orders
	discounts Discounts
	ratings   Ratings
	menu      Menu
	addresses Addresses
	reports   Reports
}

// New returns a Handler backed by svc.
func New(svc Services) *Handler {
	return &Handler{
		orders:    svc.Orders,
		discounts: svc.Discounts,
		ratings:   svc.Ratings,
		menu:      svc.Menu,
		addresses: svc.Addresses,
		reports:   svc.Reports,
	}
}

// Register mounts the API under /api on router. Every route requires a bearer
// token resolved by authn.
func (h *Handler) Register(router *mux.Router, authn *Authenticator) {
	api := router.PathPrefix("/api").Subrouter()
	api.Use(authn.Middleware)
	api.NotFoundHandler = http.HandlerFunc(notFound)
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	api.HandleFunc("/orders", h.createOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders", h.listOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", h.getOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", h.updateOrderStatus).Methods(http.MethodPatch)
	api.HandleFunc("/orders/{id}/cancel", h.cancelOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/qr", h.orderReceipt).Methods(http.MethodGet)

	api.HandleFunc("/discount-codes", h.createDiscountCode).Methods(http.MethodPost)
	api.HandleFunc("/discount-codes", h.listDiscountCodes).Methods(http.MethodGet)
	api.HandleFunc("/discount-codes/apply", h.applyDiscountCode).Methods(http.MethodPost)

	api.HandleFunc("/dishes", h.listDishes).Methods(http.MethodGet)
	api.HandleFunc("/dishes/{id}", h.getDish).Methods(http.MethodGet)
	api.HandleFunc("/dishes/{id}", h.updateDishPrice).Methods(http.MethodPatch)
	api.HandleFunc("/dishes/{id}/ratings", h.submitRating).Methods(http.MethodPost)
	api.HandleFunc("/dishes/{id}/ratings", h.updateRating).Methods(http.MethodPut)
	api.HandleFunc("/dishes/{id}/ratings", h.ratingSummary).Methods(http.MethodGet)
	api.HandleFunc("/categories", h.listCategories).Methods(http.MethodGet)
	api.HandleFunc("/ratings", h.listRatings).Methods(http.MethodGet)

	api.HandleFunc("/addresses", h.listAddresses).Methods(http.MethodGet)
	api.HandleFunc("/addresses", h.createAddress).Methods(http.MethodPost)

	api.HandleFunc("/reports/top-dishes", h.topDishes).Methods(http.MethodGet)
	api.HandleFunc("/reports/revenue", h.revenue).Methods(http.MethodGet)
}

func principal(r *http.Request) *auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}
