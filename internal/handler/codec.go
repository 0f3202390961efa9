package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/bistro/internal/domain/address"
	"github.com/xenking/bistro/internal/domain/discount"
	"github.com/xenking/bistro/internal/domain/dish"
	"github.com/xenking/bistro/internal/domain/order"
	"github.com/xenking/bistro/internal/domain/rating"
	"github.com/xenking/bistro/internal/domain/report"
)

const maxBodySize = 1 << 20

// decodeBody reads a JSON object from the request body, calling field for
// each key. Any syntax or type error becomes a 400.
func decodeBody(w http.ResponseWriter, r *http.Request, field func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return badRequest("request body too large or unreadable")
	}
	if len(body) == 0 {
		return badRequest("request body is required")
	}
	if err := jx.DecodeBytes(body).Obj(field); err != nil {
		var reqErr *requestError
		if errors.As(err, &reqErr) {
			return err
		}
		return badRequest("malformed JSON: " + err.Error())
	}
	return nil
}

// decodeDecimal accepts either a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	default:
		return decimal.Zero, badRequest("expected a number")
	}
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, badRequest("invalid number " + raw)
	}
	return v, nil
}

// parseTimestamp accepts RFC 3339 timestamps and plain dates.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, badRequest("invalid timestamp " + s)
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func encodeArray[T any](e *jx.Encoder, items []T, encode func(*jx.Encoder, *T)) {
	e.ArrStart()
	for i := range items {
		encode(e, &items[i])
	}
	e.ArrEnd()
}

func money(e *jx.Encoder, field string, v decimal.Decimal) {
	e.FieldStart(field)
	e.Str(v.StringFixed(2))
}

func timestamp(e *jx.Encoder, field string, t time.Time) {
	e.FieldStart(field)
	e.Str(t.UTC().Format(time.RFC3339))
}

func str(e *jx.Encoder, field, v string) {
	e.FieldStart(field)
	e.Str(v)
}

func integer(e *jx.Encoder, field string, v int64) {
	e.FieldStart(field)
	e.Int64(v)
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	str(e, "orderId", o.ID)
	str(e, "userId", o.UserID)
	str(e, "addressId", o.AddressID)
	str(e, "status", string(o.Status))
	money(e, "totalPrice", o.TotalPrice)
	timestamp(e, "createdAt", o.CreatedAt)
	e.FieldStart("items")
	encodeArray(e, o.Items, func(e *jx.Encoder, it *order.Item) {
		e.ObjStart()
		str(e, "dishId", it.DishID)
		if it.DishName != "" {
			str(e, "dishName", it.DishName)
		}
		integer(e, "quantity", int64(it.Quantity))
		money(e, "unitPrice", it.UnitPrice)
		e.ObjEnd()
	})
	e.ObjEnd()
}

func encodeDish(e *jx.Encoder, d *dish.Dish) {
	e.ObjStart()
	str(e, "id", d.ID)
	str(e, "name", d.Name)
	str(e, "description", d.Description)
	money(e, "price", d.Price)
	str(e, "categoryId", d.CategoryID)
	if d.CategoryName != "" {
		str(e, "categoryName", d.CategoryName)
	}
	money(e, "averageRating", d.AverageRating)
	e.ObjEnd()
}

func encodeCategory(e *jx.Encoder, c *dish.Category) {
	e.ObjStart()
	str(e, "id", c.ID)
	str(e, "name", c.Name)
	e.FieldStart("active")
	e.Bool(c.Active)
	e.ObjEnd()
}

func encodeCode(e *jx.Encoder, c *discount.Code) {
	e.ObjStart()
	str(e, "id", c.ID)
	str(e, "code", c.Code)
	integer(e, "percentage", int64(c.Percentage))
	timestamp(e, "expirationDate", c.ExpirationDate)
	e.FieldStart("isActive")
	e.Bool(c.IsActive)
	integer(e, "usedCount", int64(c.UsedCount))
	integer(e, "maxUsagePerUser", int64(c.MaxUsagePerUser))
	e.ObjEnd()
}

func encodeRating(e *jx.Encoder, r *rating.Rating) {
	e.ObjStart()
	str(e, "id", r.ID)
	str(e, "dishId", r.DishID)
	if r.DishName != "" {
		str(e, "dishName", r.DishName)
	}
	integer(e, "score", int64(r.Score))
	timestamp(e, "createdAt", r.CreatedAt)
	timestamp(e, "updatedAt", r.UpdatedAt)
	e.ObjEnd()
}

func encodeAddress(e *jx.Encoder, a *address.Address) {
	e.ObjStart()
	str(e, "id", a.ID)
	str(e, "street", a.Street)
	str(e, "area", a.Area)
	e.ObjEnd()
}

func encodeTopDish(e *jx.Encoder, t *report.TopDish) {
	e.ObjStart()
	str(e, "dishId", t.DishID)
	str(e, "name", t.Name)
	integer(e, "orderCount", t.OrderCount)
	e.ObjEnd()
}

func encodeRevenue(e *jx.Encoder, rev *report.Revenue) {
	e.ObjStart()
	timestamp(e, "start", rev.Start)
	timestamp(e, "end", rev.End)
	money(e, "totalRevenue", rev.Total)
	e.FieldStart("lines")
	encodeArray(e, rev.Lines, func(e *jx.Encoder, l *report.RevenueLine) {
		e.ObjStart()
		str(e, "orderId", l.OrderID)
		str(e, "dishId", l.DishID)
		str(e, "dishName", l.DishName)
		money(e, "price", l.Price)
		integer(e, "quantity", int64(l.Quantity))
		timestamp(e, "orderedAt", l.OrderedAt)
		e.ObjEnd()
	})
	e.ObjEnd()
}
