package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

func (h *Handler) listDishes(w http.ResponseWriter, r *http.Request) {
	dishes, err := h.menu.List(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeArray(e, dishes, encodeDish)
	})
}

func (h *Handler) getDish(w http.ResponseWriter, r *http.Request) {
	d, err := h.menu.Get(r.Context(), principal(r), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeDish(e, d) })
}

func (h *Handler) updateDishPrice(w http.ResponseWriter, r *http.Request) {
	var (
		price decimal.Decimal
		set   bool
	)
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "price" {
			return d.Skip()
		}
		v, err := decodeDecimal(d)
		price, set = v, err == nil
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !set {
		writeError(w, r, badRequest("price is required"))
		return
	}

	d, err := h.menu.UpdatePrice(r.Context(), principal(r), pathID(r), price)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeDish(e, d) })
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.menu.Categories(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeArray(e, categories, encodeCategory)
	})
}
