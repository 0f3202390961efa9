package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/bistro/internal/domain/discount"
)

func (h *Handler) createDiscountCode(w http.ResponseWriter, r *http.Request) {
	var req discount.CreateRequest
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Str()
			req.Code = v
			return err
		case "percentage":
			v, err := d.Int()
			req.Percentage = v
			return err
		case "maxUsagePerUser":
			v, err := d.Int()
			req.MaxUsagePerUser = v
			return err
		case "expirationDate":
			v, err := d.Str()
			if err != nil {
				return err
			}
			t, err := parseTimestamp(v)
			req.ExpirationDate = t
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.ExpirationDate.IsZero() {
		writeError(w, r, badRequest("expirationDate is required"))
		return
	}

	c, err := h.discounts.CreateCode(r.Context(), principal(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCode(e, c) })
}

func (h *Handler) listDiscountCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.discounts.ListCodes(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeArray(e, codes, encodeCode)
	})
}

func (h *Handler) applyDiscountCode(w http.ResponseWriter, r *http.Request) {
	var code string
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "code" {
			return d.Skip()
		}
		v, err := d.Str()
		code = v
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	applied, err := h.discounts.ApplyCode(r.Context(), principal(r), code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		str(e, "code", applied.Code)
		integer(e, "percentage", int64(applied.Percentage))
		integer(e, "usageCount", int64(applied.UsageCount))
		e.ObjEnd()
	})
}
