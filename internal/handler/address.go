package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

func (h *Handler) listAddresses(w http.ResponseWriter, r *http.Request) {
	addresses, err := h.addresses.List(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeArray(e, addresses, encodeAddress)
	})
}

func (h *Handler) createAddress(w http.ResponseWriter, r *http.Request) {
	var street, area string
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "street":
			v, err := d.Str()
			street = v
			return err
		case "area":
			v, err := d.Str()
			area = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	a, err := h.addresses.Create(r.Context(), principal(r), street, area)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeAddress(e, a) })
}

