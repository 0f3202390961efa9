package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/bistro/internal/domain/report"
)

func (h *Handler) topDishes(w http.ResponseWriter, r *http.Request) {
	n := report.DefaultTopN
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			// Rejected by the service after authorization.
			v = 0
		}
		n = v
	}

	dishes, err := h.reports.TopDishes(r.Context(), principal(r), n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeArray(e, dishes, encodeTopDish)
	})
}

func (h *Handler) revenue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rev, err := h.reports.RevenueInRange(r.Context(), principal(r), q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeRevenue(e, rev) })
}
