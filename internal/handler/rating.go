package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

func decodeScore(w http.ResponseWriter, r *http.Request) (int, error) {
	score := 0
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "score" {
			return d.Skip()
		}
		v, err := d.Int()
		score = v
		return err
	})
	return score, err
}

func (h *Handler) submitRating(w http.ResponseWriter, r *http.Request) {
	score, err := decodeScore(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt, err := h.ratings.SubmitRating(r.Context(), principal(r), pathID(r), score)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeRating(e, rt) })
}

func (h *Handler) updateRating(w http.ResponseWriter, r *http.Request) {
	score, err := decodeScore(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt, err := h.ratings.UpdateRating(r.Context(), principal(r), pathID(r), score)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeRating(e, rt) })
}

func (h *Handler) ratingSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.ratings.Summary(r.Context(), principal(r), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		str(e, "dishId", s.DishID)
		integer(e, "userRating", int64(s.UserRating))
		money(e, "averageRating", s.AverageRating)
		integer(e, "ratingCount", s.Count)
		e.ObjEnd()
	})
}

func (h *Handler) listRatings(w http.ResponseWriter, r *http.Request) {
	ratings, err := h.ratings.ListUserRatings(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeArray(e, ratings, encodeRating)
	})
}
