package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/ariefcatur/go-pharmacy-store/internal/apperr"
	"github.com/ariefcatur/go-pharmacy-store/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResp struct {
	Error     string        `json:"error"`
	Shortages []shortageDTO `json:"shortages,omitempty"`
}

type shortageDTO struct {
	MedicineID int64  `json:"medicine_id"`
	Name       string `json:"name"`
	Requested  int    `json:"requested"`
	Available  int    `json:"available"`
}

// writeError maps the error kind to a status. Anything unknown is a 500 and is
// logged; its text never reaches the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResp{Error: err.Error()}
	var code int
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		code = http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, apperr.ErrInsufficientStock):
		code = http.StatusConflict
		for _, s := range orders.Shortages(err) {
			resp.Shortages = append(resp.Shortages, shortageDTO{
				MedicineID: s.MedicineID, Name: s.Name, Requested: s.Requested, Available: s.Available,
			})
		}
	case errors.Is(err, apperr.ErrConflict):
		code = http.StatusConflict
	default:
		log.Printf("[%s] %s %s: %v", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, err)
		code = http.StatusInternalServerError
		resp.Error = "internal error"
	}
	writeJSON(w, code, resp)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Invalid("invalid json")
	}
	return nil
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("invalid id")
	}
	return id, nil
}

// seeOther answers like a form post redirect while still carrying a JSON body.
func seeOther(w http.ResponseWriter, location string, v any) {
	w.Header().Set("Location", location)
	writeJSON(w, http.StatusSeeOther, v)
}
