package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-pharmacy-store/internal/apperr"
	"github.com/ariefcatur/go-pharmacy-store/internal/catalog"
)

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	cs, err := h.Catalog.ListCategories(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategories(cs))
}

// getCategory also lists the medicines of the category.
func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.Catalog.GetCategory(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ms, err := h.Catalog.ListMedicines(ctx, catalog.MedicineFilter{CategoryID: id})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		categoryDTO
		Medicines []medicineDTO `json:"medicines"`
	}{toCategory(c), toMedicines(ms)})
}

func (h *Handler) listMedicines(w http.ResponseWriter, r *http.Request) {
	f := catalog.MedicineFilter{Query: r.URL.Query().Get("q")}
	if v := r.URL.Query().Get("category"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, r, apperr.Invalid("invalid category"))
			return
		}
		f.CategoryID = id
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ms, err := h.Catalog.ListMedicines(ctx, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMedicines(ms))
}

func (h *Handler) getMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.Catalog.GetMedicine(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMedicine(m))
}

// search is the compact as-you-type lookup. An empty query matches everything.
func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	ms, err := h.Catalog.ListMedicines(r.Context(), catalog.MedicineFilter{Query: r.URL.Query().Get("q")})
	if err != nil {
		writeError(w, r, err)
		return
	}
	hits := make([]searchHit, 0, len(ms))
	for _, m := range ms {
		hits = append(hits, searchHit{ID: m.ID, Name: m.Name, Price: money(m.Price), Stock: m.Stock})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}
