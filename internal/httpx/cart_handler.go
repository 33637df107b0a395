package httpx

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/ariefcatur/go-pharmacy-store/internal/auth"
	"github.com/ariefcatur/go-pharmacy-store/internal/cart"
	"github.com/shopspring/decimal"
)

// loadView reads the session cart and resolves it against the catalog. Entries whose
// medicine has been deleted are dropped from the stored cart and reported as warnings.
func (h *Handler) loadView(ctx context.Context, sid string) (cart.View, []string, error) {
	c, err := h.Carts.Get(ctx, sid)
	if err != nil {
		return cart.View{}, nil, err
	}
	v, err := cart.Resolve(ctx, c, h.Catalog)
	if err != nil {
		return cart.View{}, nil, err
	}
	var warnings []string
	if c.Prune(v) {
		for _, id := range v.Stale {
			warnings = append(warnings, fmt.Sprintf("medicine %d is no longer available and was removed from your cart", id))
		}
		if err := h.Carts.Put(ctx, sid, c); err != nil {
			log.Printf("prune cart %s: %v", sid, err)
		}
	}
	return v, warnings, nil
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	v, warnings, err := h.loadView(r.Context(), auth.SessionIDFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCart(v, warnings))
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	if _, err := h.Catalog.GetMedicine(ctx, id); err != nil {
		writeError(w, r, err)
		return
	}
	h.mutateCart(w, r, func(c cart.Cart) { c.Add(id) })
}

func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.mutateCart(w, r, func(c cart.Cart) { c.Remove(id) })
}

func (h *Handler) mutateCart(w http.ResponseWriter, r *http.Request, fn func(cart.Cart)) {
	ctx := r.Context()
	sid := auth.SessionIDFrom(ctx)
	c, err := h.Carts.Get(ctx, sid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	fn(c)
	if err := h.Carts.Put(ctx, sid, c); err != nil {
		writeError(w, r, err)
		return
	}
	v, warnings, err := h.loadView(ctx, sid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCart(v, warnings))
}

type quantityReq struct {
	Quantity int `json:"quantity"`
}

type quantityResp struct {
	Quantity int    `json:"quantity"`
	Subtotal string `json:"subtotal"`
	Total    string `json:"total"`
}

// setQuantity ignores ids that are not in the cart; the response then shows quantity 0.
func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req quantityReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	sid := auth.SessionIDFrom(ctx)
	c, err := h.Carts.Get(ctx, sid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := c.SetQuantity(id, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if updated {
		if err := h.Carts.Put(ctx, sid, c); err != nil {
			writeError(w, r, err)
			return
		}
	}
	v, _, err := h.loadView(ctx, sid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := quantityResp{Subtotal: money(decimal.Zero), Total: money(v.Total)}
	if l, ok := v.Line(id); ok {
		resp.Quantity = l.Quantity
		resp.Subtotal = money(l.Subtotal)
	}
	writeJSON(w, http.StatusOK, resp)
}
