package httpx

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-pharmacy-store/internal/apperr"
	"github.com/ariefcatur/go-pharmacy-store/internal/auth"
	kafkax "github.com/ariefcatur/go-pharmacy-store/internal/kafka"
	"github.com/ariefcatur/go-pharmacy-store/internal/orders"
	"github.com/ariefcatur/go-pharmacy-store/internal/redisx"
	"github.com/go-chi/chi/v5/middleware"
	kafkago "github.com/segmentio/kafka-go"
)

// checkout finalizes the session cart. The cart is cleared only once the order has
// committed; a failed checkout leaves it untouched.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())
	sid := auth.SessionIDFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	release, err := h.claimCheckout(ctx, sid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer release()

	c, err := h.Carts.Get(ctx, sid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	receipt, err := h.Finalizer.Finalize(ctx, u.ID, c)
	if errors.Is(err, orders.ErrEmptyCart) {
		seeOther(w, "/cart", errorResp{Error: err.Error()})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.Carts.Clear(ctx, sid); err != nil {
		log.Printf("[%s] order %d committed but cart %s not cleared: %v",
			middleware.GetReqID(ctx), receipt.Order.ID, sid, err)
	}
	h.publishPlaced(r, receipt)

	seeOther(w, fmt.Sprintf("/orders/%d", receipt.Order.ID), toReceipt(receipt))
}

// claimCheckout lets one checkout per session run at a time, so a double submit
// cannot finalize the same cart twice before it is cleared.
func (h *Handler) claimCheckout(ctx context.Context, sid string) (func(), error) {
	if h.Redis == nil {
		return func() {}, nil
	}
	key := fmt.Sprintf(redisx.KeyCheckout, sid)
	ok, err := redisx.Claim(ctx, h.Redis, key, redisx.TTLCheckout)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Conflict("checkout already in progress")
	}
	return func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := h.Redis.Del(rctx, key).Err(); err != nil {
			log.Printf("[%s] release %s: %v", middleware.GetReqID(ctx), key, err)
		}
	}, nil
}

func (h *Handler) publishPlaced(r *http.Request, rc orders.Receipt) {
	if h.Events == nil {
		return
	}
	ev := orders.NewEnvelope(
		orders.EventOrderPlaced,
		h.Service,
		middleware.GetReqID(r.Context()),
		strconv.FormatInt(rc.Order.ID, 10),
		kafkax.MustMarshal(orders.PlacedPayload(rc)),
	)
	h.Events.Publish(orders.PartitionKey(rc.Order.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rs, err := h.Orders.Receipts(ctx, orders.Filter{UserID: u.ID})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReceipts(rs))
}

// getOrder only shows orders of the logged-in user; others are reported as missing.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, _ := auth.UserFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rc, err := h.Orders.Receipt(ctx, id, u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReceipt(rc))
}
