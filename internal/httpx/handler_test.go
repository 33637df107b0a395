package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-pharmacy-store/internal/auth"
	"github.com/ariefcatur/go-pharmacy-store/internal/cart"
	kafkax "github.com/ariefcatur/go-pharmacy-store/internal/kafka"
	"github.com/ariefcatur/go-pharmacy-store/internal/memstore"
	"github.com/ariefcatur/go-pharmacy-store/internal/orders"
	"github.com/ariefcatur/go-pharmacy-store/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []kafkago.Message
}

func (p *recordingPublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, kafkago.Message{Key: key, Value: value, Headers: headers})
}

func (p *recordingPublisher) all() []kafkago.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]kafkago.Message(nil), p.msgs...)
}

type testApp struct {
	srv    *httptest.Server
	store  *memstore.Store
	events *recordingPublisher
	mr     *miniredis.Miniredis
}

func newTestApp(t *testing.T) testApp {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })

	store := memstore.New()
	svc := &auth.Service{Users: store, Cost: bcrypt.MinCost}
	_, err := svc.EnsureStaff(context.Background(), "admin", "admin-pass")
	require.NoError(t, err)

	events := &recordingPublisher{}
	h := &Handler{
		Catalog:   store,
		Orders:    store,
		Finalizer: &orders.Finalizer{Store: store},
		Carts:     &cart.RedisStore{Redis: rdb},
		Redis:     rdb,
		Auth:      svc,
		Sessions:  &auth.SessionStore{Redis: rdb},
		Users:     store,
		Events:    events,
		Service:   "pharmacy-api",
	}
	r := NewRouter()
	h.Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return testApp{srv: srv, store: store, events: events, mr: mr}
}

type client struct {
	t    *testing.T
	base string
	hc   *http.Client
}

func (a testApp) client(t *testing.T) *client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: a.srv.URL, hc: &http.Client{
		Jar:           jar,
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}}
}

func (c *client) do(method, path string, body any) (*http.Response, []byte) {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	require.NoError(c.t, err)
	res, err := c.hc.Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(c.t, err)
	return res, b
}

func (c *client) json(method, path string, body any, wantStatus int, out any) *http.Response {
	c.t.Helper()
	res, b := c.do(method, path, body)
	require.Equal(c.t, wantStatus, res.StatusCode, string(b))
	if out != nil {
		require.NoError(c.t, json.Unmarshal(b, out), string(b))
	}
	return res
}

// sessionID is the session cookie the client currently holds.
func (c *client) sessionID() string {
	c.t.Helper()
	u, err := url.Parse(c.base)
	require.NoError(c.t, err)
	for _, ck := range c.hc.Jar.Cookies(u) {
		if ck.Name == auth.CookieName {
			return ck.Value
		}
	}
	c.t.Fatal("no session cookie")
	return ""
}

func (a testApp) shopper(t *testing.T, name string) *client {
	c := a.client(t)
	c.json(http.MethodPost, "/auth/signup", map[string]string{
		"username": name, "email": name + "@example.com", "password": "12345678", "password_confirm": "12345678",
	}, http.StatusCreated, nil)
	return c
}

func (a testApp) staff(t *testing.T) *client {
	c := a.client(t)
	c.json(http.MethodPost, "/auth/login", map[string]string{"username": "admin", "password": "admin-pass"}, http.StatusOK, nil)
	return c
}

// seedAB creates A (10.00, stock 5) and B (3.50, stock 10) through the dashboard.
func (a testApp) seedAB(t *testing.T) (medicineDTO, medicineDTO) {
	s := a.staff(t)
	var cat categoryDTO
	s.json(http.MethodPost, "/dashboard/categories", map[string]string{"name": "General"}, http.StatusCreated, &cat)
	var ma, mb medicineDTO
	s.json(http.MethodPost, "/dashboard/medicines", map[string]any{
		"name": "A", "price": "10.00", "stock": 5, "category_id": cat.ID,
	}, http.StatusCreated, &ma)
	s.json(http.MethodPost, "/dashboard/medicines", map[string]any{
		"name": "B", "price": 3.5, "stock": 10, "category_id": cat.ID,
	}, http.StatusCreated, &mb)
	return ma, mb
}

func TestCheckoutFlow(t *testing.T) {
	app := newTestApp(t)
	a, b := app.seedAB(t)
	c := app.shopper(t, "ana")

	c.json(http.MethodPost, fmt.Sprintf("/cart/items/%d", a.ID), nil, http.StatusOK, nil)
	c.json(http.MethodPost, fmt.Sprintf("/cart/items/%d", a.ID), nil, http.StatusOK, nil)
	var view cartDTO
	c.json(http.MethodPost, fmt.Sprintf("/cart/items/%d", b.ID), nil, http.StatusOK, &view)
	assert.Equal(t, "23.50", view.Total)
	require.Len(t, view.Items, 2)

	var rc receiptDTO
	res := c.json(http.MethodPost, "/checkout", nil, http.StatusSeeOther, &rc)
	assert.Equal(t, fmt.Sprintf("/orders/%d", rc.ID), res.Header.Get("Location"))
	assert.Equal(t, "23.50", rc.Total)
	assert.True(t, rc.Completed)
	require.Len(t, rc.Items, 2)
	assert.Equal(t, "20.00", rc.Items[0].LineTotal)

	c.json(http.MethodGet, "/cart", nil, http.StatusOK, &view)
	assert.Empty(t, view.Items)
	assert.Equal(t, "0.00", view.Total)

	var ma, mb medicineDTO
	c.json(http.MethodGet, fmt.Sprintf("/medicines/%d", a.ID), nil, http.StatusOK, &ma)
	c.json(http.MethodGet, fmt.Sprintf("/medicines/%d", b.ID), nil, http.StatusOK, &mb)
	assert.Equal(t, 3, ma.Stock)
	assert.Equal(t, 9, mb.Stock)

	var got receiptDTO
	c.json(http.MethodGet, fmt.Sprintf("/orders/%d", rc.ID), nil, http.StatusOK, &got)
	assert.Equal(t, rc.ID, got.ID)
	var mine []receiptDTO
	c.json(http.MethodGet, "/orders", nil, http.StatusOK, &mine)
	assert.Len(t, mine, 1)

	// someone else's order is not visible
	other := app.shopper(t, "bob")
	other.json(http.MethodGet, fmt.Sprintf("/orders/%d", rc.ID), nil, http.StatusNotFound, nil)

	msgs := app.events.all()
	require.Len(t, msgs, 1)
	var ev orders.Envelope
	require.NoError(t, json.Unmarshal(msgs[0].Value, &ev))
	assert.Equal(t, orders.EventOrderPlaced, ev.EventType)
	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](ev.Payload)
	require.NoError(t, err)
	assert.Equal(t, rc.ID, p.OrderID)
	assert.Equal(t, "23.50", p.Total)
	assert.Equal(t, orders.PartitionKey(rc.ID), msgs[0].Key)
}

func TestCheckoutEmptyCartRedirects(t *testing.T) {
	app := newTestApp(t)
	c := app.shopper(t, "ana")

	res := c.json(http.MethodPost, "/checkout", nil, http.StatusSeeOther, nil)
	assert.Equal(t, "/cart", res.Header.Get("Location"))
	list, err := app.store.Receipts(context.Background(), orders.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, app.events.all())
}

func TestCheckoutShortageKeepsCart(t *testing.T) {
	app := newTestApp(t)
	a, _ := app.seedAB(t)
	c := app.shopper(t, "ana")

	c.json(http.MethodPost, fmt.Sprintf("/cart/items/%d", a.ID), nil, http.StatusOK, nil)
	c.json(http.MethodPut, fmt.Sprintf("/cart/items/%d", a.ID), map[string]int{"quantity": 6}, http.StatusOK, nil)

	var er errorResp
	c.json(http.MethodPost, "/checkout", nil, http.StatusConflict, &er)
	require.Len(t, er.Shortages, 1)
	assert.Equal(t, shortageDTO{MedicineID: a.ID, Name: "A", Requested: 6, Available: 5}, er.Shortages[0])

	var view cartDTO
	c.json(http.MethodGet, "/cart", nil, http.StatusOK, &view)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 6, view.Items[0].Quantity)
	assert.Empty(t, app.events.all())
}

func TestCheckoutInProgressIsRejected(t *testing.T) {
	app := newTestApp(t)
	a, _ := app.seedAB(t)
	c := app.shopper(t, "ana")
	c.json(http.MethodPost, fmt.Sprintf("/cart/items/%d", a.ID), nil, http.StatusOK, nil)

	// another request of the same session holds the checkout
	key := fmt.Sprintf(redisx.KeyCheckout, c.sessionID())
	require.NoError(t, app.mr.Set(key, "1"))

	c.json(http.MethodPost, "/checkout", nil, http.StatusConflict, nil)
	list, err := app.store.Receipts(context.Background(), orders.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	var view cartDTO
	c.json(http.MethodGet, "/cart", nil, http.StatusOK, &view)
	require.Len(t, view.Items, 1)

	app.mr.Del(key)
	c.json(http.MethodPost, "/checkout", nil, http.StatusSeeOther, nil)
	assert.False(t, app.mr.Exists(key), "claim is released after checkout")

	// a second submit after the first finished finds an empty cart
	res := c.json(http.MethodPost, "/checkout", nil, http.StatusSeeOther, nil)
	assert.Equal(t, "/cart", res.Header.Get("Location"))
	list, err = app.store.Receipts(context.Background(), orders.Filter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSetQuantity(t *testing.T) {
	app := newTestApp(t)
	a, b := app.seedAB(t)
	c := app.shopper(t, "ana")
	c.json(http.MethodPost, fmt.Sprintf("/cart/items/%d", a.ID), nil, http.StatusOK, nil)
	c.json(http.MethodPost, fmt.Sprintf("/cart/items/%d", b.ID), nil, http.StatusOK, nil)

	var q quantityResp
	c.json(http.MethodPut, fmt.Sprintf("/cart/items/%d", a.ID), map[string]int{"quantity": 3}, http.StatusOK, &q)
	assert.Equal(t, quantityResp{Quantity: 3, Subtotal: "30.00", Total: "33.50"}, q)

	c.json(http.MethodPut, fmt.Sprintf("/cart/items/%d", a.ID), map[string]int{"quantity": 0}, http.StatusBadRequest, nil)

	// an id that is not in the cart is ignored
	c.json(http.MethodDelete, fmt.Sprintf("/cart/items/%d", b.ID), nil, http.StatusOK, nil)
	c.json(http.MethodPut, fmt.Sprintf("/cart/items/%d", b.ID), map[string]int{"quantity": 2}, http.StatusOK, &q)
	assert.Equal(t, quantityResp{Quantity: 0, Subtotal: "0.00", Total: "30.00"}, q)
}

func TestCartAddAndRemove(t *testing.T) {
	app := newTestApp(t)
	a, _ := app.seedAB(t)
	c := app.shopper(t, "ana")

	c.json(http.MethodPost, "/cart/items/999", nil, http.StatusNotFound, nil)
	c.json(http.MethodPost, "/cart/items/abc", nil, http.StatusBadRequest, nil)

	var view cartDTO
	c.json(http.MethodPost, fmt.Sprintf("/cart/items/%d", a.ID), nil, http.StatusOK, &view)
	require.Len(t, view.Items, 1)

	c.json(http.MethodDelete, "/cart/items/999", nil, http.StatusOK, &view)
	assert.Len(t, view.Items, 1, "removing an absent id changes nothing")

	c.json(http.MethodDelete, fmt.Sprintf("/cart/items/%d", a.ID), nil, http.StatusOK, &view)
	assert.Empty(t, view.Items)
}

func TestCartDropsDeletedMedicine(t *testing.T) {
	app := newTestApp(t)
	a, b := app.seedAB(t)
	c := app.shopper(t, "ana")
	c.json(http.MethodPost, fmt.Sprintf("/cart/items/%d", a.ID), nil, http.StatusOK, nil)
	c.json(http.MethodPost, fmt.Sprintf("/cart/items/%d", b.ID), nil, http.StatusOK, nil)

	app.staff(t).json(http.MethodDelete, fmt.Sprintf("/dashboard/medicines/%d", a.ID), nil, http.StatusNoContent, nil)

	var view cartDTO
	c.json(http.MethodGet, "/cart", nil, http.StatusOK, &view)
	require.Len(t, view.Items, 1)
	assert.Equal(t, b.ID, view.Items[0].Medicine.ID)
	assert.Equal(t, "3.50", view.Total)
	require.Len(t, view.Warnings, 1)

	// the stale entry is gone for good
	var again cartDTO
	c.json(http.MethodGet, "/cart", nil, http.StatusOK, &again)
	assert.Empty(t, again.Warnings)
	assert.Len(t, again.Items, 1)
}

func TestAuthAndGuards(t *testing.T) {
	app := newTestApp(t)
	anon := app.client(t)
	anon.json(http.MethodGet, "/cart", nil, http.StatusUnauthorized, nil)
	anon.json(http.MethodGet, "/dashboard", nil, http.StatusUnauthorized, nil)
	anon.json(http.MethodPost, "/auth/login", map[string]string{"username": "admin", "password": "nope-nope"}, http.StatusUnauthorized, nil)

	c := app.shopper(t, "ana")
	var me userDTO
	c.json(http.MethodGet, "/me", nil, http.StatusOK, &me)
	assert.Equal(t, "ana", me.Username)
	assert.False(t, me.IsStaff)
	c.json(http.MethodGet, "/dashboard", nil, http.StatusForbidden, nil)
	c.json(http.MethodPost, "/dashboard/categories", map[string]string{"name": "x"}, http.StatusForbidden, nil)

	dup := app.client(t)
	dup.json(http.MethodPost, "/auth/signup", map[string]string{
		"username": "ana", "password": "12345678", "password_confirm": "12345678",
	}, http.StatusConflict, nil)

	res, _ := c.do(http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	c.json(http.MethodGet, "/me", nil, http.StatusUnauthorized, nil)
}

func TestCatalogBrowse(t *testing.T) {
	app := newTestApp(t)
	a, _ := app.seedAB(t)
	c := app.shopper(t, "ana")

	var cats []categoryDTO
	c.json(http.MethodGet, "/categories", nil, http.StatusOK, &cats)
	require.Len(t, cats, 1)

	var withMeds struct {
		categoryDTO
		Medicines []medicineDTO `json:"medicines"`
	}
	c.json(http.MethodGet, fmt.Sprintf("/categories/%d", cats[0].ID), nil, http.StatusOK, &withMeds)
	assert.Equal(t, "General", withMeds.Name)
	assert.Len(t, withMeds.Medicines, 2)

	var meds []medicineDTO
	c.json(http.MethodGet, fmt.Sprintf("/medicines?category=%d&q=a", cats[0].ID), nil, http.StatusOK, &meds)
	require.Len(t, meds, 1)
	assert.Equal(t, a.ID, meds[0].ID)
	assert.Equal(t, "10.00", meds[0].Price)
	c.json(http.MethodGet, "/medicines?category=x", nil, http.StatusBadRequest, nil)

	var hits struct {
		Results []searchHit `json:"results"`
	}
	c.json(http.MethodGet, "/search?q=b", nil, http.StatusOK, &hits)
	require.Len(t, hits.Results, 1)
	assert.Equal(t, searchHit{ID: a.ID + 1, Name: "B", Price: "3.50", Stock: 10}, hits.Results[0])
	c.json(http.MethodGet, "/search", nil, http.StatusOK, &hits)
	assert.Len(t, hits.Results, 2)

	c.json(http.MethodGet, "/categories/42", nil, http.StatusNotFound, nil)
}

func TestDashboard(t *testing.T) {
	app := newTestApp(t)
	a, _ := app.seedAB(t)
	s := app.staff(t)

	s.json(http.MethodPost, "/dashboard/medicines", map[string]any{
		"name": "C", "price": "1.005", "stock": 1, "category_id": a.CategoryID,
	}, http.StatusBadRequest, nil)
	s.json(http.MethodPost, "/dashboard/medicines", map[string]any{
		"name": "C", "price": "1.00", "stock": 1, "category_id": 999,
	}, http.StatusNotFound, nil)

	var upd medicineDTO
	s.json(http.MethodPut, fmt.Sprintf("/dashboard/medicines/%d", a.ID), map[string]any{
		"name": "A+", "price": "12.00", "stock": 4, "category_id": a.CategoryID,
	}, http.StatusOK, &upd)
	assert.Equal(t, "12.00", upd.Price)

	var cat categoryDTO
	s.json(http.MethodPut, fmt.Sprintf("/dashboard/categories/%d", a.CategoryID), map[string]string{"name": "Renamed"}, http.StatusOK, &cat)
	assert.Equal(t, "Renamed", cat.Name)

	var dash struct {
		Categories []categoryDTO `json:"categories"`
		Medicines  []medicineDTO `json:"medicines"`
	}
	s.json(http.MethodGet, "/dashboard", nil, http.StatusOK, &dash)
	assert.Len(t, dash.Categories, 1)
	assert.Len(t, dash.Medicines, 2)

	shopper := app.shopper(t, "ana")
	shopper.json(http.MethodPost, fmt.Sprintf("/cart/items/%d", a.ID), nil, http.StatusOK, nil)
	shopper.json(http.MethodPost, "/checkout", nil, http.StatusSeeOther, nil)
	var all []receiptDTO
	s.json(http.MethodGet, "/dashboard/orders", nil, http.StatusOK, &all)
	require.Len(t, all, 1)
	assert.Equal(t, "12.00", all[0].Total)

	s.json(http.MethodDelete, fmt.Sprintf("/dashboard/categories/%d", a.CategoryID), nil, http.StatusNoContent, nil)
	s.json(http.MethodGet, "/dashboard", nil, http.StatusOK, &dash)
	assert.Empty(t, dash.Medicines)
	s.json(http.MethodDelete, fmt.Sprintf("/dashboard/categories/%d", a.CategoryID), nil, http.StatusNotFound, nil)
}
