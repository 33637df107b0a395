package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-pharmacy-store/internal/auth"
	"github.com/ariefcatur/go-pharmacy-store/internal/catalog"
	kafkax "github.com/ariefcatur/go-pharmacy-store/internal/kafka"
	"github.com/ariefcatur/go-pharmacy-store/internal/memstore"
	"github.com/ariefcatur/go-pharmacy-store/internal/orders"
	"github.com/ariefcatur/go-pharmacy-store/internal/redisx"
	"github.com/shopspring/decimal"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct{ to, subject, text string }

type fakeMailer struct {
	mu   sync.Mutex
	sent []sent
	err  error
	// cancel, when set, is called mid-send to mimic a shutdown
	cancel context.CancelFunc
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, text, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
		return ctx.Err()
	}
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{to, subject, text})
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []kafkago.Message
}

func (f *fakePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, kafkago.Message{Key: key, Value: value, Headers: headers})
}

type env struct {
	svc    *Service
	mail   *fakeMailer
	pub    *fakePublisher
	mr     *miniredis.Miniredis
	user   auth.User
	low    catalog.Medicine
	plenty catalog.Medicine
}

func setup(t *testing.T) env {
	t.Helper()
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })

	store := memstore.New()
	c, err := store.CreateCategory(ctx, catalog.Category{Name: "General"})
	require.NoError(t, err)
	low, err := store.CreateMedicine(ctx, catalog.Medicine{Name: "Aspirin", Price: decimal.RequireFromString("2.00"), Stock: 2, CategoryID: c.ID})
	require.NoError(t, err)
	plenty, err := store.CreateMedicine(ctx, catalog.Medicine{Name: "Zinc", Price: decimal.RequireFromString("5.00"), Stock: 50, CategoryID: c.ID})
	require.NoError(t, err)
	u, err := store.CreateUser(ctx, auth.User{Username: "ana", Email: "ana@example.com"})
	require.NoError(t, err)

	mail := &fakeMailer{}
	pub := &fakePublisher{}
	return env{
		svc: &Service{
			Catalog: store, Users: store, Redis: rdb, StockLow: pub, Mailer: mail,
			Threshold: 5, ServiceName: "pharmacy-notify",
		},
		mail: mail, pub: pub, mr: mr, user: u, low: low, plenty: plenty,
	}
}

func (e env) placed(t *testing.T) kafkago.Message {
	t.Helper()
	p := orders.OrderPlacedPayload{
		OrderID: 11,
		UserID:  e.user.ID,
		Items: []orders.ItemLine{
			{MedicineID: e.low.ID, Qty: 3, UnitPrice: "2.00"},
			{MedicineID: e.plenty.ID, Qty: 1, UnitPrice: "5.00"},
		},
		Total:     "11.00",
		CreatedAt: time.Now().UTC(),
	}
	ev := orders.NewEnvelope(orders.EventOrderPlaced, "pharmacy-api", "trace-1", "11", kafkax.MustMarshal(p))
	return kafkago.Message{Value: kafkax.MustMarshal(ev)}
}

func TestHandleOrderPlaced(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	msg := e.placed(t)

	require.NoError(t, e.svc.HandleOrderPlaced(ctx, msg))

	require.Len(t, e.pub.msgs, 1)
	var ev orders.Envelope
	require.NoError(t, json.Unmarshal(e.pub.msgs[0].Value, &ev))
	assert.Equal(t, orders.EventStockLow, ev.EventType)
	assert.Equal(t, "11", ev.CorrelationID)
	low, err := kafkax.UnwrapPayload[orders.StockLowPayload](ev.Payload)
	require.NoError(t, err)
	assert.Equal(t, orders.StockLowPayload{MedicineID: e.low.ID, Name: "Aspirin", Stock: 2, Threshold: 5}, low)

	require.Len(t, e.mail.sent, 1)
	assert.Equal(t, "ana@example.com", e.mail.sent[0].to)
	assert.Equal(t, "Order #11 confirmation", e.mail.sent[0].subject)
	assert.Contains(t, e.mail.sent[0].text, "Total: 11.00")

	// redelivery of the same event is a no-op
	require.NoError(t, e.svc.HandleOrderPlaced(ctx, msg))
	assert.Len(t, e.pub.msgs, 1)
	assert.Len(t, e.mail.sent, 1)
}

func TestHandleOrderPlacedReleasesClaimOnFailure(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	msg := e.placed(t)

	e.mail.err = errors.New("ses down")
	assert.Error(t, e.svc.HandleOrderPlaced(ctx, msg))
	assert.Empty(t, e.mr.Keys())

	e.mail.err = nil
	require.NoError(t, e.svc.HandleOrderPlaced(ctx, msg))
	assert.Len(t, e.mail.sent, 1)
}

func TestHandleOrderPlacedReleasesClaimWhenCancelled(t *testing.T) {
	e := setup(t)
	msg := e.placed(t)

	ctx, cancel := context.WithCancel(context.Background())
	e.mail.cancel = cancel
	assert.ErrorIs(t, e.svc.HandleOrderPlaced(ctx, msg), context.Canceled)
	assert.Empty(t, e.mr.Keys())

	e.mail.cancel = nil
	require.NoError(t, e.svc.HandleOrderPlaced(context.Background(), msg))
	assert.Len(t, e.mail.sent, 1)
}

func TestHandleOrderPlacedIgnoresOtherEvents(t *testing.T) {
	e := setup(t)
	ev := orders.NewEnvelope(orders.EventStockLow, "x", "", "", []byte(`{}`))
	require.NoError(t, e.svc.HandleOrderPlaced(context.Background(), kafkago.Message{Value: kafkax.MustMarshal(ev)}))
	require.NoError(t, e.svc.HandleOrderPlaced(context.Background(), kafkago.Message{Value: []byte("not json")}))
	assert.Empty(t, e.pub.msgs)
	assert.Empty(t, e.mail.sent)
}

func TestConfirmationEscapesHTML(t *testing.T) {
	_, text, body := confirmation(auth.User{Username: "<b>"}, orders.OrderPlacedPayload{OrderID: 3, Total: "1.00"})
	assert.Contains(t, text, "Hi <b>,")
	assert.Contains(t, body, "Hi &lt;b&gt;,")
}
