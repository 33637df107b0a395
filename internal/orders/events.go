package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced = "OrderPlaced"
	EventStockLow    = "StockLow"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "pharmacy-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually the order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemLine struct {
	MedicineID int64  `json:"medicine_id"`
	Qty        int    `json:"qty"`
	UnitPrice  string `json:"unit_price"`
}

type OrderPlacedPayload struct {
	OrderID   int64      `json:"order_id"`
	UserID    int64      `json:"user_id"`
	Items     []ItemLine `json:"items"`
	Total     string     `json:"total"`
	CreatedAt time.Time  `json:"created_at"`
}

type StockLowPayload struct {
	MedicineID int64  `json:"medicine_id"`
	Name       string `json:"name"`
	Stock      int    `json:"stock"`
	Threshold  int    `json:"threshold"`
}

func NewEnvelope(eventType, producer, traceID, correlationID string, payload []byte) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       payload,
	}
}

// PlacedPayload snapshots a freshly committed receipt, prices as charged.
func PlacedPayload(r Receipt) OrderPlacedPayload {
	items := make([]ItemLine, 0, len(r.Lines))
	for _, l := range r.Lines {
		items = append(items, ItemLine{
			MedicineID: l.Item.MedicineID,
			Qty:        l.Item.Quantity,
			UnitPrice:  l.Medicine.Price.StringFixed(2),
		})
	}
	return OrderPlacedPayload{
		OrderID:   r.Order.ID,
		UserID:    r.Order.UserID,
		Items:     items,
		Total:     r.Total.StringFixed(2),
		CreatedAt: r.Order.CreatedAt,
	}
}
