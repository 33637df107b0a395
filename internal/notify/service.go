// Package notify reacts to placed orders: low-stock alerts for staff and a
// confirmation email for the buyer.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/ariefcatur/go-pharmacy-store/internal/apperr"
	"github.com/ariefcatur/go-pharmacy-store/internal/auth"
	"github.com/ariefcatur/go-pharmacy-store/internal/catalog"
	kafkax "github.com/ariefcatur/go-pharmacy-store/internal/kafka"
	"github.com/ariefcatur/go-pharmacy-store/internal/orders"
	"github.com/ariefcatur/go-pharmacy-store/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type MedicineGetter interface {
	GetMedicine(ctx context.Context, id int64) (catalog.Medicine, error)
}

type UserGetter interface {
	UserByID(ctx context.Context, id int64) (auth.User, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Catalog     MedicineGetter
	Users       UserGetter
	Redis       *redis.Client
	StockLow    Publisher
	Mailer      Mailer
	Threshold   int
	ServiceName string
}

// HandleOrderPlaced is the consumer handler for TopicOrderPlaced. Each event id is
// processed once; a failed attempt releases its claim so redelivery can retry.
func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// poison message, nothing a retry would fix
		log.Printf("notify: drop undecodable message at offset %d: %v", m.Offset, err)
		return nil
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "notify", env.EventID)
	first, err := redisx.Claim(ctx, s.Redis, dkey, redisx.TTLDedup)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	if err := s.process(ctx, env); err != nil {
		s.release(ctx, dkey)
		return err
	}
	return nil
}

// release drops a claim even when ctx is already cancelled, otherwise the event
// would count as done until the dedup key expires.
func (s *Service) release(ctx context.Context, dkey string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.Redis.Del(rctx, dkey).Err(); err != nil {
		log.Printf("notify: release claim %s: %v", dkey, err)
	}
}

func (s *Service) process(ctx context.Context, env orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		log.Printf("notify: event %s: %v", env.EventID, err)
		return nil
	}

	for _, it := range p.Items {
		med, err := s.Catalog.GetMedicine(ctx, it.MedicineID)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("medicine %d: %w", it.MedicineID, err)
		}
		if med.Stock <= s.Threshold {
			s.publishStockLow(med, env)
		}
	}

	if s.Mailer == nil {
		return nil
	}
	u, err := s.Users.UserByID(ctx, p.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("user %d: %w", p.UserID, err)
	}
	if u.Email == "" {
		return nil
	}
	subject, text, html := confirmation(u, p)
	if err := s.Mailer.Send(ctx, u.Email, subject, text, html); err != nil {
		return fmt.Errorf("mail order %d: %w", p.OrderID, err)
	}
	return nil
}

func (s *Service) publishStockLow(m catalog.Medicine, cause orders.Envelope) {
	payload := kafkax.MustMarshal(orders.StockLowPayload{
		MedicineID: m.ID,
		Name:       m.Name,
		Stock:      m.Stock,
		Threshold:  s.Threshold,
	})
	ev := orders.NewEnvelope(orders.EventStockLow, s.ServiceName, cause.TraceID, cause.CorrelationID, payload)
	s.StockLow.Publish([]byte(strconv.FormatInt(m.ID, 10)), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventStockLow)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
