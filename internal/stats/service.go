// Package stats applies post-settlement side effects: per-product sales
// counters and revenue totals. It runs as a kafka consumer, so a failure is
// retried and logged instead of silently dropped.
package stats

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-storefront-payments/internal/kafka"
	"github.com/ariefcatur/go-storefront-payments/internal/orders"
	"github.com/ariefcatur/go-storefront-payments/internal/redisx"
)

type Service struct {
	Redis       *redis.Client
	ServiceName string
}

// HandleSettled is installed as the consumer handler for order.settled.
// Non-paid settlements are ignored; counters only reflect money moved.
func (s *Service) HandleSettled(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderPaid {
		return nil
	}

	// dedup by event id: counters must not double-count on redelivery
	dkey := fmt.Sprintf(redisx.KeyDedup, "stats", env.EventID)
	exists, err := redisx.Exists(ctx, s.Redis, dkey)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.SettlementPayload](env.Payload)
	if err != nil {
		return err
	}

	for _, it := range p.Items {
		key := fmt.Sprintf(redisx.KeySalesCount, it.ProductID)
		if err := s.Redis.IncrBy(ctx, key, int64(it.Qty)).Err(); err != nil {
			return fmt.Errorf("incr sales %s: %w", it.ProductID, err)
		}
	}
	rkey := fmt.Sprintf(redisx.KeyRevenue, p.Currency)
	if err := s.Redis.IncrBy(ctx, rkey, int64(p.AmountCents)).Err(); err != nil {
		return fmt.Errorf("incr revenue %s: %w", p.Currency, err)
	}

	if err := s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err(); err != nil {
		log.Printf("stats: mark processed %s: %v", env.EventID, err)
	}
	log.Printf("stats: counted order %s (%d %s)", p.OrderID, p.AmountCents, p.Currency)
	return nil
}
