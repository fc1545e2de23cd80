package orders

import (
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-storefront-payments/internal/kafka"
)

// SettlementNotifier is the asynchronous side-effect boundary behind a
// successful settlement. Implementations must not block the caller; their
// failures are logged inside the producer loop, never silently dropped.
type SettlementNotifier interface {
	Settled(eventType string, o *Order)
}

type KafkaNotifier struct {
	Producer *kafkax.Producer
	Service  string
}

func (n *KafkaNotifier) Settled(eventType string, o *Order) {
	items := make([]ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemQty{ProductID: it.ProductID, Qty: it.Quantity})
	}
	ref := ""
	if o.ProviderRef != nil {
		ref = *o.ProviderRef
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      n.Service,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(SettlementPayload{
			OrderID:     o.ID,
			OwnerID:     o.OwnerID,
			Status:      string(o.Status),
			ProviderRef: ref,
			AmountCents: o.TotalCents,
			Currency:    o.Currency,
			Items:       items,
		}),
	}
	n.Producer.Publish(PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
