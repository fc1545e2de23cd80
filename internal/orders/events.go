package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPaid     = "OrderPaid"
	EventOrderCanceled = "OrderCanceled"
	EventOrderRefunded = "OrderRefunded"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "storefront-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// SettlementPayload describes a status change that the payment provider has
// made definitive (paid, canceled or refunded).
type SettlementPayload struct {
	OrderID     string    `json:"order_id"`
	OwnerID     string    `json:"owner_id"`
	Status      string    `json:"status"`
	ProviderRef string    `json:"provider_ref,omitempty"`
	AmountCents int       `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Items       []ItemQty `json:"items,omitempty"`
}
