package redisx

import "time"

const (
	// Webhook delivery dedup by provider event id: dedup:webhook:{event_id}
	KeyWebhookDedup = "dedup:webhook:%s"

	// Consumer-side event dedup: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Order status cache: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Units sold per product: sales:{product_id}
	KeySalesCount = "sales:%s"

	// Settled revenue in cents per currency: revenue:{currency}
	KeyRevenue = "revenue:%s"
)

var (
	TTLDedup       = 48 * time.Hour
	TTLStatusCache = 5 * time.Minute
)
