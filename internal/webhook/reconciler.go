// Package webhook reconciles provider-pushed payment events with the order
// store. Deliveries are authenticated against the raw body, deduplicated,
// and applied through the order state machine; duplicates and out-of-order
// events are swallowed so the provider never retries them forever.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront-payments/internal/orders"
	"github.com/ariefcatur/go-storefront-payments/internal/redisx"
)

const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventPaymentCanceled  = "payment.canceled"
	EventPaymentRefunded  = "payment.refunded"
)

var (
	ErrBadSignature   = errors.New("invalid webhook signature")
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// Event is the provider's wire format. The id is optional; when present it
// keys exact-duplicate detection before any transition is attempted.
type Event struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
	Data struct {
		OrderID     string `json:"orderId"`
		ProviderRef string `json:"providerRef,omitempty"`
	} `json:"data"`
}

type OrderStore interface {
	Get(ctx context.Context, id string) (*orders.Order, error)
	Transition(ctx context.Context, id string, from, to orders.Status, providerRef string) error
}

// Cache holds the reconciler's idempotency marks and the order status cache.
type Cache interface {
	SeenEvent(ctx context.Context, eventID string) (bool, error)
	MarkEvent(ctx context.Context, eventID string) error
	SetStatus(ctx context.Context, orderID string, status orders.Status) error
}

type RedisCache struct{ Client *redis.Client }

func (c *RedisCache) SeenEvent(ctx context.Context, eventID string) (bool, error) {
	return redisx.Exists(ctx, c.Client, fmt.Sprintf(redisx.KeyWebhookDedup, eventID))
}

func (c *RedisCache) MarkEvent(ctx context.Context, eventID string) error {
	return c.Client.Set(ctx, fmt.Sprintf(redisx.KeyWebhookDedup, eventID), "1", redisx.TTLDedup).Err()
}

func (c *RedisCache) SetStatus(ctx context.Context, orderID string, status orders.Status) error {
	body, _ := json.Marshal(map[string]any{"status": status})
	return c.Client.Set(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID), body, redisx.TTLStatusCache).Err()
}

type Reconciler struct {
	Store    OrderStore
	Cache    Cache // optional; dedup degrades to state-machine no-ops
	Secret   string
	Notifier orders.SettlementNotifier // optional
}

// VerifySignature checks the hex HMAC-SHA256 of the raw body. The digest is
// computed over the exact bytes received, never a re-serialized structure.
func (r *Reconciler) VerifySignature(raw []byte, sig string) error {
	if r.Secret == "" {
		return fmt.Errorf("%w: webhook secret not configured", ErrBadSignature)
	}
	mac := hmac.New(sha256.New, []byte(r.Secret))
	mac.Write(raw)
	digest := hex.EncodeToString(mac.Sum(nil))
	if len(digest) != len(sig) {
		return ErrBadSignature
	}
	if subtle.ConstantTimeCompare([]byte(digest), []byte(sig)) != 1 {
		return ErrBadSignature
	}
	return nil
}

// Handle processes one delivery. A nil return means the provider may stop
// retrying: that covers applied transitions, duplicates, unknown orders and
// unknown event types. Only signature failures, malformed bodies and
// storage errors surface.
func (r *Reconciler) Handle(ctx context.Context, raw []byte, sig string) error {
	if err := r.VerifySignature(raw, sig); err != nil {
		return err
	}

	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	var from, to orders.Status
	ref := ""
	switch ev.Type {
	case EventPaymentSucceeded:
		from, to = orders.StatusPending, orders.StatusPaid
		ref = ev.Data.ProviderRef
	case EventPaymentFailed, EventPaymentCanceled:
		from, to = orders.StatusPending, orders.StatusCanceled
	case EventPaymentRefunded:
		from, to = orders.StatusPaid, orders.StatusRefunded
	default:
		log.Printf("webhook: ignoring event type %q", ev.Type)
		return nil
	}
	if ev.Data.OrderID == "" {
		return fmt.Errorf("%w: missing orderId", ErrMalformedEvent)
	}

	if r.seen(ctx, ev.ID) {
		log.Printf("webhook: duplicate delivery event=%s order=%s", ev.ID, ev.Data.OrderID)
		return nil
	}

	err := r.Store.Transition(ctx, ev.Data.OrderID, from, to, ref)
	switch {
	case errors.Is(err, orders.ErrNotFound):
		// accept so the provider stops retrying; nothing to corrupt
		log.Printf("webhook: unknown order %s for %s", ev.Data.OrderID, ev.Type)
	case errors.Is(err, orders.ErrAlreadyApplied):
		r.logRefMismatch(ctx, ev, ref)
	case errors.Is(err, orders.ErrStateConflict):
		log.Printf("webhook: out-of-order %s for order %s: %v", ev.Type, ev.Data.OrderID, err)
	case err != nil:
		// storage failure: the event stays unmarked so the provider's
		// retry gets another attempt instead of being dropped as a dup
		return err
	default:
		o, err := r.Store.Get(ctx, ev.Data.OrderID)
		if err != nil {
			log.Printf("webhook: reload order %s: %v", ev.Data.OrderID, err)
			break
		}
		r.cacheStatus(ctx, o)
		if r.Notifier != nil {
			r.Notifier.Settled(settlementEvent(to), o)
		}
	}

	r.markProcessed(ctx, ev.ID)
	return nil
}

// seen only reads; the claim is written by markProcessed once the delivery
// reached a safe outcome. Two concurrent deliveries may both pass this
// check, the conditional transition turns the loser into a no-op.
func (r *Reconciler) seen(ctx context.Context, eventID string) bool {
	if eventID == "" || r.Cache == nil {
		return false
	}
	ok, err := r.Cache.SeenEvent(ctx, eventID)
	if err != nil {
		log.Printf("webhook: dedup check: %v", err)
		return false
	}
	return ok
}

func (r *Reconciler) markProcessed(ctx context.Context, eventID string) {
	if eventID == "" || r.Cache == nil {
		return
	}
	if err := r.Cache.MarkEvent(ctx, eventID); err != nil {
		log.Printf("webhook: mark processed %s: %v", eventID, err)
	}
}

// logRefMismatch surfaces the case where a duplicate success claims a
// different providerRef than the one already stored. First writer wins; the
// conflict is only diagnosed, pending a product-policy decision.
func (r *Reconciler) logRefMismatch(ctx context.Context, ev Event, ref string) {
	if ref == "" {
		log.Printf("webhook: %s already applied for order %s", ev.Type, ev.Data.OrderID)
		return
	}
	o, err := r.Store.Get(ctx, ev.Data.OrderID)
	if err == nil && o.ProviderRef != nil && *o.ProviderRef != ref {
		log.Printf("webhook: order %s already settled with ref %s, duplicate claims %s", o.ID, *o.ProviderRef, ref)
		return
	}
	log.Printf("webhook: %s already applied for order %s", ev.Type, ev.Data.OrderID)
}

func (r *Reconciler) cacheStatus(ctx context.Context, o *orders.Order) {
	if r.Cache == nil {
		return
	}
	if err := r.Cache.SetStatus(ctx, o.ID, o.Status); err != nil {
		log.Printf("webhook: cache status %s: %v", o.ID, err)
	}
}

func settlementEvent(to orders.Status) string {
	switch to {
	case orders.StatusPaid:
		return orders.EventOrderPaid
	case orders.StatusRefunded:
		return orders.EventOrderRefunded
	default:
		return orders.EventOrderCanceled
	}
}
