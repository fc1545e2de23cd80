// Package checkout drives the two payment flows (hosted redirect and
// embedded tokenize-then-charge) and order cloning for repeat purchase.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront-payments/internal/auth"
	"github.com/ariefcatur/go-storefront-payments/internal/catalog"
	"github.com/ariefcatur/go-storefront-payments/internal/orders"
	"github.com/ariefcatur/go-storefront-payments/internal/payment"
)

var (
	ErrInvalidInput = errors.New("invalid checkout input")

	// ErrTokenChargeUnsupported: the configured provider only supports the
	// hosted flow.
	ErrTokenChargeUnsupported = errors.New("token charging not supported by provider")
)

type OrderStore interface {
	CreateWithItems(ctx context.Context, ownerID, currency, provider string, items []orders.NewItem) (*orders.Order, error)
	Get(ctx context.Context, id string) (*orders.Order, error)
	GetForOwner(ctx context.Context, id, ownerID string) (*orders.Order, error)
	SetProviderRef(ctx context.Context, id, ref string) error
	SetProviderRefIfAbsent(ctx context.Context, id, ref string) error
	Transition(ctx context.Context, id string, from, to orders.Status, providerRef string) error
}

type Catalog interface {
	FindBySlug(ctx context.Context, slug string) (*catalog.Product, error)
}

type Service struct {
	Store    OrderStore
	Catalog  Catalog
	Provider payment.Provider
	Notifier orders.SettlementNotifier // optional
	BaseURL  string                    // site base for success/cancel redirects
}

// Hosted starts a redirect checkout for an existing order of the caller.
// Line items come from the stored snapshots, never a fresh catalog read, so
// the charge always matches what the order was created with. The order's
// status is not touched; a provider failure leaves it PENDING and retryable.
func (s *Service) Hosted(ctx context.Context, ident auth.Identity, orderID string) (string, error) {
	if orderID == "" {
		return "", fmt.Errorf("%w: order id required", ErrInvalidInput)
	}
	o, err := s.Store.GetForOwner(ctx, orderID, ident.OwnerID)
	if err != nil {
		return "", err
	}

	lines := make([]payment.LineItem, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, payment.LineItem{
			Name:      it.NameSnap,
			Quantity:  it.Quantity,
			UnitCents: it.UnitCents,
			Currency:  o.Currency,
			ProductID: it.ProductID,
		})
	}

	hc, err := s.Provider.CreateHostedCheckout(ctx, payment.HostedCheckoutRequest{
		OrderID:    o.ID,
		Lines:      lines,
		SuccessURL: s.BaseURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.BaseURL + "/cancel",
	})
	if err != nil {
		return "", err
	}
	if err := s.Store.SetProviderRef(ctx, o.ID, hc.ProviderRef); err != nil {
		return "", err
	}
	return hc.RedirectURL, nil
}

type EmbeddedOrder struct {
	OrderID     string `json:"orderId"`
	AmountCents int    `json:"amountCents"`
	Currency    string `json:"currency"`
}

// CreateEmbedded is phase one of the embedded flow: price the product
// server-side, create the PENDING order with its single line atomically, and
// return what the client needs to render the provider's card fields.
// Client-sent amounts are never trusted.
func (s *Service) CreateEmbedded(ctx context.Context, ident auth.Identity, productSlug string, quantity int) (*EmbeddedOrder, error) {
	if productSlug == "" || quantity <= 0 {
		return nil, fmt.Errorf("%w: slug and positive quantity required", ErrInvalidInput)
	}
	p, err := s.Catalog.FindBySlug(ctx, productSlug)
	if err != nil {
		return nil, err
	}
	o, err := s.Store.CreateWithItems(ctx, ident.OwnerID, p.Currency, s.Provider.Name(), []orders.NewItem{{
		ProductID: p.ID,
		Quantity:  quantity,
		UnitCents: p.UnitAmount,
		NameSnap:  p.Name,
	}})
	if err != nil {
		return nil, err
	}
	return &EmbeddedOrder{OrderID: o.ID, AmountCents: o.TotalCents, Currency: o.Currency}, nil
}

// ConfirmEmbedded is phase two: charge the token obtained client-side. The
// gateway is invoked only for PENDING orders; a synchronous PAID result
// transitions the order, a PENDING result just records the ref and leaves
// the outcome to the webhook.
func (s *Service) ConfirmEmbedded(ctx context.Context, orderID, token string) (orders.Status, error) {
	if orderID == "" || token == "" {
		return "", fmt.Errorf("%w: order id and token required", ErrInvalidInput)
	}
	o, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	if o.Status != orders.StatusPending {
		return "", fmt.Errorf("%w: order is %s", orders.ErrStateConflict, o.Status)
	}

	charger, ok := s.Provider.(payment.TokenCharger)
	if !ok {
		return "", ErrTokenChargeUnsupported
	}
	res, err := charger.ChargeWithToken(ctx, o.ID, token, o.TotalCents, o.Currency)
	if err != nil {
		return "", err
	}

	switch res.Status {
	case payment.ChargePaid:
		err := s.Store.Transition(ctx, o.ID, orders.StatusPending, orders.StatusPaid, res.ProviderRef)
		if err != nil && !errors.Is(err, orders.ErrAlreadyApplied) {
			// ErrAlreadyApplied means the webhook won the race; same outcome.
			return "", err
		}
		if err == nil && s.Notifier != nil {
			paid := *o
			paid.Status = orders.StatusPaid
			paid.ProviderRef = &res.ProviderRef
			s.Notifier.Settled(orders.EventOrderPaid, &paid)
		}
		return orders.StatusPaid, nil
	case payment.ChargePending:
		// keep-first: a webhook settling concurrently must not lose its ref
		if err := s.Store.SetProviderRefIfAbsent(ctx, o.ID, res.ProviderRef); err != nil {
			return "", err
		}
		return orders.StatusPending, nil
	default:
		return "", &payment.ProviderError{Op: "charge", Err: fmt.Errorf("unexpected charge status %q", res.Status)}
	}
}

// Reorder clones a past order of the caller into a fresh PENDING one,
// copying each line snapshot verbatim. The historical unit price is reused
// deliberately, even when the catalog price has since changed. Checkout is
// not re-entered here; that is a separate caller action.
func (s *Service) Reorder(ctx context.Context, ident auth.Identity, orderID string) (string, error) {
	if orderID == "" {
		return "", fmt.Errorf("%w: order id required", ErrInvalidInput)
	}
	src, err := s.Store.GetForOwner(ctx, orderID, ident.OwnerID)
	if err != nil {
		return "", err
	}

	items := make([]orders.NewItem, 0, len(src.Items))
	for _, it := range src.Items {
		items = append(items, orders.NewItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitCents: it.UnitCents,
			NameSnap:  it.NameSnap,
		})
	}
	o, err := s.Store.CreateWithItems(ctx, ident.OwnerID, src.Currency, s.Provider.Name(), items)
	if err != nil {
		return "", err
	}
	return o.ID, nil
}
