package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ariefcatur/go-storefront-payments/internal/auth"
	"github.com/ariefcatur/go-storefront-payments/internal/catalog"
	"github.com/ariefcatur/go-storefront-payments/internal/orders"
	"github.com/ariefcatur/go-storefront-payments/internal/payment"
)

// in-memory OrderStore with the same transition semantics as the pg repo

type mockStore struct {
	byID map[string]*orders.Order
	seq  int
}

func newMockStore() *mockStore {
	return &mockStore{byID: map[string]*orders.Order{}}
}

func (m *mockStore) CreateWithItems(ctx context.Context, ownerID, currency, provider string, items []orders.NewItem) (*orders.Order, error) {
	if ownerID == "" || currency == "" || len(items) == 0 {
		return nil, orders.ErrInvalidInput
	}
	m.seq++
	o := &orders.Order{
		ID:       fmt.Sprintf("ord-%d", m.seq),
		OwnerID:  ownerID,
		Status:   orders.StatusPending,
		Currency: currency,
		Provider: provider,
	}
	for _, it := range items {
		o.TotalCents += it.UnitCents * it.Quantity
		o.Items = append(o.Items, orders.OrderItem{
			ID:        fmt.Sprintf("item-%d-%d", m.seq, len(o.Items)),
			OrderID:   o.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitCents: it.UnitCents,
			NameSnap:  it.NameSnap,
		})
	}
	m.byID[o.ID] = o
	return o, nil
}

func (m *mockStore) Get(ctx context.Context, id string) (*orders.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockStore) GetForOwner(ctx context.Context, id, ownerID string) (*orders.Order, error) {
	o, ok := m.byID[id]
	if !ok || o.OwnerID != ownerID {
		return nil, orders.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockStore) SetProviderRef(ctx context.Context, id, ref string) error {
	o, ok := m.byID[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.ProviderRef = &ref
	return nil
}

func (m *mockStore) SetProviderRefIfAbsent(ctx context.Context, id, ref string) error {
	o, ok := m.byID[id]
	if !ok {
		return orders.ErrNotFound
	}
	if o.ProviderRef == nil {
		o.ProviderRef = &ref
	}
	return nil
}

func (m *mockStore) Transition(ctx context.Context, id string, from, to orders.Status, ref string) error {
	if !orders.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", orders.ErrStateConflict, from, to)
	}
	o, ok := m.byID[id]
	if !ok {
		return orders.ErrNotFound
	}
	if o.Status != from {
		if o.Status == to {
			return orders.ErrAlreadyApplied
		}
		return fmt.Errorf("%w: current %s", orders.ErrStateConflict, o.Status)
	}
	o.Status = to
	if ref != "" && o.ProviderRef == nil {
		o.ProviderRef = &ref
	}
	return nil
}

type mockCatalog struct {
	products map[string]*catalog.Product
}

func (m *mockCatalog) FindBySlug(ctx context.Context, slug string) (*catalog.Product, error) {
	p, ok := m.products[slug]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p, nil
}

// hosted-only provider

type mockProvider struct {
	hostedCalls int
	lastReq     payment.HostedCheckoutRequest
	hostedErr   error
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) CreateHostedCheckout(ctx context.Context, req payment.HostedCheckoutRequest) (*payment.HostedCheckout, error) {
	m.hostedCalls++
	m.lastReq = req
	if m.hostedErr != nil {
		return nil, m.hostedErr
	}
	return &payment.HostedCheckout{RedirectURL: "https://pay.example/s/abc", ProviderRef: "sess_abc"}, nil
}

// provider that also charges tokens

type mockChargeProvider struct {
	mockProvider
	chargeCalls  int
	chargeResult *payment.ChargeResult
	chargeErr    error
}

func (m *mockChargeProvider) ChargeWithToken(ctx context.Context, orderID, token string, amountCents int, currency string) (*payment.ChargeResult, error) {
	m.chargeCalls++
	if m.chargeErr != nil {
		return nil, m.chargeErr
	}
	return m.chargeResult, nil
}

type mockNotifier struct {
	events []string
	last   *orders.Order
}

func (m *mockNotifier) Settled(eventType string, o *orders.Order) {
	m.events = append(m.events, eventType)
	m.last = o
}

func newService(store *mockStore, provider payment.Provider) (*Service, *mockNotifier) {
	n := &mockNotifier{}
	return &Service{
		Store: store,
		Catalog: &mockCatalog{products: map[string]*catalog.Product{
			"alpha": {ID: "prod-1", Slug: "alpha", Name: "Alpha Gadget", UnitAmount: 1990, Currency: "usd", Active: true},
		}},
		Provider: provider,
		Notifier: n,
		BaseURL:  "http://localhost:3000",
	}, n
}

func owner(id string) auth.Identity { return auth.Identity{OwnerID: id} }

func TestCreateEmbedded(t *testing.T) {
	store := newMockStore()
	svc, _ := newService(store, &mockChargeProvider{})

	out, err := svc.CreateEmbedded(context.Background(), owner("user-1"), "alpha", 2)
	if err != nil {
		t.Fatalf("CreateEmbedded: %v", err)
	}
	if out.AmountCents != 3980 {
		t.Errorf("amount = %d, want 3980", out.AmountCents)
	}
	if out.Currency != "usd" {
		t.Errorf("currency = %s, want usd", out.Currency)
	}

	o := store.byID[out.OrderID]
	if o.Status != orders.StatusPending {
		t.Errorf("status = %s, want PENDING", o.Status)
	}
	if len(o.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(o.Items))
	}
	it := o.Items[0]
	if it.UnitCents != 1990 || it.NameSnap != "Alpha Gadget" || it.ProductID != "prod-1" {
		t.Errorf("line snapshot mismatch: %+v", it)
	}
	if o.TotalCents != it.UnitCents*it.Quantity {
		t.Errorf("total %d != unit*qty %d", o.TotalCents, it.UnitCents*it.Quantity)
	}
}

func TestCreateEmbedded_UnknownProduct(t *testing.T) {
	svc, _ := newService(newMockStore(), &mockChargeProvider{})
	_, err := svc.CreateEmbedded(context.Background(), owner("user-1"), "omega", 1)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("err = %v, want catalog.ErrNotFound", err)
	}
}

func TestCreateEmbedded_BadQuantity(t *testing.T) {
	svc, _ := newService(newMockStore(), &mockChargeProvider{})
	_, err := svc.CreateEmbedded(context.Background(), owner("user-1"), "alpha", 0)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestConfirmEmbedded_Paid(t *testing.T) {
	store := newMockStore()
	provider := &mockChargeProvider{chargeResult: &payment.ChargeResult{ProviderRef: "ch_1", Status: payment.ChargePaid}}
	svc, notifier := newService(store, provider)

	out, _ := svc.CreateEmbedded(context.Background(), owner("user-1"), "alpha", 2)
	status, err := svc.ConfirmEmbedded(context.Background(), out.OrderID, "tok_visa")
	if err != nil {
		t.Fatalf("ConfirmEmbedded: %v", err)
	}
	if status != orders.StatusPaid {
		t.Errorf("status = %s, want PAID", status)
	}

	o := store.byID[out.OrderID]
	if o.Status != orders.StatusPaid {
		t.Errorf("stored status = %s, want PAID", o.Status)
	}
	if o.ProviderRef == nil || *o.ProviderRef != "ch_1" {
		t.Errorf("providerRef = %v, want ch_1", o.ProviderRef)
	}
	if len(notifier.events) != 1 || notifier.events[0] != orders.EventOrderPaid {
		t.Errorf("notifier events = %v, want [OrderPaid]", notifier.events)
	}
}

func TestConfirmEmbedded_PendingResult(t *testing.T) {
	store := newMockStore()
	provider := &mockChargeProvider{chargeResult: &payment.ChargeResult{ProviderRef: "ch_2", Status: payment.ChargePending}}
	svc, notifier := newService(store, provider)

	out, _ := svc.CreateEmbedded(context.Background(), owner("user-1"), "alpha", 1)
	status, err := svc.ConfirmEmbedded(context.Background(), out.OrderID, "tok_visa")
	if err != nil {
		t.Fatalf("ConfirmEmbedded: %v", err)
	}
	if status != orders.StatusPending {
		t.Errorf("status = %s, want PENDING", status)
	}

	o := store.byID[out.OrderID]
	if o.Status != orders.StatusPending {
		t.Errorf("stored status = %s, want PENDING (awaiting webhook)", o.Status)
	}
	if o.ProviderRef == nil || *o.ProviderRef != "ch_2" {
		t.Errorf("providerRef = %v, want ch_2", o.ProviderRef)
	}
	if len(notifier.events) != 0 {
		t.Errorf("no settlement event expected, got %v", notifier.events)
	}
}

// A webhook may settle the order between the PENDING check and the charge
// returning. The pending-result ref write must not clobber the ref the
// settlement recorded.
func TestConfirmEmbedded_PendingResultKeepsEarlierRef(t *testing.T) {
	store := newMockStore()
	provider := &mockChargeProvider{chargeResult: &payment.ChargeResult{ProviderRef: "ch_late", Status: payment.ChargePending}}
	svc, _ := newService(store, provider)

	out, _ := svc.CreateEmbedded(context.Background(), owner("user-1"), "alpha", 1)
	settled := "ch_webhook"
	store.byID[out.OrderID].ProviderRef = &settled

	if _, err := svc.ConfirmEmbedded(context.Background(), out.OrderID, "tok_visa"); err != nil {
		t.Fatalf("ConfirmEmbedded: %v", err)
	}
	if ref := store.byID[out.OrderID].ProviderRef; ref == nil || *ref != "ch_webhook" {
		t.Errorf("providerRef = %v, want first writer ch_webhook", ref)
	}
}

func TestConfirmEmbedded_NotPendingNeverCallsGateway(t *testing.T) {
	store := newMockStore()
	provider := &mockChargeProvider{chargeResult: &payment.ChargeResult{ProviderRef: "ch_3", Status: payment.ChargePaid}}
	svc, _ := newService(store, provider)

	out, _ := svc.CreateEmbedded(context.Background(), owner("user-1"), "alpha", 1)
	store.byID[out.OrderID].Status = orders.StatusPaid

	_, err := svc.ConfirmEmbedded(context.Background(), out.OrderID, "tok_visa")
	if !errors.Is(err, orders.ErrStateConflict) {
		t.Errorf("err = %v, want ErrStateConflict", err)
	}
	if provider.chargeCalls != 0 {
		t.Errorf("gateway called %d times for non-PENDING order", provider.chargeCalls)
	}
}

func TestConfirmEmbedded_Unsupported(t *testing.T) {
	store := newMockStore()
	svc, _ := newService(store, &mockProvider{}) // hosted only

	out, _ := svc.CreateEmbedded(context.Background(), owner("user-1"), "alpha", 1)
	_, err := svc.ConfirmEmbedded(context.Background(), out.OrderID, "tok_visa")
	if !errors.Is(err, ErrTokenChargeUnsupported) {
		t.Errorf("err = %v, want ErrTokenChargeUnsupported", err)
	}
}

func TestConfirmEmbedded_UnknownOrder(t *testing.T) {
	svc, _ := newService(newMockStore(), &mockChargeProvider{})
	_, err := svc.ConfirmEmbedded(context.Background(), "nope", "tok")
	if !errors.Is(err, orders.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestHosted_UsesStoredSnapshots(t *testing.T) {
	store := newMockStore()
	provider := &mockChargeProvider{}
	svc, _ := newService(store, provider)

	out, _ := svc.CreateEmbedded(context.Background(), owner("user-1"), "alpha", 2)
	url, err := svc.Hosted(context.Background(), owner("user-1"), out.OrderID)
	if err != nil {
		t.Fatalf("Hosted: %v", err)
	}
	if url != "https://pay.example/s/abc" {
		t.Errorf("url = %s", url)
	}

	if provider.hostedCalls != 1 {
		t.Fatalf("hosted calls = %d, want 1", provider.hostedCalls)
	}
	lines := provider.lastReq.Lines
	if len(lines) != 1 || lines[0].Name != "Alpha Gadget" || lines[0].UnitCents != 1990 || lines[0].Quantity != 2 {
		t.Errorf("lines not built from snapshots: %+v", lines)
	}

	o := store.byID[out.OrderID]
	if o.Status != orders.StatusPending {
		t.Errorf("hosted flow changed status to %s", o.Status)
	}
	if o.ProviderRef == nil || *o.ProviderRef != "sess_abc" {
		t.Errorf("providerRef = %v, want sess_abc", o.ProviderRef)
	}
}

func TestHosted_ForeignOrder(t *testing.T) {
	store := newMockStore()
	svc, _ := newService(store, &mockChargeProvider{})

	out, _ := svc.CreateEmbedded(context.Background(), owner("user-1"), "alpha", 1)
	_, err := svc.Hosted(context.Background(), owner("user-2"), out.OrderID)
	if !errors.Is(err, orders.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound for foreign order", err)
	}
}

func TestHosted_ProviderFailureLeavesOrderRetryable(t *testing.T) {
	store := newMockStore()
	provider := &mockChargeProvider{}
	provider.hostedErr = &payment.ProviderError{Op: "checkout", Status: 503, Body: "upstream down"}
	svc, _ := newService(store, provider)

	out, _ := svc.CreateEmbedded(context.Background(), owner("user-1"), "alpha", 1)
	_, err := svc.Hosted(context.Background(), owner("user-1"), out.OrderID)

	var pe *payment.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	o := store.byID[out.OrderID]
	if o.Status != orders.StatusPending || o.ProviderRef != nil {
		t.Errorf("order mutated on provider failure: status=%s ref=%v", o.Status, o.ProviderRef)
	}
}

func TestReorder_CopiesSnapshots(t *testing.T) {
	store := newMockStore()
	svc, _ := newService(store, &mockChargeProvider{})

	out, _ := svc.CreateEmbedded(context.Background(), owner("user-1"), "alpha", 2)
	src := store.byID[out.OrderID]
	src.Status = orders.StatusRefunded // terminal orders can still be reordered

	newID, err := svc.Reorder(context.Background(), owner("user-1"), out.OrderID)
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if newID == out.OrderID {
		t.Error("reorder returned the source order id")
	}

	clone := store.byID[newID]
	if clone.Status != orders.StatusPending {
		t.Errorf("clone status = %s, want PENDING", clone.Status)
	}
	if clone.TotalCents != src.TotalCents {
		t.Errorf("clone total = %d, want %d", clone.TotalCents, src.TotalCents)
	}
	if len(clone.Items) != len(src.Items) {
		t.Fatalf("clone items = %d, want %d", len(clone.Items), len(src.Items))
	}
	for i, it := range clone.Items {
		want := src.Items[i]
		if it.ProductID != want.ProductID || it.Quantity != want.Quantity ||
			it.UnitCents != want.UnitCents || it.NameSnap != want.NameSnap {
			t.Errorf("line %d mismatch: got %+v, want %+v", i, it, want)
		}
	}
}

func TestReorder_ForeignOrder(t *testing.T) {
	store := newMockStore()
	svc, _ := newService(store, &mockChargeProvider{})

	out, _ := svc.CreateEmbedded(context.Background(), owner("user-1"), "alpha", 1)
	_, err := svc.Reorder(context.Background(), owner("user-2"), out.OrderID)
	if !errors.Is(err, orders.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateEmbedded_AnonymousOwner(t *testing.T) {
	store := newMockStore()
	svc, _ := newService(store, &mockChargeProvider{})

	ident := auth.Identity{OwnerID: auth.AnonymousOwner, Anonymous: true}
	out, err := svc.CreateEmbedded(context.Background(), ident, "alpha", 1)
	if err != nil {
		t.Fatalf("CreateEmbedded: %v", err)
	}
	if store.byID[out.OrderID].OwnerID != auth.AnonymousOwner {
		t.Errorf("owner = %s, want anonymous placeholder", store.byID[out.OrderID].OwnerID)
	}
}
