// Package payment abstracts the external payment processor. Implementations
// are pure request/response adapters: they never read or write the order
// store, that is the caller's job.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
)

type LineItem struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitCents int    `json:"unit_cents"`
	Currency  string `json:"currency"`
	ProductID string `json:"product_id"`
}

type Customer struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type HostedCheckoutRequest struct {
	OrderID    string
	Lines      []LineItem
	Customer   Customer
	SuccessURL string
	CancelURL  string
}

type HostedCheckout struct {
	RedirectURL string
	ProviderRef string
}

type ChargeStatus string

const (
	ChargePending ChargeStatus = "PENDING"
	ChargePaid    ChargeStatus = "PAID"
)

type ChargeResult struct {
	ProviderRef string
	Status      ChargeStatus
}

// Provider is the minimum every processor supports.
type Provider interface {
	Name() string
	CreateHostedCheckout(ctx context.Context, req HostedCheckoutRequest) (*HostedCheckout, error)
}

// Tokenizer is implemented by providers that support embedded card fields.
// Tokenization normally happens client-side via the provider's JS; this is
// the server-side fallback.
type Tokenizer interface {
	TokenizeCard(ctx context.Context, cardPayload json.RawMessage) (string, error)
}

// TokenCharger is implemented by providers that can synchronously charge a
// previously obtained token. ChargePending means the definitive outcome
// arrives later through a webhook.
type TokenCharger interface {
	ChargeWithToken(ctx context.Context, orderID, token string, amountCents int, currency string) (*ChargeResult, error)
}

// ProviderError wraps any upstream failure. The order it concerns is left
// untouched and the operation is retryable.
type ProviderError struct {
	Op     string // "checkout", "tokenize", "charge"
	Status int    // upstream HTTP status, 0 on transport errors
	Body   string
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("provider %s: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *ProviderError) Unwrap() error { return e.Err }
