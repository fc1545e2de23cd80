package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config is injected at construction; the client never reads the environment.
type Config struct {
	BaseURL   string
	SecretKey string
	PublicKey string
	Timeout   time.Duration
}

// RESTProvider speaks the processor's JSON API:
// POST /v1/checkout/sessions, POST /v1/tokens, POST /v1/charges.
type RESTProvider struct {
	cfg Config
	hc  *http.Client
}

func NewRESTProvider(cfg Config) *RESTProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &RESTProvider{cfg: cfg, hc: &http.Client{Timeout: cfg.Timeout}}
}

func (p *RESTProvider) Name() string { return "custom" }

func (p *RESTProvider) CreateHostedCheckout(ctx context.Context, req HostedCheckoutRequest) (*HostedCheckout, error) {
	body := map[string]any{
		"order_id":    req.OrderID,
		"line_items":  req.Lines,
		"customer":    req.Customer,
		"success_url": req.SuccessURL,
		"cancel_url":  req.CancelURL,
	}
	var out struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := p.post(ctx, "checkout", "/v1/checkout/sessions", p.cfg.SecretKey, body, &out); err != nil {
		return nil, err
	}
	return &HostedCheckout{RedirectURL: out.URL, ProviderRef: out.ID}, nil
}

func (p *RESTProvider) TokenizeCard(ctx context.Context, cardPayload json.RawMessage) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := p.post(ctx, "tokenize", "/v1/tokens", p.cfg.PublicKey, map[string]any{"card": cardPayload}, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func (p *RESTProvider) ChargeWithToken(ctx context.Context, orderID, token string, amountCents int, currency string) (*ChargeResult, error) {
	body := map[string]any{
		"order_id": orderID,
		"token":    token,
		"amount":   amountCents,
		"currency": currency,
	}
	var out struct {
		ProviderRef string `json:"provider_ref"`
		Status      string `json:"status"`
	}
	if err := p.post(ctx, "charge", "/v1/charges", p.cfg.SecretKey, body, &out); err != nil {
		return nil, err
	}
	res := &ChargeResult{ProviderRef: out.ProviderRef, Status: ChargeStatus(out.Status)}
	if res.Status != ChargePaid && res.Status != ChargePending {
		return nil, &ProviderError{Op: "charge", Err: fmt.Errorf("unexpected charge status %q", out.Status)}
	}
	return res, nil
}

func (p *RESTProvider) post(ctx context.Context, op, path, key string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return &ProviderError{Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return &ProviderError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := p.hc.Do(req)
	if err != nil {
		return &ProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ProviderError{Op: op, Status: resp.StatusCode, Body: string(msg)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
