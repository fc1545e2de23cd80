package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront-payments/internal/auth"
	"github.com/ariefcatur/go-storefront-payments/internal/checkout"
)

type CheckoutHandler struct {
	Service *checkout.Service
	Auth    *auth.Resolver
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/checkout/hosted", h.hosted)
	r.Post("/checkout/embedded", h.createEmbedded)
	r.Post("/checkout/embedded/confirm", h.confirmEmbedded)
	r.Post("/reorder", h.reorder)
}

type hostedReq struct {
	OrderID string `json:"orderId"`
}

func (h *CheckoutHandler) hosted(w http.ResponseWriter, r *http.Request) {
	ident, err := h.Auth.Require(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req hostedReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json", Code: "VALIDATION"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	url, err := h.Service.Hosted(ctx, ident, req.OrderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

type embeddedReq struct {
	ProductSlug string `json:"productSlug"`
	Quantity    int    `json:"quantity"`
}

func (h *CheckoutHandler) createEmbedded(w http.ResponseWriter, r *http.Request) {
	// anonymous buyers are allowed here; a bad token still fails
	ident, err := h.Auth.Optional(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req embeddedReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json", Code: "VALIDATION"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Service.CreateEmbedded(ctx, ident, req.ProductSlug, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type confirmReq struct {
	OrderID string `json:"orderId"`
	Token   string `json:"token"`
}

func (h *CheckoutHandler) confirmEmbedded(w http.ResponseWriter, r *http.Request) {
	var req confirmReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json", Code: "VALIDATION"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status, err := h.Service.ConfirmEmbedded(ctx, req.OrderID, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

type reorderReq struct {
	OrderID string `json:"orderId"`
}

func (h *CheckoutHandler) reorder(w http.ResponseWriter, r *http.Request) {
	ident, err := h.Auth.Require(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req reorderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json", Code: "VALIDATION"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := h.Service.Reorder(ctx, ident, req.OrderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"orderId": id})
}
