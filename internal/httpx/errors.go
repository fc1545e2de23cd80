package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-storefront-payments/internal/auth"
	"github.com/ariefcatur/go-storefront-payments/internal/catalog"
	"github.com/ariefcatur/go-storefront-payments/internal/checkout"
	"github.com/ariefcatur/go-storefront-payments/internal/orders"
	"github.com/ariefcatur/go-storefront-payments/internal/payment"
	"github.com/ariefcatur/go-storefront-payments/internal/webhook"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps the error taxonomy onto stable HTTP codes.
func writeError(w http.ResponseWriter, err error) {
	var pe *payment.ProviderError
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error(), Code: "UNAUTHORIZED"})
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: "NOT_FOUND"})
	case errors.Is(err, orders.ErrStateConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "STATE_CONFLICT"})
	case errors.Is(err, checkout.ErrTokenChargeUnsupported):
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: err.Error(), Code: "UNSUPPORTED"})
	case errors.Is(err, webhook.ErrBadSignature):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "SIGNATURE"})
	case errors.Is(err, checkout.ErrInvalidInput), errors.Is(err, orders.ErrInvalidInput),
		errors.Is(err, webhook.ErrMalformedEvent):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "VALIDATION"})
	case errors.As(err, &pe):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error(), Code: "PROVIDER"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "INTERNAL"})
	}
}
