package httppresentation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

// writeDomainError maps the checkout error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error(), Retryable: checkout.Retryable(err)}

	var (
		invalid  *checkout.ValidationError
		conflict *checkout.InventoryConflictError
		rejected *checkout.RejectedItemsError
		gateway  *checkout.GatewayError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &invalid):
		status, resp.Code, resp.Field = http.StatusBadRequest, "validation_error", invalid.Field
	case errors.Is(err, checkout.ErrValidation):
		status, resp.Code = http.StatusBadRequest, "validation_error"
	case errors.As(err, &conflict):
		status, resp.Code = http.StatusConflict, "inventory_conflict"
		resp.ProductID, resp.Reason = conflict.ProductID, string(conflict.Reason)
	case errors.As(err, &rejected):
		status, resp.Code, resp.Rejected = http.StatusConflict, "inventory_conflict", rejected.Rejected
	case errors.Is(err, checkout.ErrInventoryConflict):
		status, resp.Code = http.StatusConflict, "inventory_conflict"
	case errors.Is(err, checkout.ErrTaxUnavailable):
		status, resp.Code = http.StatusServiceUnavailable, "tax_unavailable"
	case errors.As(err, &gateway):
		status, resp.Code, resp.OrderID = http.StatusBadGateway, "gateway_error", gateway.OrderID
	case errors.Is(err, checkout.ErrStateViolation):
		status, resp.Code = http.StatusConflict, "state_violation"
	case errors.Is(err, checkout.ErrNotFound):
		status, resp.Code = http.StatusNotFound, "not_found"
	default:
		resp.Code = "internal"
		resp.Error = "internal error"
	}
	writeJSON(w, status, resp)
}
