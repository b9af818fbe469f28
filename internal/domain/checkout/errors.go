// Package checkout defines the error taxonomy shared by every stage of order creation.
// Callers match kinds with errors.Is against the sentinel values below.
package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInventoryConflict = errors.New("inventory conflict")
	ErrTaxUnavailable    = errors.New("tax unavailable")
	ErrGateway           = errors.New("payment gateway error")
	ErrStateViolation    = errors.New("state violation")
	ErrNotFound          = errors.New("not found")
)

// ErrNoValidItems is returned when every cart line was rejected.
var ErrNoValidItems = fmt.Errorf("%w: no valid items", ErrInventoryConflict)

// ValidationError reports bad caller input detected before any side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type RejectReason string

const (
	ReasonNotFound          RejectReason = "not found"
	ReasonInactive          RejectReason = "inactive"
	ReasonInsufficientStock RejectReason = "insufficient stock"
)

// Rejection names a cart line that could not become an order item.
type Rejection struct {
	ProductID string       `json:"product_id"`
	Reason    RejectReason `json:"reason"`
}

// InventoryConflictError is the eager guest failure naming the offending product.
type InventoryConflictError struct {
	ProductID string
	Reason    RejectReason
}

func (e *InventoryConflictError) Error() string {
	return fmt.Sprintf("inventory conflict: product %s: %s", e.ProductID, e.Reason)
}

func (e *InventoryConflictError) Is(target error) bool { return target == ErrInventoryConflict }

// RejectedItemsError carries the per-line reasons when no cart line survived validation.
type RejectedItemsError struct {
	Rejected []Rejection
}

func (e *RejectedItemsError) Error() string {
	return fmt.Sprintf("%v (%d lines rejected)", ErrNoValidItems, len(e.Rejected))
}

func (e *RejectedItemsError) Unwrap() error { return ErrNoValidItems }

// GatewayError wraps a payment provider failure. The order it names stays pending.
type GatewayError struct {
	OrderID string
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway: order %s left pending: %v", e.OrderID, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool { return target == ErrGateway }

// Retryable reports whether the caller may retry the operation unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrGateway) || errors.Is(err, ErrTaxUnavailable)
}
