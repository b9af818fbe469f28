package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/money"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

var (
	ErrUnknownResult = errors.New("payment: unknown callback result")
	ErrRejected      = errors.New("payment: session rejected by provider")
)

type SessionRequest struct {
	AmountMinor    money.Minor
	Currency       string
	OrderID        string
	IdempotencyKey string
}

type Session struct {
	ProviderReference string
	RedirectURL       string
}

// Gateway creates hosted payment sessions. Repeating a request with the same
// IdempotencyKey must return the original session rather than a new charge.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}

// ParseResult maps the provider's callback status vocabulary to a payment status.
func ParseResult(result string) (order.PaymentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "succeeded", "success", "paid", "approved", "a":
		return order.PaymentSucceeded, nil
	case "failed", "failure", "declined", "cancelled", "canceled", "d", "c":
		return order.PaymentFailed, nil
	case "refunded", "refund":
		return order.PaymentRefunded, nil
	default:
		return "", ErrUnknownResult
	}
}
