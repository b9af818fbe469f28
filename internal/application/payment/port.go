package payment

import (
	"context"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/money"
)

// Receipt is what the customer is told after a successful charge.
type Receipt struct {
	OrderID           string
	ToName            string
	ToEmail           string
	Total             money.Minor
	Currency          string
	ProviderReference string
}

// Notifier is an outbound port for customer messaging.
type Notifier interface {
	SendReceipt(ctx context.Context, r Receipt) error
}
