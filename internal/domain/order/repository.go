package order

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
)

// Repository is the durable order store.
//
// Create persists the order and decrements stock for every item in one atomic write;
// a lost stock race yields *StockConflictError and nothing is written.
// UpdateState is a compare-and-swap on Version and advances it on success.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	FindByRequestKey(ctx context.Context, ownerKey, requestKey string) (*Order, error)
	FindByProviderReference(ctx context.Context, ref string) (*Order, error)
	AttachPaymentSession(ctx context.Context, id, ref, redirectURL string) error
	UpdateState(ctx context.Context, o *Order) error
	ListPendingPayments(ctx context.Context, createdBefore time.Time, limit int) ([]*Order, error)
}

// StockConflictError reports the item whose conditional decrement matched no row.
type StockConflictError struct {
	ProductID string
	Requested int
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("order: stock for product %s fell below %d", e.ProductID, e.Requested)
}

func (e *StockConflictError) Is(target error) bool { return target == checkout.ErrInventoryConflict }
