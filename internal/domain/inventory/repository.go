package inventory

import (
	"context"
)

// Repository reads products. Stock is only written through the order store's
// conditional decrement.
type Repository interface {
	Get(ctx context.Context, productID string) (*Product, error)
}
