package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

type InventoryRepository struct {
	mu    sync.RWMutex
	items map[string]*domain.Product
}

func NewInventoryRepository(seed ...*domain.Product) *InventoryRepository {
	r := &InventoryRepository{
		items: make(map[string]*domain.Product),
	}
	for _, p := range seed {
		r.items[p.ID] = cloneProduct(p)
	}
	return r
}

func (r *InventoryRepository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (r *InventoryRepository) Save(ctx context.Context, p *domain.Product) error {
	_ = ctx
	if p == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[p.ID] = cloneProduct(p)
	return nil
}

// deductAll applies every decrement or none of them.
func (r *InventoryRepository) deductAll(items []domorder.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	need := make(map[string]int, len(items))
	for _, it := range items {
		need[it.ProductID] += it.Quantity
	}
	for _, it := range items {
		p, ok := r.items[it.ProductID]
		if !ok || !p.Active || p.Stock < need[it.ProductID] {
			return &domorder.StockConflictError{ProductID: it.ProductID, Requested: it.Quantity}
		}
	}
	for id, qty := range need {
		if err := r.items[id].Deduct(qty); err != nil {
			return err
		}
	}
	return nil
}

func cloneProduct(p *domain.Product) *domain.Product {
	return p.Clone()
}
