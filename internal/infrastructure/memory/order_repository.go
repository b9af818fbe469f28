package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

// OrderRepository keeps orders in process memory. Stock lives in the paired
// InventoryRepository and is decremented in the same Create call.
type OrderRepository struct {
	mu          sync.RWMutex
	orders      map[string]*domain.Order
	idempotency map[string]string // owner key + request key -> order id
	references  map[string]string // provider reference -> order id
	inventory   *InventoryRepository
}

func NewOrderRepository(inventory *InventoryRepository) *OrderRepository {
	if inventory == nil {
		inventory = NewInventoryRepository()
	}
	return &OrderRepository{
		orders:      make(map[string]*domain.Order),
		idempotency: make(map[string]string),
		references:  make(map[string]string),
		inventory:   inventory,
	}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrConflict
	}
	idemKey := requestKey(order)
	if idemKey != "" {
		if _, exists := r.idempotency[idemKey]; exists {
			return domain.ErrConflict
		}
	}

	if err := r.inventory.deductAll(order.Items); err != nil {
		return err
	}

	stored := cloneOrder(order)
	stored.Version = 1
	order.Version = 1
	r.orders[order.ID] = stored
	if idemKey != "" {
		r.idempotency[idemKey] = order.ID
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return cloneOrder(order), nil
}

func (r *OrderRepository) FindByRequestKey(ctx context.Context, ownerKey, key string) (*domain.Order, error) {
	_ = ctx
	if key == "" {
		return nil, domain.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	orderID, ok := r.idempotency[ownerKey+"|"+key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	order, found := r.orders[orderID]
	if !found {
		return nil, domain.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (r *OrderRepository) FindByProviderReference(ctx context.Context, ref string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	orderID, ok := r.references[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneOrder(r.orders[orderID]), nil
}

func (r *OrderRepository) AttachPaymentSession(ctx context.Context, id, ref, redirectURL string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	if owner, taken := r.references[ref]; taken && owner != id {
		return domain.ErrConflict
	}
	if err := order.AttachPaymentSession(ref, redirectURL); err != nil {
		return err
	}
	r.references[ref] = id
	return nil
}

func (r *OrderRepository) UpdateState(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.orders[order.ID]
	if !exists {
		return domain.ErrNotFound
	}
	if stored.Version != order.Version {
		return domain.ErrVersionConflict
	}

	stored.Status = order.Status
	stored.Payment.Status = order.Payment.Status
	stored.UpdatedAt = order.UpdatedAt
	stored.Version++
	order.Version = stored.Version
	return nil
}

func (r *OrderRepository) ListPendingPayments(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Order, 0)
	for _, o := range r.orders {
		if o.Payment.Status == domain.PaymentPending && o.CreatedAt.Before(createdBefore) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func requestKey(o *domain.Order) string {
	if o.RequestKey == "" {
		return ""
	}
	return o.Owner.Key() + "|" + o.RequestKey
}

func cloneOrder(order *domain.Order) *domain.Order {
	if order == nil {
		return nil
	}
	return order.Clone()
}
