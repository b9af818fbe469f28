package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	dominventory "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(t *testing.T, id string, items ...domain.Item) *domain.Order {
	t.Helper()
	o, err := domain.New(domain.NewParams{ID: id, Owner: domain.Owner{AccountID: "acc-1"}, Items: items, Currency: "USD"})
	require.NoError(t, err)
	return o
}

func TestCreateDecrementsStockAtomically(t *testing.T) {
	inv := NewInventoryRepository(
		&dominventory.Product{ID: "A", Stock: 5, Active: true},
		&dominventory.Product{ID: "B", Stock: 1, Active: true},
	)
	repo := NewOrderRepository(inv)
	ctx := context.Background()

	err := repo.Create(ctx, newOrder(t, "o-1",
		domain.Item{ProductID: "A", Quantity: 2, UnitPrice: 100},
		domain.Item{ProductID: "B", Quantity: 2, UnitPrice: 100},
	))
	var conflict *domain.StockConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "B", conflict.ProductID)
	assert.ErrorIs(t, err, checkout.ErrInventoryConflict)

	a, _ := inv.Get(ctx, "A")
	assert.Equal(t, 5, a.Stock, "no partial decrement")
	_, err = repo.Get(ctx, "o-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.Create(ctx, newOrder(t, "o-2", domain.Item{ProductID: "A", Quantity: 2, UnitPrice: 100})))
	a, _ = inv.Get(ctx, "A")
	assert.Equal(t, 3, a.Stock)
}

func TestCreateLastUnitRace(t *testing.T) {
	inv := NewInventoryRepository(&dominventory.Product{ID: "A", Stock: 1, Active: true})
	repo := NewOrderRepository(inv)

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = repo.Create(context.Background(),
				newOrder(t, string(rune('a'+i)), domain.Item{ProductID: "A", Quantity: 1, UnitPrice: 100}))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, checkout.ErrInventoryConflict)
	}
	assert.Equal(t, 1, wins)
}

func TestRequestKeyAndReferenceLookups(t *testing.T) {
	inv := NewInventoryRepository(&dominventory.Product{ID: "A", Stock: 10, Active: true})
	repo := NewOrderRepository(inv)
	ctx := context.Background()

	o := newOrder(t, "o-1", domain.Item{ProductID: "A", Quantity: 1, UnitPrice: 100})
	o.RequestKey = "k-1"
	require.NoError(t, repo.Create(ctx, o))

	dup := newOrder(t, "o-2", domain.Item{ProductID: "A", Quantity: 1, UnitPrice: 100})
	dup.RequestKey = "k-1"
	assert.ErrorIs(t, repo.Create(ctx, dup), domain.ErrConflict)

	found, err := repo.FindByRequestKey(ctx, o.Owner.Key(), "k-1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", found.ID)

	require.NoError(t, repo.AttachPaymentSession(ctx, "o-1", "ref-1", "https://pay/ref-1"))
	byRef, err := repo.FindByProviderReference(ctx, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", byRef.ID)
	assert.ErrorIs(t, repo.AttachPaymentSession(ctx, "o-1", "ref-2", ""), domain.ErrReferenceSet)
}

func TestUpdateStateCompareAndSwap(t *testing.T) {
	inv := NewInventoryRepository(&dominventory.Product{ID: "A", Stock: 10, Active: true})
	repo := NewOrderRepository(inv)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newOrder(t, "o-1", domain.Item{ProductID: "A", Quantity: 1, UnitPrice: 100})))

	first, _ := repo.Get(ctx, "o-1")
	second, _ := repo.Get(ctx, "o-1")

	_, err := first.ApplyPayment(domain.PaymentSucceeded)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateState(ctx, first))

	_, err = second.ApplyPayment(domain.PaymentFailed)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.UpdateState(ctx, second), domain.ErrVersionConflict)

	stored, _ := repo.Get(ctx, "o-1")
	assert.Equal(t, domain.PaymentSucceeded, stored.Payment.Status)
	assert.Equal(t, 2, stored.Version)
}

func TestListPendingPayments(t *testing.T) {
	inv := NewInventoryRepository(&dominventory.Product{ID: "A", Stock: 10, Active: true})
	repo := NewOrderRepository(inv)
	ctx := context.Background()

	old := newOrder(t, "old", domain.Item{ProductID: "A", Quantity: 1, UnitPrice: 100})
	old.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, newOrder(t, "new", domain.Item{ProductID: "A", Quantity: 1, UnitPrice: 100})))

	pending, err := repo.ListPendingPayments(ctx, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "old", pending[0].ID)
}
