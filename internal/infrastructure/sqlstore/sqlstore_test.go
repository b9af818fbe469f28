package sqlstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	dominventory "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domtax "github.com/Zhima-Mochi/minishop-checkout/internal/domain/tax"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func openSQLite(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), DriverSQLite, "file:"+filepath.Join(t.TempDir(), "checkout.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate(), "migrations are idempotent")
	return db
}

func seedProducts(t *testing.T, db *DB, products ...*dominventory.Product) *ProductStore {
	t.Helper()
	store := NewProductStore(db)
	for _, p := range products {
		require.NoError(t, store.Save(context.Background(), p))
	}
	return store
}

func guestOrder(t *testing.T, id, requestKey string, items ...domorder.Item) *domorder.Order {
	t.Helper()
	o, err := domorder.New(domorder.NewParams{
		ID: id,
		Owner: domorder.OwnerFromCaller(domcart.Guest{
			SessionID: "guest_0123456789abcdef0123456789abcdef",
			Contact:   domcart.Contact{Name: "Ada", Email: "ada@example.com"},
		}),
		Items:      items,
		TaxAmount:  80,
		Currency:   "USD",
		Address:    domorder.Address{Name: "Ada", Line1: "1 Main", City: "SF", PostalCode: "94105", RegionCode: "US-CA"},
		RequestKey: requestKey,
	})
	require.NoError(t, err)
	return o
}

func itemA(qty int) domorder.Item {
	return domorder.Item{
		ProductID: "A", Name: "Candle", Quantity: qty, UnitPrice: 1000,
		Variant:      domcart.Variant{Fragrance: "cedar"},
		Jurisdiction: "US-CA", TaxRate: decimal.RequireFromString("8"), TaxAmount: 80,
	}
}

func TestProductStoreRoundTrip(t *testing.T) {
	db := openSQLite(t)
	store := seedProducts(t, db, &dominventory.Product{ID: "A", Name: "Candle", Price: 1000, Currency: "USD", Stock: 3, Active: true, Category: "home"})

	p, err := store.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
	assert.EqualValues(t, 1000, p.Price)
	assert.True(t, p.Active)

	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, dominventory.ErrNotFound)
}

func TestOrderStoreCreateAndRead(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	products := seedProducts(t, db, &dominventory.Product{ID: "A", Name: "Candle", Price: 1000, Currency: "USD", Stock: 5, Active: true})
	store := NewOrderStore(db)

	o := guestOrder(t, "o-1", "key-1", itemA(1))
	require.NoError(t, store.Create(ctx, o))
	assert.Equal(t, 1, o.Version)

	p, err := products.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 4, p.Stock)

	got, err := store.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, o.TotalAmount, got.TotalAmount)
	assert.Equal(t, "cedar", got.Items[0].Variant.Fragrance)
	assert.True(t, got.Items[0].TaxRate.Equal(decimal.NewFromInt(8)))
	require.NotNil(t, got.Owner.Guest)
	assert.Equal(t, "ada@example.com", got.Owner.Guest.Email)
	assert.Equal(t, "US-CA", got.ShippingAddress.RegionCode)
	assert.Equal(t, "order:o-1", got.Payment.IdempotencyKey)
	require.NoError(t, got.CheckInvariants())

	byKey, err := store.FindByRequestKey(ctx, o.Owner.Key(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", byKey.ID)

	_, err = store.FindByRequestKey(ctx, "account:someone-else", "key-1")
	assert.ErrorIs(t, err, checkout.ErrNotFound)

	dup := guestOrder(t, "o-2", "key-1", itemA(1))
	assert.ErrorIs(t, store.Create(ctx, dup), domorder.ErrConflict)
	p, err = products.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 4, p.Stock, "failed insert rolls the decrement back")
}

func TestOrderStoreRejectsOversell(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	seedProducts(t, db,
		&dominventory.Product{ID: "A", Price: 1000, Currency: "USD", Stock: 5, Active: true},
		&dominventory.Product{ID: "B", Price: 500, Currency: "USD", Stock: 1, Active: false},
	)
	store := NewOrderStore(db)

	o := guestOrder(t, "o-1", "", itemA(2), domorder.Item{ProductID: "B", Quantity: 1, UnitPrice: 500})
	err := store.Create(ctx, o)
	var conflict *domorder.StockConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "B", conflict.ProductID)
	assert.ErrorIs(t, err, checkout.ErrInventoryConflict)

	p, err := NewProductStore(db).Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
}

func TestOrderStoreLastUnitRace(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	seedProducts(t, db, &dominventory.Product{ID: "A", Price: 1000, Currency: "USD", Stock: 1, Active: true})
	store := NewOrderStore(db)

	orders := make([]*domorder.Order, 6)
	for i := range orders {
		orders[i] = guestOrder(t, "o-"+string(rune('a'+i)), "", itemA(1))
	}

	var wg sync.WaitGroup
	results := make([]error, len(orders))
	for i := range orders {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = store.Create(ctx, orders[i])
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range results {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, checkout.ErrInventoryConflict)
	}
	assert.Equal(t, 1, won)
}

func TestOrderStatePaymentSessionAndCAS(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	seedProducts(t, db, &dominventory.Product{ID: "A", Price: 1000, Currency: "USD", Stock: 5, Active: true})
	store := NewOrderStore(db)
	require.NoError(t, store.Create(ctx, guestOrder(t, "o-1", "", itemA(1))))
	require.NoError(t, store.Create(ctx, guestOrder(t, "o-2", "", itemA(1))))

	require.NoError(t, store.AttachPaymentSession(ctx, "o-1", "ps_1", "https://pay.example/o-1"))
	require.NoError(t, store.AttachPaymentSession(ctx, "o-1", "ps_1", "https://pay.example/o-1"))
	assert.ErrorIs(t, store.AttachPaymentSession(ctx, "o-1", "ps_other", ""), domorder.ErrReferenceSet)
	assert.ErrorIs(t, store.AttachPaymentSession(ctx, "o-2", "ps_1", ""), domorder.ErrConflict)
	assert.ErrorIs(t, store.AttachPaymentSession(ctx, "missing", "ps_9", ""), checkout.ErrNotFound)

	found, err := store.FindByProviderReference(ctx, "ps_1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", found.ID)
	assert.Equal(t, "https://pay.example/o-1", found.Payment.RedirectURL)
	assert.Equal(t, 1, found.Version, "attaching a session does not bump the version")

	stale := found.Clone()
	require.NoError(t, found.TransitionTo(domorder.StatusProcessing))
	require.NoError(t, store.UpdateState(ctx, found))
	assert.Equal(t, 2, found.Version)

	require.NoError(t, stale.TransitionTo(domorder.StatusCancelled))
	assert.ErrorIs(t, store.UpdateState(ctx, stale), domorder.ErrVersionConflict)

	reread, err := store.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusProcessing, reread.Status)
}

func TestListPendingPayments(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	seedProducts(t, db, &dominventory.Product{ID: "A", Price: 1000, Currency: "USD", Stock: 10, Active: true})
	store := NewOrderStore(db)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, age := range []time.Duration{3 * time.Hour, 2 * time.Hour, time.Minute} {
		o := guestOrder(t, "o-"+string(rune('1'+i)), "", itemA(1))
		o.CreatedAt = base.Add(-age)
		require.NoError(t, store.Create(ctx, o))
	}
	settled, err := store.Get(ctx, "o-1")
	require.NoError(t, err)
	_, err = settled.ApplyPayment(domorder.PaymentSucceeded)
	require.NoError(t, err)
	require.NoError(t, store.UpdateState(ctx, settled))

	pending, err := store.ListPendingPayments(ctx, base.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "o-2", pending[0].ID)
}

func TestCartStore(t *testing.T) {
	ctx := context.Background()
	store := NewCartStore(openSQLite(t))
	owner := domcart.OwnerRef{Kind: domcart.OwnerAccount, ID: "acc-1"}

	_, err := store.Get(ctx, owner)
	assert.ErrorIs(t, err, domcart.ErrNotFound)

	require.NoError(t, store.Save(ctx, &domcart.Cart{Owner: owner, Lines: []domcart.Line{{ProductID: "A", Quantity: 2}}}))
	require.NoError(t, store.Save(ctx, &domcart.Cart{Owner: owner, Lines: []domcart.Line{{ProductID: "B", Quantity: 1, Variant: domcart.Variant{Color: "red"}}}}))

	c, err := store.Get(ctx, owner)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, "B", c.Lines[0].ProductID)
	assert.Equal(t, "red", c.Lines[0].Variant.Color)

	require.NoError(t, store.Delete(ctx, owner))
	_, err = store.Get(ctx, owner)
	assert.ErrorIs(t, err, domcart.ErrNotFound)
}

func TestTaxRateStore(t *testing.T) {
	ctx := context.Background()
	store := NewTaxRateStore(openSQLite(t))

	_, found, err := store.Lookup(ctx, "US-CA")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Put(ctx, domtax.JurisdictionRate{RegionCode: "US-CA", Rate: decimal.RequireFromString("7.25"), Enabled: true}))
	require.NoError(t, store.Put(ctx, domtax.JurisdictionRate{RegionCode: "US-CA", Rate: decimal.RequireFromString("8.25"), Enabled: false, Notes: "holiday"}))
	assert.ErrorIs(t, store.Put(ctx, domtax.JurisdictionRate{RegionCode: "US-CA", Rate: decimal.NewFromInt(101)}), domtax.ErrInvalidRate)

	row, found, err := store.Lookup(ctx, "US-CA")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, row.Rate.Equal(decimal.RequireFromString("8.25")))
	assert.False(t, row.Enabled)
	assert.True(t, row.Effective().IsZero())
}

// TestPostgresOrderStore runs the shared queries against a real PostgreSQL.
// Set STORE_PG_TESTS=1 with a reachable Docker daemon to enable it.
func TestPostgresOrderStore(t *testing.T) {
	if os.Getenv("STORE_PG_TESTS") != "1" {
		t.Skip("STORE_PG_TESTS not set")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("checkout"),
		postgres.WithUsername("checkout"),
		postgres.WithPassword("checkout"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, DriverPostgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	seedProducts(t, db, &dominventory.Product{ID: "A", Price: 1000, Currency: "USD", Stock: 1, Active: true})
	store := NewOrderStore(db)

	require.NoError(t, store.Create(ctx, guestOrder(t, "o-1", "key-1", itemA(1))))
	err = store.Create(ctx, guestOrder(t, "o-2", "", itemA(1)))
	assert.ErrorIs(t, err, checkout.ErrInventoryConflict)

	require.NoError(t, store.AttachPaymentSession(ctx, "o-1", "ps_1", ""))
	got, err := store.FindByProviderReference(ctx, "ps_1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", got.ID)
}
