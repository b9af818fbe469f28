package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionID = "guest_0123456789abcdef0123456789abcdef"

type brokenRepo struct{ *memory.CartRepository }

func (brokenRepo) Get(context.Context, domcart.OwnerRef) (*domcart.Cart, error) {
	return nil, errors.New("db down")
}

func setup(t *testing.T) (*Resolver, *memory.CartRepository, *memory.CartRepository, *memory.SessionStore) {
	t.Helper()
	accounts := memory.NewCartRepository()
	guests := memory.NewCartRepository()
	sessions := memory.NewSessionStore()
	sessions.Put(domcart.Session{ID: sessionID, ExpiresAt: time.Now().Add(time.Hour)})
	return NewResolver(accounts, guests, sessions, nil), accounts, guests, sessions
}

func TestResolveAuthenticatedCart(t *testing.T) {
	r, accounts, _, _ := setup(t)
	caller := domcart.Authenticated{AccountID: "acc-1"}
	require.NoError(t, accounts.Save(context.Background(), &domcart.Cart{
		Owner: caller.Owner(),
		Lines: []domcart.Line{{ProductID: "A", Quantity: 2, UnitPriceSnapshot: 900}},
	}))

	lines, err := r.Resolve(context.Background(), caller, nil)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "A", lines[0].ProductID)
}

func TestResolveMissingCartIsEmpty(t *testing.T) {
	r, _, _, _ := setup(t)

	lines, err := r.Resolve(context.Background(), domcart.Authenticated{AccountID: "acc-2"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, lines)
	assert.Empty(t, lines)

	lines, err = r.Resolve(context.Background(), domcart.Guest{SessionID: sessionID}, nil)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestResolveAuthenticatedRejectsExplicitItems(t *testing.T) {
	r, _, _, _ := setup(t)
	_, err := r.Resolve(context.Background(), domcart.Authenticated{AccountID: "acc-1"},
		[]domcart.Line{{ProductID: "A", Quantity: 1}})
	assert.ErrorIs(t, err, checkout.ErrValidation)
}

func TestResolveGuestPrefersExplicitItems(t *testing.T) {
	r, _, guests, _ := setup(t)
	caller := domcart.Guest{SessionID: sessionID}
	require.NoError(t, guests.Save(context.Background(), &domcart.Cart{
		Owner: caller.Owner(),
		Lines: []domcart.Line{{ProductID: "stored", Quantity: 1}},
	}))

	lines, err := r.Resolve(context.Background(), caller, []domcart.Line{{ProductID: "X", Quantity: 1}, {ProductID: "X", Quantity: 2}})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)

	lines, err = r.Resolve(context.Background(), caller, nil)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "stored", lines[0].ProductID)
}

func TestResolveGuestSessionRules(t *testing.T) {
	r, _, _, sessions := setup(t)
	ctx := context.Background()

	_, err := r.Resolve(ctx, domcart.Guest{SessionID: "nope"}, nil)
	assert.ErrorIs(t, err, checkout.ErrValidation, "malformed")

	_, err = r.Resolve(ctx, domcart.Guest{SessionID: "guest_ffffffffffffffffffffffffffffffff"}, nil)
	assert.ErrorIs(t, err, domcart.ErrSessionExpired, "unknown")

	expired := "guest_eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
	sessions.Put(domcart.Session{ID: expired, ExpiresAt: time.Now().Add(-time.Second)})
	_, err = r.Resolve(ctx, domcart.Guest{SessionID: expired}, nil)
	assert.ErrorIs(t, err, domcart.ErrSessionExpired, "expired")
}

func TestResolveSurfacesStoreFailure(t *testing.T) {
	r := NewResolver(brokenRepo{memory.NewCartRepository()}, nil, nil, nil)
	_, err := r.Resolve(context.Background(), domcart.Authenticated{AccountID: "acc-1"}, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, checkout.ErrValidation)
}

func TestClear(t *testing.T) {
	r, accounts, guests, _ := setup(t)
	ctx := context.Background()
	acc := domcart.OwnerRef{Kind: domcart.OwnerAccount, ID: "acc-1"}
	ses := domcart.OwnerRef{Kind: domcart.OwnerSession, ID: sessionID}
	require.NoError(t, accounts.Save(ctx, &domcart.Cart{Owner: acc}))
	require.NoError(t, guests.Save(ctx, &domcart.Cart{Owner: ses}))

	require.NoError(t, r.Clear(ctx, acc))
	require.NoError(t, r.Clear(ctx, ses))

	_, err := accounts.Get(ctx, acc)
	assert.ErrorIs(t, err, domcart.ErrNotFound)
	_, err = guests.Get(ctx, ses)
	assert.ErrorIs(t, err, domcart.ErrNotFound)
}
