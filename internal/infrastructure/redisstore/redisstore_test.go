package redisstore

import (
	"context"
	"testing"
	"time"

	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestSessionIssueAndLookup(t *testing.T) {
	client, mr := setupRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	session, err := store.Issue(ctx)
	require.NoError(t, err)
	require.NoError(t, domcart.ValidateSessionID(session.ID))

	got, err := store.Lookup(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.InDelta(t, domcart.SessionTTL.Seconds(), mr.TTL(sessionPrefix+session.ID).Seconds(), 5)

	_, err = store.Lookup(ctx, "guest_ffffffffffffffffffffffffffffffff")
	assert.ErrorIs(t, err, domcart.ErrSessionExpired)

	mr.FastForward(domcart.SessionTTL + time.Second)
	_, err = store.Lookup(ctx, session.ID)
	assert.ErrorIs(t, err, domcart.ErrSessionExpired)
}

func TestSessionPutRejectsExpired(t *testing.T) {
	client, _ := setupRedis(t)
	store := NewSessionStore(client)
	err := store.Put(context.Background(), domcart.Session{ID: "guest_x", ExpiresAt: time.Now().Add(-time.Minute)})
	assert.ErrorIs(t, err, domcart.ErrSessionExpired)
}

func TestGuestCartLifecycle(t *testing.T) {
	client, mr := setupRedis(t)
	store := NewCartStore(client)
	ctx := context.Background()
	owner := domcart.OwnerRef{Kind: domcart.OwnerSession, ID: "guest_0123456789abcdef0123456789abcdef"}

	_, err := store.Get(ctx, owner)
	assert.ErrorIs(t, err, domcart.ErrNotFound)

	require.NoError(t, store.Save(ctx, &domcart.Cart{
		Owner: owner,
		Lines: []domcart.Line{{ProductID: "A", Quantity: 2, Variant: domcart.Variant{Color: "blue"}}},
	}))
	assert.True(t, mr.Exists(cartPrefix+owner.ID))
	assert.Positive(t, mr.TTL(cartPrefix+owner.ID))

	c, err := store.Get(ctx, owner)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 2, c.Lines[0].Quantity)
	assert.Equal(t, "blue", c.Lines[0].Variant.Color)

	require.NoError(t, store.Delete(ctx, owner))
	_, err = store.Get(ctx, owner)
	assert.ErrorIs(t, err, domcart.ErrNotFound)
}

func TestLookupSurfacesBackendErrors(t *testing.T) {
	client, mr := setupRedis(t)
	mr.SetError("LOADING redis is loading")
	_, err := NewSessionStore(client).Lookup(context.Background(), "guest_0123456789abcdef0123456789abcdef")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domcart.ErrSessionExpired)
}
