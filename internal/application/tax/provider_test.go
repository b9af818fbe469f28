package tax

import (
	"context"
	"errors"
	"testing"

	domtax "github.com/Zhima-Mochi/minishop-checkout/internal/domain/tax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainPrecedence(t *testing.T) {
	store := domtax.Table{
		"US-CA": rate("US-CA", "8", true),
		"US-OR": rate("US-OR", "3", false),
	}
	fallback := domtax.Table{
		"US-CA": rate("US-CA", "1", true),
		"US-OR": rate("US-OR", "1", true),
		"US-NY": rate("US-NY", "4", true),
	}
	chain := NewChainProvider(store, fallback, ChainConfig{}, nil)
	ctx := context.Background()

	r, found, err := chain.Lookup(ctx, "US-CA")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "8", r.Rate.String(), "store rate wins")

	r, found, err = chain.Lookup(ctx, "US-OR")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, r.Effective().IsZero(), "disabled store row is authoritative")

	r, found, err = chain.Lookup(ctx, "US-NY")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "4", r.Rate.String(), "fallback used for regions missing from the store")

	r, found, err = chain.Lookup(ctx, "DE")
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, r.Effective().IsZero())
}

func TestChainStoreErrorFailsClosed(t *testing.T) {
	chain := NewChainProvider(failingProvider{err: errors.New("timeout")},
		domtax.Table{"US-CA": rate("US-CA", "7", true)}, ChainConfig{}, nil)

	_, _, err := chain.Lookup(context.Background(), "US-CA")
	assert.ErrorIs(t, err, domtax.ErrUnavailable)

	_, err = NewCalculator(chain, nil).Compute(context.Background(), []Line{{Price: 100, Quantity: 1, Jurisdiction: "US-CA"}})
	assert.ErrorIs(t, err, domtax.ErrUnavailable)
}

func TestChainStoreErrorWithDocumentedFallback(t *testing.T) {
	chain := NewChainProvider(failingProvider{err: errors.New("timeout")},
		domtax.Table{"US-CA": rate("US-CA", "7", true)}, ChainConfig{FallbackOnStoreError: true}, nil)

	r, found, err := chain.Lookup(context.Background(), "US-CA")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "7", r.Rate.String())
}

func TestChainWithoutStore(t *testing.T) {
	chain := NewChainProvider(nil, nil, ChainConfig{}, nil)
	_, found, err := chain.Lookup(context.Background(), "US-CA")
	require.NoError(t, err)
	assert.False(t, found)
}
