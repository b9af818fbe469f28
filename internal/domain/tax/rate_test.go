package tax

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTable(t *testing.T) {
	table, err := ParseTable(" us-ca=7.25 , US-NY=8")
	require.NoError(t, err)
	require.Len(t, table, 2)

	r, found, err := table.Lookup(context.Background(), "US-CA")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, r.Effective().Equal(decimal.RequireFromString("7.25")))

	_, found, _ = table.Lookup(context.Background(), "DE")
	assert.False(t, found)

	empty, err := ParseTable("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestParseTableRejectsBadRows(t *testing.T) {
	for _, raw := range []string{"US-CA", "US-CA=abc", "US-CA=101", "usa=5"} {
		_, err := ParseTable(raw)
		assert.Error(t, err, raw)
	}
}

func TestDisabledRowChargesNothing(t *testing.T) {
	r := JurisdictionRate{RegionCode: "US-OR", Rate: decimal.NewFromInt(5), Enabled: false}
	assert.True(t, r.Effective().IsZero())
}

func TestRegionValidation(t *testing.T) {
	code, err := NormalizeRegion(" us-ca ")
	require.NoError(t, err)
	assert.Equal(t, "US-CA", code)

	for _, ok := range []string{"US", "DE-BY", "GB-LND", "US-CA"} {
		assert.NoError(t, ValidateRegion(ok), ok)
	}
	for _, bad := range []string{"", "U", "USA", "US_CA", "US-TOOLONG"} {
		assert.ErrorIs(t, ValidateRegion(bad), ErrInvalidRegion, bad)
	}
	assert.ErrorIs(t, ErrUnavailable, checkout.ErrTaxUnavailable)
}
