package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentOfRoundsHalfUp(t *testing.T) {
	cases := []struct {
		amount Minor
		rate   string
		want   Minor
	}{
		{2500, "8", 200},
		{1000, "7.25", 73}, // 72.5 -> 73
		{999, "8.875", 89}, // 88.66 -> 89
		{1, "50", 1},       // 0.5 -> 1
		{1, "49.9", 0},     // 0.499 -> 0
		{12345, "0", 0},
	}
	for _, tc := range cases {
		got := PercentOf(tc.amount, decimal.RequireFromString(tc.rate))
		assert.Equal(t, tc.want, got, "amount=%d rate=%s", tc.amount, tc.rate)
	}
}

func TestDistribute(t *testing.T) {
	assert.Equal(t, []Minor{160, 40}, Distribute(200, []Minor{2000, 500}))
	assert.Equal(t, []Minor{0, 0}, Distribute(5, []Minor{0, 0}))
	assert.Equal(t, []Minor{1, 1}, Distribute(1, []Minor{1, 1})) // 0.5 -> 1 each, one unit over

	// Four halves round to 4 against a total of 2; one is pulled back to stay within one unit.
	got := Distribute(2, []Minor{100, 100, 100, 100})
	var sum Minor
	for _, s := range got {
		sum += s
	}
	assert.Equal(t, Minor(3), sum)
	assert.Equal(t, []Minor{0, 1, 1, 1}, got)

	// Under-allocation tops up the most rounded-down shares.
	got = Distribute(7, []Minor{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1})
	sum = 0
	for _, s := range got {
		sum += s
	}
	assert.Equal(t, Minor(6), sum)
}

func TestMinorFormatting(t *testing.T) {
	assert.Equal(t, "27.00", Minor(2700).String())
	assert.Equal(t, "0.05", Minor(5).String())
	assert.Equal(t, Minor(1999), FromDecimal(decimal.RequireFromString("19.99")))
	assert.Equal(t, Minor(2000), FromDecimal(decimal.RequireFromString("19.995")))
}

func TestNormalizeCurrency(t *testing.T) {
	c, err := NormalizeCurrency(" usd ")
	require.NoError(t, err)
	assert.Equal(t, "USD", c)

	_, err = NormalizeCurrency("US")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}
