// Package money holds currency amounts as integer minor units.
package money

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Minor is an amount in the smallest denomination of a currency (cents for USD).
type Minor int64

// MinorDigits is the number of decimal places between the major and minor unit.
// Every supported currency uses two.
const MinorDigits = 2

// Times multiplies a unit price by a quantity.
func (m Minor) Times(qty int) Minor { return m * Minor(qty) }

// Decimal returns the amount in major units, e.g. 2500 -> 25.00.
func (m Minor) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -MinorDigits)
}

func (m Minor) String() string {
	return m.Decimal().StringFixed(MinorDigits)
}

// FromDecimal converts a major-unit amount to minor units, rounding half-up.
func FromDecimal(d decimal.Decimal) Minor {
	return RoundHalfUp(d.Shift(MinorDigits))
}

// RoundHalfUp rounds an amount already expressed in minor units to an integer.
// Amounts in this package are never negative so half-away-from-zero equals half-up.
func RoundHalfUp(minorUnits decimal.Decimal) Minor {
	return Minor(minorUnits.Round(0).IntPart())
}

// PercentOf returns rate% of amount, rounded half-up to the minor unit.
func PercentOf(amount Minor, rate decimal.Decimal) Minor {
	return RoundHalfUp(decimal.NewFromInt(int64(amount)).Mul(rate).Div(decimal.NewFromInt(100)))
}

// Distribute shares total across weights proportionally, each share rounded half-up
// on its own. When independent rounding leaves the shares more than one minor unit
// away from total, the shares whose rounding moved them furthest are pulled back one
// unit each until the gap is at most one. A zero weight sum yields all zeros.
func Distribute(total Minor, weights []Minor) []Minor {
	shares := make([]Minor, len(weights))
	var whole Minor
	for _, w := range weights {
		whole += w
	}
	if whole == 0 {
		return shares
	}

	bias := make([]decimal.Decimal, len(weights)) // rounded minus exact
	var sum Minor
	for i, w := range weights {
		exact := decimal.NewFromInt(int64(total)).Mul(decimal.NewFromInt(int64(w))).Div(decimal.NewFromInt(int64(whole)))
		shares[i] = RoundHalfUp(exact)
		bias[i] = decimal.NewFromInt(int64(shares[i])).Sub(exact)
		sum += shares[i]
	}

	gap := total - sum
	if gap >= -1 && gap <= 1 {
		return shares
	}
	idx := make([]int, len(shares))
	for i := range idx {
		idx[i] = i
	}
	step := Minor(1)
	if gap < 0 {
		step = -1
		// Over-allocated: trim the shares rounded up the most.
		sort.SliceStable(idx, func(a, b int) bool { return bias[idx[a]].GreaterThan(bias[idx[b]]) })
	} else {
		// Under-allocated: top up the shares rounded down the most.
		sort.SliceStable(idx, func(a, b int) bool { return bias[idx[a]].LessThan(bias[idx[b]]) })
	}
	for _, i := range idx {
		if gap >= -1 && gap <= 1 {
			break
		}
		shares[i] += step
		gap -= step
	}
	return shares
}

// NormalizeCurrency upper-cases and validates an ISO 4217 code.
func NormalizeCurrency(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if !currencyPattern.MatchString(c) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return c, nil
}
