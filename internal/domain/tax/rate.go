package tax

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRegion = errors.New("tax: malformed region code")
	ErrInvalidRate   = errors.New("tax: rate must be between 0 and 100")
	// ErrUnavailable means the rate table could not be read. Never treat it as 0%.
	ErrUnavailable = fmt.Errorf("%w: rate table lookup failed", checkout.ErrTaxUnavailable)
)

var regionPattern = regexp.MustCompile(`^[A-Z]{2}(-[A-Z0-9]{1,3})?$`)

var hundred = decimal.NewFromInt(100)

// JurisdictionRate is one row of the rate table. Rate is a percentage.
type JurisdictionRate struct {
	RegionCode string
	Rate       decimal.Decimal
	Enabled    bool
	Notes      string
}

// Effective is the percentage actually charged: disabled rows charge nothing.
func (r JurisdictionRate) Effective() decimal.Decimal {
	if !r.Enabled {
		return decimal.Zero
	}
	return r.Rate
}

func (r JurisdictionRate) Validate() error {
	if err := ValidateRegion(r.RegionCode); err != nil {
		return err
	}
	if r.Rate.IsNegative() || r.Rate.GreaterThan(hundred) {
		return fmt.Errorf("%w: %s", ErrInvalidRate, r.Rate)
	}
	return nil
}

// NormalizeRegion upper-cases a region code and validates its shape.
func NormalizeRegion(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if err := ValidateRegion(c); err != nil {
		return "", err
	}
	return c, nil
}

func ValidateRegion(code string) error {
	if !regionPattern.MatchString(code) {
		return fmt.Errorf("%w: %q", ErrInvalidRegion, code)
	}
	return nil
}

// RateProvider resolves the rate row for a region. found=false means the region is
// not configured; err is reserved for lookup failures.
type RateProvider interface {
	Lookup(ctx context.Context, regionCode string) (rate JurisdictionRate, found bool, err error)
}

// Table is a static, immutable rate table keyed by region code.
type Table map[string]JurisdictionRate

func (t Table) Lookup(_ context.Context, regionCode string) (JurisdictionRate, bool, error) {
	r, ok := t[regionCode]
	return r, ok, nil
}

// ParseTable reads "US-CA=7.25,US-NY=8" style definitions. Every parsed row is enabled.
func ParseTable(raw string) (Table, error) {
	table := Table{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return table, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		region, pct, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("tax: parse %q: expected REGION=RATE", pair)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(pct))
		if err != nil {
			return nil, fmt.Errorf("tax: parse %q: %w", pair, err)
		}
		row := JurisdictionRate{
			RegionCode: strings.ToUpper(strings.TrimSpace(region)),
			Rate:       rate,
			Enabled:    true,
			Notes:      "static fallback",
		}
		if err := row.Validate(); err != nil {
			return nil, err
		}
		table[row.RegionCode] = row
	}
	return table, nil
}
