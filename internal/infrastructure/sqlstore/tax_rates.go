package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domtax "github.com/Zhima-Mochi/minishop-checkout/internal/domain/tax"
	"github.com/shopspring/decimal"
)

// TaxRateStore is the administrable rate table consulted first by the tax chain.
type TaxRateStore struct {
	db *DB
}

func NewTaxRateStore(db *DB) *TaxRateStore { return &TaxRateStore{db: db} }

func (s *TaxRateStore) Lookup(ctx context.Context, regionCode string) (domtax.JurisdictionRate, bool, error) {
	const q = `SELECT region_code, rate, enabled, notes FROM tax_rates WHERE region_code = $1`

	var (
		row  domtax.JurisdictionRate
		rate string
	)
	err := s.db.sql.QueryRowContext(ctx, q, regionCode).Scan(&row.RegionCode, &rate, &row.Enabled, &row.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return domtax.JurisdictionRate{}, false, nil
	}
	if err != nil {
		return domtax.JurisdictionRate{}, false, fmt.Errorf("sqlstore: lookup tax rate %s: %w", regionCode, err)
	}
	if row.Rate, err = decimal.NewFromString(rate); err != nil {
		return domtax.JurisdictionRate{}, false, fmt.Errorf("sqlstore: lookup tax rate %s: bad stored rate %q: %w", regionCode, rate, err)
	}
	return row, true, nil
}

// Put validates and upserts a rate row.
func (s *TaxRateStore) Put(ctx context.Context, r domtax.JurisdictionRate) error {
	if err := r.Validate(); err != nil {
		return err
	}
	const q = `INSERT INTO tax_rates (region_code, rate, enabled, notes, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (region_code) DO UPDATE SET
			rate = excluded.rate,
			enabled = excluded.enabled,
			notes = excluded.notes,
			updated_at = excluded.updated_at`

	_, err := s.db.sql.ExecContext(ctx, q, r.RegionCode, r.Rate.String(), r.Enabled, r.Notes, unixNano(time.Now()))
	if err != nil {
		return fmt.Errorf("sqlstore: put tax rate %s: %w", r.RegionCode, err)
	}
	return nil
}
