package tax

import (
	"context"
	"fmt"

	domtax "github.com/Zhima-Mochi/minishop-checkout/internal/domain/tax"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"github.com/shopspring/decimal"
)

// ChainProvider resolves rates with a fixed precedence: the configured store, then the
// static fallback table, then 0%. A region present in the store is authoritative even
// when disabled.
type ChainProvider struct {
	store    domtax.RateProvider
	fallback domtax.Table
	// fallbackOnError consults the static table when the store itself fails.
	fallbackOnError bool

	log          observability.Logger
	fallbackHits observability.Counter
}

type ChainConfig struct {
	FallbackOnStoreError bool
}

func NewChainProvider(store domtax.RateProvider, fallback domtax.Table, cfg ChainConfig, tel observability.Observability) *ChainProvider {
	tel = observability.OrNop(tel)
	if fallback == nil {
		fallback = domtax.Table{}
	}
	return &ChainProvider{
		store:           store,
		fallback:        fallback,
		fallbackOnError: cfg.FallbackOnStoreError,
		log:             tel.Logger().With(observability.F("component", "tax_rate_chain")),
		fallbackHits:    tel.Metrics().Counter(observability.MTaxFallbackLookups),
	}
}

func (p *ChainProvider) Lookup(ctx context.Context, regionCode string) (domtax.JurisdictionRate, bool, error) {
	if p.store != nil {
		rate, found, err := p.store.Lookup(ctx, regionCode)
		switch {
		case err != nil && !p.fallbackOnError:
			return domtax.JurisdictionRate{}, false, fmt.Errorf("%w: region %s: %w", domtax.ErrUnavailable, regionCode, err)
		case err != nil:
			logctx.FromOr(ctx, p.log).Warn("tax_fallback_table_used",
				observability.F("region_code", regionCode),
				observability.Err(err),
			)
			p.fallbackHits.Add(1, observability.L("cause", "store_error"))
		case found:
			return rate, true, nil
		}
	}

	if rate, ok := p.fallback[regionCode]; ok {
		p.fallbackHits.Add(1, observability.L("cause", "region_missing"))
		return rate, true, nil
	}
	return domtax.JurisdictionRate{RegionCode: regionCode, Rate: decimal.Zero}, false, nil
}
