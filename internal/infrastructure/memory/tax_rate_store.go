package memory

import (
	"context"
	"sync"

	domtax "github.com/Zhima-Mochi/minishop-checkout/internal/domain/tax"
)

// TaxRateStore is a mutable rate table; FailWith simulates an unreachable backing store.
type TaxRateStore struct {
	mu    sync.RWMutex
	rates map[string]domtax.JurisdictionRate
	err   error
}

func NewTaxRateStore(rows ...domtax.JurisdictionRate) *TaxRateStore {
	s := &TaxRateStore{rates: make(map[string]domtax.JurisdictionRate)}
	for _, r := range rows {
		s.rates[r.RegionCode] = r
	}
	return s
}

func (s *TaxRateStore) Put(r domtax.JurisdictionRate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[r.RegionCode] = r
}

func (s *TaxRateStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *TaxRateStore) Lookup(ctx context.Context, regionCode string) (domtax.JurisdictionRate, bool, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.err != nil {
		return domtax.JurisdictionRate{}, false, s.err
	}
	r, ok := s.rates[regionCode]
	return r, ok, nil
}
