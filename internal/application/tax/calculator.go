package tax

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/money"
	domtax "github.com/Zhima-Mochi/minishop-checkout/internal/domain/tax"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Line struct {
	Price        money.Minor
	Quantity     int
	Jurisdiction string
}

func (l Line) Subtotal() money.Minor { return l.Price.Times(l.Quantity) }

// LineTax is the tax attributed to one input line, in input order.
type LineTax struct {
	Jurisdiction string
	Rate         decimal.Decimal
	Subtotal     money.Minor
	Tax          money.Minor
}

type BreakdownEntry struct {
	Jurisdiction string
	Rate         decimal.Decimal
	Amount       money.Minor
}

type Result struct {
	Subtotal  money.Minor
	TaxAmount money.Minor
	Total     money.Minor
	Breakdown []BreakdownEntry
	Lines     []LineTax
	// PerLine is set when lines span several jurisdictions and were taxed one by one.
	PerLine bool
}

// Calculator computes order tax from a rate provider.
//
// With a single jurisdiction tax is taken once off the subtotal and then shared back
// onto lines by subtotal weight with money.Distribute, so line shares stay within one
// minor unit of the aggregate. The aggregate is what gets charged.
// With several jurisdictions every line is taxed and rounded individually and summed.
type Calculator struct {
	rates  domtax.RateProvider
	tracer observability.Tracer
}

func NewCalculator(rates domtax.RateProvider, tel observability.Observability) *Calculator {
	return &Calculator{
		rates:  rates,
		tracer: observability.OrNop(tel).Tracer(),
	}
}

func (c *Calculator) Compute(ctx context.Context, lines []Line) (_ Result, err error) {
	ctx, span := c.tracer.Start(ctx, "Tax.Compute", attribute.Int("tax.lines", len(lines)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "TAX_COMPUTE_FAILED")
		}
		span.End()
	}()

	res := Result{Lines: make([]LineTax, len(lines))}
	if len(lines) == 0 {
		return res, nil
	}

	rates := make(map[string]decimal.Decimal, 1)
	order := make([]string, 0, 1)
	for i, l := range lines {
		if l.Quantity <= 0 || l.Price < 0 {
			return Result{}, fmt.Errorf("tax: line %d: invalid price or quantity", i)
		}
		res.Subtotal += l.Subtotal()
		if _, seen := rates[l.Jurisdiction]; seen {
			continue
		}
		rate, err := c.rate(ctx, l.Jurisdiction)
		if err != nil {
			return Result{}, err
		}
		rates[l.Jurisdiction] = rate
		order = append(order, l.Jurisdiction)
	}

	if len(order) == 1 {
		j := order[0]
		rate := rates[j]
		res.TaxAmount = money.PercentOf(res.Subtotal, rate)
		weights := make([]money.Minor, len(lines))
		for i, l := range lines {
			weights[i] = l.Subtotal()
		}
		shares := money.Distribute(res.TaxAmount, weights)
		for i, l := range lines {
			res.Lines[i] = LineTax{
				Jurisdiction: j,
				Rate:         rate,
				Subtotal:     l.Subtotal(),
				Tax:          shares[i],
			}
		}
		res.Breakdown = []BreakdownEntry{{Jurisdiction: j, Rate: rate, Amount: res.TaxAmount}}
	} else {
		res.PerLine = true
		byJurisdiction := make(map[string]money.Minor, len(order))
		for i, l := range lines {
			rate := rates[l.Jurisdiction]
			t := money.PercentOf(l.Subtotal(), rate)
			res.Lines[i] = LineTax{Jurisdiction: l.Jurisdiction, Rate: rate, Subtotal: l.Subtotal(), Tax: t}
			res.TaxAmount += t
			byJurisdiction[l.Jurisdiction] += t
		}
		for _, j := range order {
			res.Breakdown = append(res.Breakdown, BreakdownEntry{Jurisdiction: j, Rate: rates[j], Amount: byJurisdiction[j]})
		}
	}
	res.Total = res.Subtotal + res.TaxAmount

	span.SetAttributes(
		attribute.Int64("tax.subtotal_minor", int64(res.Subtotal)),
		attribute.Int64("tax.amount_minor", int64(res.TaxAmount)),
		attribute.Bool("tax.per_line", res.PerLine),
	)
	return res, nil
}

// rate returns the effective percentage for a jurisdiction; unknown regions are 0%.
func (c *Calculator) rate(ctx context.Context, jurisdiction string) (decimal.Decimal, error) {
	if c.rates == nil {
		return decimal.Zero, nil
	}
	r, found, err := c.rates.Lookup(ctx, jurisdiction)
	if errors.Is(err, domtax.ErrUnavailable) {
		return decimal.Zero, err
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: region %s: %w", domtax.ErrUnavailable, jurisdiction, err)
	}
	if !found {
		return decimal.Zero, nil
	}
	return r.Effective(), nil
}
