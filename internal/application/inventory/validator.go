package inventory

import (
	"context"
	"errors"
	"fmt"

	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	dominventory "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const defaultLookupConcurrency = 8

type Result struct {
	// Valid items carry the live catalog price, never the cart snapshot.
	Valid    []domorder.Item
	Rejected []checkout.Rejection
}

// Validator re-checks cart lines against the product store.
type Validator struct {
	products    dominventory.Repository
	currency    string
	concurrency int

	tracer   observability.Tracer
	log      observability.Logger
	rejected observability.Counter // checkout_rejected_lines_total{mode,reason}
}

func NewValidator(products dominventory.Repository, currency string, tel observability.Observability) *Validator {
	tel = observability.OrNop(tel)
	return &Validator{
		products:    products,
		currency:    currency,
		concurrency: defaultLookupConcurrency,
		tracer:      tel.Tracer(),
		log:         tel.Logger().With(observability.F("component", "inventory_validator")),
		rejected:    tel.Metrics().Counter(observability.MCheckoutRejectedLines),
	}
}

// Validate prices every line from the catalog. Guests fail on the first invalid line
// with *checkout.InventoryConflictError; account checkout drops invalid lines and
// fails with checkout.ErrNoValidItems only when nothing is left.
func (v *Validator) Validate(ctx context.Context, caller domcart.Caller, lines []domcart.Line) (_ *Result, err error) {
	mode := domcart.Mode(caller)
	ctx, span := v.tracer.Start(ctx, "Inventory.Validate",
		attribute.String("checkout.mode", mode),
		attribute.Int("cart.lines", len(lines)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "INVENTORY_VALIDATION_FAILED")
		}
		span.End()
	}()

	products, err := v.fetch(ctx, lines)
	if err != nil {
		return nil, err
	}

	_, guest := caller.(domcart.Guest)
	res := &Result{Valid: make([]domorder.Item, 0, len(lines))}
	requested := make(map[string]int, len(lines))

	for i, line := range lines {
		p := products[i]
		reason := dominventory.Availability(p, requested[line.ProductID]+line.Quantity)
		if reason == "" && p.Currency != "" && p.Currency != v.currency {
			return nil, checkout.Invalid("items", fmt.Sprintf("product %s is priced in %s, checkout currency is %s", p.ID, p.Currency, v.currency))
		}
		if reason != "" {
			v.rejected.Add(1, observability.L("mode", mode), observability.L("reason", string(reason)))
			if guest {
				return nil, &checkout.InventoryConflictError{ProductID: line.ProductID, Reason: reason}
			}
			res.Rejected = append(res.Rejected, checkout.Rejection{ProductID: line.ProductID, Reason: reason})
			logctx.FromOr(ctx, v.log).Info("cart_line_dropped",
				observability.F("product_id", line.ProductID),
				observability.F("reason", string(reason)),
			)
			continue
		}
		requested[line.ProductID] += line.Quantity
		res.Valid = append(res.Valid, domorder.Item{
			ProductID:    p.ID,
			Name:         p.Name,
			Quantity:     line.Quantity,
			UnitPrice:    p.Price,
			Variant:      line.Variant,
			Jurisdiction: p.Jurisdiction,
		})
	}

	span.SetAttributes(
		attribute.Int("cart.valid_lines", len(res.Valid)),
		attribute.Int("cart.rejected_lines", len(res.Rejected)),
	)
	if len(res.Valid) == 0 {
		return res, checkout.ErrNoValidItems
	}
	return res, nil
}

// fetch loads products concurrently; result slots line up with lines and stay nil
// for products that do not exist.
func (v *Validator) fetch(ctx context.Context, lines []domcart.Line) ([]*dominventory.Product, error) {
	products := make([]*dominventory.Product, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for i, line := range lines {
		g.Go(func() error {
			p, err := v.products.Get(gctx, line.ProductID)
			if errors.Is(err, dominventory.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("inventory: load product %s: %w", line.ProductID, err)
			}
			products[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return products, nil
}
