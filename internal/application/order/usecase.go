package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	dominventory "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService       = "order-service"
	useCaseOrderCreate = "order.create"
	publishTimeout     = 300 * time.Millisecond
	maxRequestKeyLen   = 128
)

var (
	ErrConflict   = domain.ErrConflict
	ErrNotFound   = domain.ErrNotFound
	ErrRepository = errors.New("order: repository failure")
)

type CreateOrderDeps struct {
	Carts     CartResolver
	Inventory InventoryValidator
	Assembler *Assembler
	Repo      domain.Repository
	Gateway   dompayment.Gateway
	IDs       IDGenerator
	Publisher domoutbox.Publisher
}

type CreateOrderOptions struct {
	Currency       string
	GatewayTimeout time.Duration
}

// CreateOrderUseCase turns a caller's cart into a pending order with an open payment session.
type CreateOrderUseCase struct {
	carts     CartResolver
	inventory InventoryValidator
	assembler *Assembler
	repo      domain.Repository
	ids       IDGenerator
	publisher domoutbox.Publisher
	sessions  sessionOpener
	currency  string

	inst *application.Instruments
}

func NewCreateOrderUseCase(deps CreateOrderDeps, opts CreateOrderOptions, tel observability.Observability) *CreateOrderUseCase {
	return &CreateOrderUseCase{
		carts:     deps.Carts,
		inventory: deps.Inventory,
		assembler: deps.Assembler,
		repo:      deps.Repo,
		ids:       deps.IDs,
		publisher: deps.Publisher,
		sessions:  newSessionOpener(deps.Gateway, deps.Repo, opts.GatewayTimeout, tel),
		currency:  opts.Currency,
		inst:      application.NewInstruments(tel, orderService),
	}
}

type CreateOrderInput struct {
	Caller domcart.Caller
	// Items is honoured for guests only; account checkout reads the saved cart.
	Items      []domcart.Line
	Address    domain.Address
	RequestKey string
}

type CreateOrderResult struct {
	Order    *domain.Order
	Rejected []checkout.Rejection
	// Replayed is set when RequestKey matched an order placed earlier.
	Replayed bool
}

// Execute runs checkout: resolve the cart, validate stock, price and tax, persist with
// an atomic stock decrement, then open the payment session outside any transaction.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *CreateOrderResult, err error) {
	mode := domcart.Mode(cmd.Caller)
	ctx, run := uc.inst.Begin(ctx, useCaseOrderCreate, "CreateOrder",
		attribute.String("checkout.mode", mode),
	)
	defer func() { run.End(err) }()
	span := run.Span()

	if err := uc.validate(&cmd); err != nil {
		run.Fail("INVALID_INPUT")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		run.Fail("CONTEXT_CANCELED")
		return nil, err
	}
	owner := domain.OwnerFromCaller(cmd.Caller)

	if cmd.RequestKey != "" {
		existing, repoErr := uc.repo.FindByRequestKey(ctx, owner.Key(), cmd.RequestKey)
		switch {
		case repoErr == nil:
			run.Status("IDEMPOTENT_REPLAY")
			return uc.replay(ctx, existing, run)
		case errors.Is(repoErr, domain.ErrNotFound):
		default:
			run.Fail("IDEMPOTENCY_LOOKUP_FAILED")
			return nil, wrapRepositoryError(repoErr)
		}
	}

	lines, err := uc.carts.Resolve(ctx, cmd.Caller, cmd.Items)
	if err != nil {
		run.Fail("CART_RESOLVE_FAILED")
		return nil, err
	}
	if len(lines) == 0 {
		run.Fail("CART_EMPTY")
		return nil, checkout.Invalid("items", "cart is empty")
	}

	checked, err := uc.inventory.Validate(ctx, cmd.Caller, lines)
	if err != nil {
		run.Fail("INVENTORY_REJECTED")
		if errors.Is(err, checkout.ErrNoValidItems) && checked != nil {
			return nil, &checkout.RejectedItemsError{Rejected: checked.Rejected}
		}
		return nil, err
	}
	items := checked.Valid
	rejected := checked.Rejected

	orderID := uc.ids.NewID()
	run.With("order_id", orderID)
	span.SetAttributes(attribute.String("order.id", orderID))

	var entity *domain.Order
	for {
		entity, err = uc.assembler.Assemble(ctx, AssembleInput{
			ID:         orderID,
			Owner:      owner,
			Items:      items,
			Address:    cmd.Address,
			Currency:   uc.currency,
			RequestKey: cmd.RequestKey,
		})
		if err != nil {
			run.Fail("ASSEMBLE_FAILED")
			return nil, err
		}

		err = uc.repo.Create(ctx, entity)
		if err == nil {
			break
		}

		var stock *domain.StockConflictError
		switch {
		case errors.As(err, &stock):
			uc.publish(ctx, run, dominventory.NewInventoryReservationFailedEvent(orderID, stock.ProductID, stock.Requested, string(checkout.ReasonInsufficientStock)))
			if owner.IsGuest() {
				run.Fail("STOCK_CONFLICT")
				return nil, &checkout.InventoryConflictError{ProductID: stock.ProductID, Reason: checkout.ReasonInsufficientStock}
			}
			// The line lost a race after validation; account checkout drops it and retries.
			items = dropProduct(items, stock.ProductID)
			rejected = append(rejected, checkout.Rejection{ProductID: stock.ProductID, Reason: checkout.ReasonInsufficientStock})
			span.AddEvent("order.stock_conflict", trace.WithAttributes(attribute.String("product.id", stock.ProductID)))
			if len(items) == 0 {
				run.Fail("STOCK_CONFLICT")
				return nil, &checkout.RejectedItemsError{Rejected: rejected}
			}
		case errors.Is(err, domain.ErrConflict) && cmd.RequestKey != "":
			existing, lookupErr := uc.repo.FindByRequestKey(ctx, owner.Key(), cmd.RequestKey)
			if lookupErr == nil {
				run.Status("IDEMPOTENT_REPLAY")
				return uc.replay(ctx, existing, run)
			}
			run.Fail("REPO_INSERT_FAILED")
			return nil, wrapRepositoryError(err)
		default:
			run.Fail("REPO_INSERT_FAILED")
			return nil, wrapRepositoryError(err)
		}
	}

	uc.publish(ctx, run, domain.NewOrderCreatedEvent(entity))
	uc.publish(ctx, run, dominventory.NewInventoryReservedEvent(entity.ID, reservedLines(entity)))
	span.AddEvent("order.created", trace.WithAttributes(attribute.String("order.id", entity.ID)))
	if drift := entity.TaxRoundingDrift(); drift != 0 {
		run.With("tax_rounding_drift", int64(drift))
	}

	if err := uc.sessions.open(ctx, entity); err != nil {
		run.Fail("PAYMENT_SESSION_FAILED")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order.status", string(entity.Status)),
		attribute.Int("order.rejected_lines", len(rejected)),
	)
	return &CreateOrderResult{Order: entity, Rejected: rejected}, nil
}

// replay returns an order placed earlier under the same request key. If its payment
// session never opened, the session is requested again with the same idempotency key.
func (uc *CreateOrderUseCase) replay(ctx context.Context, existing *domain.Order, run *application.Execution) (*CreateOrderResult, error) {
	run.With("order_id", existing.ID)
	run.Span().AddEvent("order.idempotent_replay",
		trace.WithAttributes(attribute.String("order.id", existing.ID)),
	)
	if existing.Status == domain.StatusPending && existing.Payment.Status == domain.PaymentPending {
		if err := uc.sessions.open(ctx, existing); err != nil {
			run.Fail("PAYMENT_SESSION_FAILED")
			return nil, err
		}
	}
	return &CreateOrderResult{Order: existing, Replayed: true}, nil
}

func (uc *CreateOrderUseCase) validate(cmd *CreateOrderInput) error {
	switch c := cmd.Caller.(type) {
	case nil:
		return checkout.Invalid("caller", "required")
	case domcart.Authenticated:
		if strings.TrimSpace(c.AccountID) == "" {
			return checkout.Invalid("account_id", "required")
		}
	case domcart.Guest:
		if err := c.Contact.Validate(); err != nil {
			return err
		}
	}
	cmd.Address.RegionCode = strings.ToUpper(strings.TrimSpace(cmd.Address.RegionCode))
	if err := cmd.Address.Validate(); err != nil {
		return err
	}
	if len(cmd.RequestKey) > maxRequestKeyLen {
		return checkout.Invalid("idempotency_key", fmt.Sprintf("longer than %d characters", maxRequestKeyLen))
	}
	return nil
}

// publish is best-effort: the order is already committed when events go out.
func (uc *CreateOrderUseCase) publish(ctx context.Context, run *application.Execution, e domoutbox.Event) {
	if uc.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := uc.publisher.Publish(pubCtx, e); err != nil {
		run.Span().RecordError(err)
		run.Logger().Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.Err(err),
		)
	}
}

func dropProduct(items []domain.Item, productID string) []domain.Item {
	kept := items[:0:0]
	for _, it := range items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	return kept
}

func reservedLines(o *domain.Order) []dominventory.ReservedLine {
	lines := make([]dominventory.ReservedLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, dominventory.ReservedLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, domain.ErrConflict):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
