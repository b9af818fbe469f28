package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Resolver loads the lines a caller is checking out.
type Resolver struct {
	accounts domcart.Repository
	guests   domcart.Repository
	sessions domcart.SessionStore
	tracer   observability.Tracer
	now      func() time.Time
}

func NewResolver(accounts, guests domcart.Repository, sessions domcart.SessionStore, tel observability.Observability) *Resolver {
	return &Resolver{
		accounts: accounts,
		guests:   guests,
		sessions: sessions,
		tracer:   observability.OrNop(tel).Tracer(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Resolve returns the caller's normalized cart lines. A missing cart is an empty list.
// Guests may pass explicit lines, which replace the session cart; account checkout
// always reads the saved cart.
func (r *Resolver) Resolve(ctx context.Context, caller domcart.Caller, explicit []domcart.Line) (_ []domcart.Line, err error) {
	ctx, span := r.tracer.Start(ctx, "Cart.Resolve", attribute.String("checkout.mode", domcart.Mode(caller)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "CART_RESOLVE_FAILED")
		}
		span.End()
	}()

	switch c := caller.(type) {
	case domcart.Authenticated:
		if c.AccountID == "" {
			return nil, checkout.Invalid("account_id", "required")
		}
		if len(explicit) > 0 {
			return nil, checkout.Invalid("items", "account checkout uses the saved cart")
		}
		return r.load(ctx, r.accounts, c.Owner())

	case domcart.Guest:
		if err := r.checkSession(ctx, c.SessionID); err != nil {
			return nil, err
		}
		if len(explicit) > 0 {
			return domcart.Normalize(explicit)
		}
		return r.load(ctx, r.guests, c.Owner())

	default:
		return nil, checkout.Invalid("caller", "unsupported caller")
	}
}

// Clear drops the cart an order superseded.
func (r *Resolver) Clear(ctx context.Context, owner domcart.OwnerRef) error {
	repo := r.accounts
	if owner.Kind == domcart.OwnerSession {
		repo = r.guests
	}
	if repo == nil {
		return nil
	}
	if err := repo.Delete(ctx, owner); err != nil && !errors.Is(err, domcart.ErrNotFound) {
		return fmt.Errorf("cart: clear %s: %w", owner.Key(), err)
	}
	return nil
}

func (r *Resolver) checkSession(ctx context.Context, id string) error {
	if err := domcart.ValidateSessionID(id); err != nil {
		return err
	}
	if r.sessions == nil {
		return nil
	}
	s, err := r.sessions.Lookup(ctx, id)
	if err != nil {
		if errors.Is(err, domcart.ErrSessionExpired) {
			return err
		}
		return fmt.Errorf("cart: lookup session: %w", err)
	}
	if s.Expired(r.now()) {
		return domcart.ErrSessionExpired
	}
	return nil
}

func (r *Resolver) load(ctx context.Context, repo domcart.Repository, owner domcart.OwnerRef) ([]domcart.Line, error) {
	if repo == nil {
		return []domcart.Line{}, nil
	}
	c, err := repo.Get(ctx, owner)
	if errors.Is(err, domcart.ErrNotFound) {
		return []domcart.Line{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cart: load %s: %w", owner.Key(), err)
	}
	return domcart.Normalize(c.Lines)
}
