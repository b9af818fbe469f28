package inventory

import (
	"errors"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/money"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// Product is the live catalog record read at checkout time.
type Product struct {
	ID       string
	Name     string
	Price    money.Minor
	Currency string
	Stock    int
	Active   bool
	Category string
	// Jurisdiction overrides the shipping region for tax purposes when set.
	Jurisdiction string
	UpdatedAt    time.Time
}

// Availability returns the reason qty units cannot be sold, or "" when they can.
// A nil product is reported as not found.
func Availability(p *Product, qty int) checkout.RejectReason {
	switch {
	case p == nil:
		return checkout.ReasonNotFound
	case !p.Active:
		return checkout.ReasonInactive
	case qty > p.Stock:
		return checkout.ReasonInsufficientStock
	default:
		return ""
	}
}

// Deduct removes quantity units from stock, refusing to go below zero.
func (p *Product) Deduct(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !p.Active || quantity > p.Stock {
		return ErrInsufficientStock
	}
	p.Stock -= quantity
	p.touch()
	return nil
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}
