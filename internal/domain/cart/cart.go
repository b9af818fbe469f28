package cart

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/money"
)

var ErrNotFound = errors.New("cart: not found")

type OwnerKind string

const (
	OwnerAccount OwnerKind = "account"
	OwnerSession OwnerKind = "session"
)

// OwnerRef identifies the single live cart of an account or a guest session.
type OwnerRef struct {
	Kind OwnerKind
	ID   string
}

func (o OwnerRef) Key() string { return string(o.Kind) + ":" + o.ID }

// Variant carries the optional product selections made when the line was added.
type Variant struct {
	Color     string `json:"color,omitempty"`
	Fragrance string `json:"fragrance,omitempty"`
}

func (v Variant) IsZero() bool { return v == Variant{} }

// Line is a mutable cart entry. UnitPriceSnapshot is informational only; checkout
// always re-prices from the catalog.
type Line struct {
	ProductID         string      `json:"product_id"`
	Quantity          int         `json:"quantity"`
	Variant           Variant     `json:"variant,omitempty"`
	UnitPriceSnapshot money.Minor `json:"unit_price_snapshot,omitempty"`
}

type Cart struct {
	Owner     OwnerRef  `json:"owner"`
	Lines     []Line    `json:"lines"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Lines = append([]Line(nil), c.Lines...)
	return &clone
}

// Normalize validates lines and merges duplicates of the same product and variant,
// keeping the position of the first occurrence.
func Normalize(lines []Line) ([]Line, error) {
	out := make([]Line, 0, len(lines))
	index := make(map[string]int, len(lines))
	for i, l := range lines {
		l.ProductID = strings.TrimSpace(l.ProductID)
		if l.ProductID == "" {
			return nil, checkout.Invalid(fmt.Sprintf("items[%d].product_id", i), "required")
		}
		if l.Quantity <= 0 {
			return nil, checkout.Invalid(fmt.Sprintf("items[%d].quantity", i), "must be greater than zero")
		}
		key := l.ProductID + "|" + l.Variant.Color + "|" + l.Variant.Fragrance
		if at, ok := index[key]; ok {
			out[at].Quantity += l.Quantity
			continue
		}
		index[key] = len(out)
		out = append(out, l)
	}
	return out, nil
}
