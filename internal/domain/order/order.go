package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/money"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/tax"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = fmt.Errorf("order: %w", checkout.ErrNotFound)
	ErrConflict        = errors.New("order: conflict")
	ErrVersionConflict = errors.New("order: concurrent modification")
	ErrNoItems         = errors.New("order: at least one item is required")
	ErrInvalidQuantity = errors.New("order: quantity must be greater than zero")
	ErrInvalidAmount   = errors.New("order: amount must be zero or greater")
	ErrInvariant       = errors.New("order: totals do not add up")
	ErrReferenceSet    = errors.New("order: payment reference already attached")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	default:
		return "", checkout.Invalid("status", fmt.Sprintf("unknown order status %q", s))
	}
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Owner is the account that placed the order, or the contact details a guest left.
type Owner struct {
	AccountID string
	SessionID string
	Guest     *cart.Contact
}

func OwnerFromCaller(c cart.Caller) Owner {
	switch v := c.(type) {
	case cart.Authenticated:
		return Owner{AccountID: v.AccountID}
	case cart.Guest:
		contact := v.Contact
		return Owner{SessionID: v.SessionID, Guest: &contact}
	default:
		return Owner{}
	}
}

func (o Owner) IsGuest() bool { return o.AccountID == "" }

// Key scopes client idempotency keys to one owner.
func (o Owner) Key() string {
	if o.IsGuest() {
		return cart.OwnerRef{Kind: cart.OwnerSession, ID: o.SessionID}.Key()
	}
	return cart.OwnerRef{Kind: cart.OwnerAccount, ID: o.AccountID}.Key()
}

type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	RegionCode string `json:"region_code"`
}

func (a Address) Validate() error {
	required := []struct{ field, value string }{
		{"shipping_address.name", a.Name},
		{"shipping_address.line1", a.Line1},
		{"shipping_address.city", a.City},
		{"shipping_address.postal_code", a.PostalCode},
		{"shipping_address.region_code", a.RegionCode},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return checkout.Invalid(r.field, "required")
		}
	}
	if err := tax.ValidateRegion(a.RegionCode); err != nil {
		return checkout.Invalid("shipping_address.region_code", "malformed region code")
	}
	return nil
}

// Item is a price-frozen order line.
type Item struct {
	ProductID    string
	Name         string
	Quantity     int
	UnitPrice    money.Minor
	Variant      cart.Variant
	Jurisdiction string
	TaxRate      decimal.Decimal
	TaxAmount    money.Minor
}

func (i Item) Subtotal() money.Minor { return i.UnitPrice.Times(i.Quantity) }

type Payment struct {
	ProviderReference string
	RedirectURL       string
	Status            PaymentStatus
	Amount            money.Minor
	Currency          string
	IdempotencyKey    string
}

type Order struct {
	ID              string
	Owner           Owner
	Items           []Item
	Subtotal        money.Minor
	TaxAmount       money.Minor
	TotalAmount     money.Minor
	Currency        string
	ShippingAddress Address
	Status          Status
	Payment         Payment
	// RequestKey is the client-supplied idempotency key, scoped by Owner.Key.
	RequestKey string
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type NewParams struct {
	ID         string
	Owner      Owner
	Items      []Item
	TaxAmount  money.Minor
	Currency   string
	Address    Address
	RequestKey string
	Now        time.Time
}

// New builds a pending order. The subtotal is derived from the frozen items and the
// payment idempotency key from the order id.
func New(p NewParams) (*Order, error) {
	if p.ID == "" {
		return nil, errors.New("order: id is required")
	}
	if len(p.Items) == 0 {
		return nil, ErrNoItems
	}
	if p.TaxAmount < 0 {
		return nil, ErrInvalidAmount
	}
	var subtotal money.Minor
	for _, it := range p.Items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if it.UnitPrice < 0 || it.TaxAmount < 0 {
			return nil, ErrInvalidAmount
		}
		subtotal += it.Subtotal()
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	total := subtotal + p.TaxAmount
	return &Order{
		ID:              p.ID,
		Owner:           p.Owner,
		Items:           append([]Item(nil), p.Items...),
		Subtotal:        subtotal,
		TaxAmount:       p.TaxAmount,
		TotalAmount:     total,
		Currency:        p.Currency,
		ShippingAddress: p.Address,
		Status:          StatusPending,
		Payment: Payment{
			Status:         PaymentPending,
			Amount:         total,
			Currency:       p.Currency,
			IdempotencyKey: PaymentIdempotencyKey(p.ID),
		},
		RequestKey: p.RequestKey,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// PaymentIdempotencyKey derives the gateway idempotency key from the order id so a
// retried session request can never produce a second charge.
func PaymentIdempotencyKey(orderID string) string { return "order:" + orderID }

// CheckInvariants verifies the money relations that must hold for every stored order.
func (o *Order) CheckInvariants() error {
	var subtotal money.Minor
	for _, it := range o.Items {
		subtotal += it.Subtotal()
	}
	if subtotal != o.Subtotal {
		return fmt.Errorf("%w: subtotal %d != sum of items %d", ErrInvariant, o.Subtotal, subtotal)
	}
	if o.TotalAmount != o.Subtotal+o.TaxAmount {
		return fmt.Errorf("%w: total %d != subtotal %d + tax %d", ErrInvariant, o.TotalAmount, o.Subtotal, o.TaxAmount)
	}
	return nil
}

// TaxRoundingDrift is the aggregate tax minus the sum of item taxes. It stays within one
// minor unit and is reported, not corrected.
func (o *Order) TaxRoundingDrift() money.Minor {
	var sum money.Minor
	for _, it := range o.Items {
		sum += it.TaxAmount
	}
	return o.TaxAmount - sum
}

// TransitionTo moves the fulfilment status. Illegal moves leave the order unchanged.
func (o *Order) TransitionTo(target Status) error {
	next, err := stateFor(o.Status).transition(o, target)
	if err != nil {
		return fmt.Errorf("%w: %s -> %s", err, o.Status, target)
	}
	o.Status = next.Status()
	o.touch()
	return nil
}

// ApplyPayment moves the payment status. Re-applying the current status is a no-op
// and reports changed=false.
func (o *Order) ApplyPayment(target PaymentStatus) (changed bool, err error) {
	if o.Payment.Status == target {
		return false, nil
	}
	next, err := paymentStateFor(o.Payment.Status).transition(target)
	if err != nil {
		return false, fmt.Errorf("%w: %s -> %s", err, o.Payment.Status, target)
	}
	o.Payment.Status = next.Status()
	o.touch()
	return true, nil
}

// AttachPaymentSession records the provider reference and checkout URL returned by
// the gateway. A reference is written once; re-attaching the same one is a no-op.
func (o *Order) AttachPaymentSession(ref, redirectURL string) error {
	switch {
	case ref == "":
		return errors.New("order: empty payment reference")
	case o.Payment.ProviderReference == ref:
		return nil
	case o.Payment.ProviderReference != "":
		return ErrReferenceSet
	}
	o.Payment.ProviderReference = ref
	o.Payment.RedirectURL = redirectURL
	o.touch()
	return nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]Item(nil), o.Items...)
	if o.Owner.Guest != nil {
		g := *o.Owner.Guest
		clone.Owner.Guest = &g
	}
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
