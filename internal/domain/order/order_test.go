package order

import (
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	o, err := New(NewParams{
		ID:    "o-1",
		Owner: Owner{AccountID: "acc-1"},
		Items: []Item{
			{ProductID: "A", Quantity: 2, UnitPrice: 1000, TaxAmount: 160},
			{ProductID: "B", Quantity: 1, UnitPrice: 500, TaxAmount: 40},
		},
		TaxAmount: 200,
		Currency:  "USD",
		Address:   Address{Name: "Ann", Line1: "1 Main", City: "SF", PostalCode: "94000", RegionCode: "US-CA"},
	})
	require.NoError(t, err)
	return o
}

func TestNewComputesTotals(t *testing.T) {
	o := newTestOrder(t)

	assert.EqualValues(t, 2500, o.Subtotal)
	assert.EqualValues(t, 200, o.TaxAmount)
	assert.EqualValues(t, 2700, o.TotalAmount)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentPending, o.Payment.Status)
	assert.EqualValues(t, 2700, o.Payment.Amount)
	assert.Equal(t, "order:o-1", o.Payment.IdempotencyKey)
	assert.NoError(t, o.CheckInvariants())
	assert.EqualValues(t, 0, o.TaxRoundingDrift())
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(NewParams{ID: "o-1"})
	assert.ErrorIs(t, err, ErrNoItems)

	_, err = New(NewParams{ID: "o-1", Items: []Item{{ProductID: "A", Quantity: 0}}})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = New(NewParams{ID: "o-1", Items: []Item{{ProductID: "A", Quantity: 1, UnitPrice: -1}}})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCheckInvariantsDetectsTampering(t *testing.T) {
	o := newTestOrder(t)
	o.TotalAmount++
	assert.ErrorIs(t, o.CheckInvariants(), ErrInvariant)
}

func TestStatusTransitions(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:    {StatusProcessing, StatusCancelled},
		StatusProcessing: {StatusShipped, StatusCancelled},
		StatusShipped:    {StatusDelivered},
		StatusDelivered:  nil,
		StatusCancelled:  nil,
	}
	all := []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

	for from, targets := range allowed {
		for _, to := range all {
			o := newTestOrder(t)
			o.Status = from
			err := o.TransitionTo(to)
			if contains(targets, to) {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, o.Status)
				continue
			}
			assert.ErrorIs(t, err, ErrInvalidStateTransition, "%s -> %s", from, to)
			assert.ErrorIs(t, err, checkout.ErrStateViolation)
			assert.Equal(t, from, o.Status, "order must be left unchanged")
		}
	}
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StatusDelivered.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusShipped.IsTerminal())
}

func TestPaymentTransitions(t *testing.T) {
	o := newTestOrder(t)

	changed, err := o.ApplyPayment(PaymentSucceeded)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = o.ApplyPayment(PaymentSucceeded)
	require.NoError(t, err)
	assert.False(t, changed, "replaying the same status is a no-op")

	_, err = o.ApplyPayment(PaymentFailed)
	assert.ErrorIs(t, err, ErrInvalidPaymentTransition)
	assert.Equal(t, PaymentSucceeded, o.Payment.Status)

	changed, err = o.ApplyPayment(PaymentRefunded)
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = o.ApplyPayment(PaymentPending)
	assert.ErrorIs(t, err, checkout.ErrStateViolation)
}

func TestFailedPaymentIsFinal(t *testing.T) {
	o := newTestOrder(t)
	_, err := o.ApplyPayment(PaymentFailed)
	require.NoError(t, err)

	_, err = o.ApplyPayment(PaymentSucceeded)
	assert.ErrorIs(t, err, ErrInvalidPaymentTransition)
	_, err = o.ApplyPayment(PaymentRefunded)
	assert.ErrorIs(t, err, ErrInvalidPaymentTransition)
}

func TestPaymentIndependentOfStatus(t *testing.T) {
	o := newTestOrder(t)
	_, err := o.ApplyPayment(PaymentSucceeded)
	require.NoError(t, err)
	assert.NoError(t, o.TransitionTo(StatusCancelled))
	assert.Equal(t, PaymentSucceeded, o.Payment.Status)
}

func TestAttachPaymentSession(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.AttachPaymentSession("ref-1", "https://pay.example/ref-1"))
	assert.NoError(t, o.AttachPaymentSession("ref-1", "https://pay.example/ref-1"))
	assert.ErrorIs(t, o.AttachPaymentSession("ref-2", ""), ErrReferenceSet)
	assert.Error(t, o.AttachPaymentSession("", ""))
	assert.Equal(t, "https://pay.example/ref-1", o.Payment.RedirectURL)
}

func TestOwnerFromCaller(t *testing.T) {
	acc := OwnerFromCaller(cart.Authenticated{AccountID: "acc-1"})
	assert.False(t, acc.IsGuest())
	assert.Equal(t, "account:acc-1", acc.Key())

	guest := OwnerFromCaller(cart.Guest{SessionID: "guest_1", Contact: cart.Contact{Name: "Ann", Email: "a@b.c"}})
	assert.True(t, guest.IsGuest())
	assert.Equal(t, "session:guest_1", guest.Key())
	require.NotNil(t, guest.Guest)
	assert.Equal(t, "a@b.c", guest.Guest.Email)
}

func TestAddressValidate(t *testing.T) {
	a := Address{Name: "Ann", Line1: "1 Main", City: "SF", PostalCode: "94000", RegionCode: "US-CA"}
	assert.NoError(t, a.Validate())

	a.RegionCode = "california"
	assert.ErrorIs(t, a.Validate(), checkout.ErrValidation)

	a.RegionCode = "US-CA"
	a.City = " "
	assert.ErrorIs(t, a.Validate(), checkout.ErrValidation)
}

func TestCloneIsDeep(t *testing.T) {
	o := newTestOrder(t)
	o.Owner.Guest = &cart.Contact{Name: "Ann"}
	c := o.Clone()
	c.Items[0].Quantity = 99
	c.Owner.Guest.Name = "Bob"
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Equal(t, "Ann", o.Owner.Guest.Name)
}

func TestPaymentEventName(t *testing.T) {
	o := newTestOrder(t)
	_, err := o.ApplyPayment(PaymentSucceeded)
	require.NoError(t, err)
	e := NewPaymentStatusChangedEvent(o, PaymentPending)
	assert.Equal(t, EventPaymentSucceeded, e.EventName())
	assert.Equal(t, EventOrderCreated, NewOrderCreatedEvent(o).EventName())
}

func contains(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
