package inventory

import (
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	"github.com/stretchr/testify/assert"
)

func TestAvailability(t *testing.T) {
	p := &Product{ID: "A", Stock: 2, Active: true}

	assert.Equal(t, checkout.RejectReason(""), Availability(p, 2))
	assert.Equal(t, checkout.ReasonInsufficientStock, Availability(p, 3))
	assert.Equal(t, checkout.ReasonNotFound, Availability(nil, 1))

	p.Active = false
	assert.Equal(t, checkout.ReasonInactive, Availability(p, 1))
}

func TestDeduct(t *testing.T) {
	p := &Product{ID: "A", Stock: 2, Active: true}

	assert.ErrorIs(t, p.Deduct(0), ErrInvalidQuantity)
	assert.ErrorIs(t, p.Deduct(3), ErrInsufficientStock)
	assert.NoError(t, p.Deduct(2))
	assert.Equal(t, 0, p.Stock)
	assert.False(t, p.UpdatedAt.IsZero())
}
