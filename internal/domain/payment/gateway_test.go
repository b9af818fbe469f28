package payment

import (
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/stretchr/testify/assert"
)

func TestParseResult(t *testing.T) {
	cases := map[string]order.PaymentStatus{
		"succeeded": order.PaymentSucceeded,
		"A":         order.PaymentSucceeded,
		" Approved": order.PaymentSucceeded,
		"declined":  order.PaymentFailed,
		"D":         order.PaymentFailed,
		"refunded":  order.PaymentRefunded,
	}
	for in, want := range cases {
		got, err := ParseResult(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseResult("maybe")
	assert.ErrorIs(t, err, ErrUnknownResult)
}
