package cart

import (
	"context"
	"testing"

	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSubscriber struct {
	handlers map[string]domoutbox.Handler
}

func (c *captureSubscriber) Subscribe(name string, h domoutbox.Handler) {
	if c.handlers == nil {
		c.handlers = map[string]domoutbox.Handler{}
	}
	c.handlers[name] = h
}

func TestWorkerClearsCartOnOrderCreated(t *testing.T) {
	r, accounts, _, _ := setup(t)
	ctx := context.Background()
	owner := domcart.OwnerRef{Kind: domcart.OwnerAccount, ID: "acc-1"}
	require.NoError(t, accounts.Save(ctx, &domcart.Cart{Owner: owner, Lines: []domcart.Line{{ProductID: "A", Quantity: 1}}}))

	sub := &captureSubscriber{}
	NewWorker(sub, r, nil).Start()
	h, ok := sub.handlers[domorder.EventOrderCreated]
	require.True(t, ok)

	require.NoError(t, h(ctx, domorder.OrderCreatedEvent{OrderID: "o-1", AccountID: "acc-1"}))
	_, err := accounts.Get(ctx, owner)
	assert.ErrorIs(t, err, domcart.ErrNotFound)

	assert.NoError(t, h(ctx, domorder.OrderStatusChangedEvent{OrderID: "o-1"}), "foreign events are ignored")
}
