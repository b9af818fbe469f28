package order

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

const (
	gatewayPeer           = "payment_gateway"
	gatewayEndpoint       = "create_session"
	defaultGatewayTimeout = 10 * time.Second
)

// sessionOpener asks the gateway for a hosted payment session and records the
// returned reference on the order.
type sessionOpener struct {
	gateway dompayment.Gateway
	repo    domain.Repository
	timeout time.Duration

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func newSessionOpener(gateway dompayment.Gateway, repo domain.Repository, timeout time.Duration, tel observability.Observability) sessionOpener {
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	m := observability.OrNop(tel).Metrics()
	return sessionOpener{
		gateway:      gateway,
		repo:         repo,
		timeout:      timeout,
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

// open must run with no store transaction held. A gateway failure or timeout leaves the
// order pending and is reported as *checkout.GatewayError; the derived idempotency key
// makes a later retry safe.
func (s sessionOpener) open(ctx context.Context, o *domain.Order) error {
	if o.Payment.ProviderReference != "" {
		return nil
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.timeout)
	begin := time.Now()
	sess, err := s.gateway.CreateSession(gwCtx, dompayment.SessionRequest{
		AmountMinor:    o.TotalAmount,
		Currency:       o.Currency,
		OrderID:        o.ID,
		IdempotencyKey: o.Payment.IdempotencyKey,
	})
	cancel()

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.extCounter.Add(1,
		observability.L("peer", gatewayPeer),
		observability.L("endpoint", gatewayEndpoint),
		observability.L("outcome", outcome),
	)
	s.extHistogram.Observe(time.Since(begin).Seconds(),
		observability.L("peer", gatewayPeer),
		observability.L("endpoint", gatewayEndpoint),
	)
	if err != nil {
		return &checkout.GatewayError{OrderID: o.ID, Err: err}
	}

	if err := s.repo.AttachPaymentSession(ctx, o.ID, sess.ProviderReference, sess.RedirectURL); err != nil {
		return fmt.Errorf("%w: attach payment session: %w", ErrRepository, err)
	}
	return o.AttachPaymentSession(sess.ProviderReference, sess.RedirectURL)
}
