package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCasePaymentSweep = "payment.sweep_pending"
	defaultSweepBatch   = 100
)

// Sweeper fails payments that stayed pending longer than the TTL, so abandoned
// checkouts do not sit in pending forever when the provider never calls back.
type Sweeper struct {
	repo      domorder.Repository
	publisher domoutbox.Publisher
	ttl       time.Duration
	interval  time.Duration
	batch     int
	now       func() time.Time
	inst      *application.Instruments
	log       observability.Logger
}

func NewSweeper(repo domorder.Repository, publisher domoutbox.Publisher, ttl time.Duration, tel observability.Observability) *Sweeper {
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	return &Sweeper{
		repo:      repo,
		publisher: publisher,
		ttl:       ttl,
		interval:  interval,
		batch:     defaultSweepBatch,
		now:       func() time.Time { return time.Now().UTC() },
		inst:      application.NewInstruments(tel, paymentService),
		log:       observability.OrNop(tel).Logger().With(observability.F("component", "payment_sweeper")),
	}
}

// Run sweeps on every tick until ctx is done. A zero TTL disables the sweeper.
func (s *Sweeper) Run(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("payment_sweep_failed", observability.Err(err))
			}
		}
	}
}

// Sweep runs one pass and reports how many payments it failed. Orders a callback
// updated concurrently are skipped; the callback wins.
func (s *Sweeper) Sweep(ctx context.Context) (swept int, err error) {
	cutoff := s.now().Add(-s.ttl)
	ctx, run := s.inst.Begin(ctx, useCasePaymentSweep, "SweepPendingPayments",
		attribute.String("payment.cutoff", cutoff.Format(time.RFC3339)),
	)
	defer func() {
		run.With("swept", swept)
		run.End(err)
	}()

	stale, err := s.repo.ListPendingPayments(ctx, cutoff, s.batch)
	if err != nil {
		run.Fail("LIST_PENDING_FAILED")
		return 0, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	for _, o := range stale {
		from := o.Payment.Status
		changed, err := o.ApplyPayment(domorder.PaymentFailed)
		if err != nil || !changed {
			continue
		}
		if err := s.repo.UpdateState(ctx, o); err != nil {
			if !errors.Is(err, domorder.ErrVersionConflict) {
				run.Logger().Warn("payment_sweep_update_failed",
					observability.F("order_id", o.ID),
					observability.Err(err),
				)
			}
			continue
		}
		swept++
		publish(ctx, s.publisher, run, domorder.NewPaymentStatusChangedEvent(o, from))
	}
	return swept, nil
}
