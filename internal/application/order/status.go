package order

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseOrderChangeStatus = "order.change_status"
	maxVersionRetries        = 3
)

type ChangeStatusInput struct {
	OrderID string
	Target  domain.Status
}

// ChangeStatusUseCase applies operational fulfilment transitions.
type ChangeStatusUseCase struct {
	repo      domain.Repository
	publisher domoutbox.Publisher
	inst      *application.Instruments
}

func NewChangeStatusUseCase(repo domain.Repository, publisher domoutbox.Publisher, tel observability.Observability) *ChangeStatusUseCase {
	return &ChangeStatusUseCase{repo: repo, publisher: publisher, inst: application.NewInstruments(tel, orderService)}
}

// Execute re-reads and re-applies the transition when a concurrent writer bumped the
// version first; an illegal transition against the fresh state is still rejected.
func (uc *ChangeStatusUseCase) Execute(ctx context.Context, cmd ChangeStatusInput) (_ *domain.Order, err error) {
	ctx, run := uc.inst.Begin(ctx, useCaseOrderChangeStatus, "ChangeStatus",
		attribute.String("order.id", cmd.OrderID),
		attribute.String("order.target_status", string(cmd.Target)),
	)
	defer func() { run.End(err) }()

	target, err := domain.ParseStatus(string(cmd.Target))
	if err != nil {
		run.Fail("INVALID_STATUS")
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		o, err := loadOwned(ctx, uc.repo, cmd.OrderID, nil)
		if err != nil {
			run.Fail("ORDER_LOAD_FAILED")
			return nil, err
		}
		from := o.Status
		if err := o.TransitionTo(target); err != nil {
			run.Fail("STATE_TRANSITION_REJECTED")
			return nil, err
		}

		err = uc.repo.UpdateState(ctx, o)
		if errors.Is(err, domain.ErrVersionConflict) && attempt < maxVersionRetries {
			run.Span().AddEvent("order.version_conflict")
			continue
		}
		if err != nil {
			run.Fail("ORDER_UPDATE_FAILED")
			return nil, wrapRepositoryError(err)
		}

		run.With("from", string(from))
		run.With("to", string(o.Status))
		if uc.publisher != nil {
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			if pubErr := uc.publisher.Publish(pubCtx, domain.NewOrderStatusChangedEvent(o, from)); pubErr != nil {
				run.Status("EVENT_PUBLISH_FAILED")
				run.Logger().Warn("event_publish_failed",
					observability.F("event", domain.EventOrderStatusChanged),
					observability.Err(pubErr),
				)
			}
			cancel()
		}
		return o, nil
	}
}
