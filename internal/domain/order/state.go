package order

import (
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
)

var (
	ErrInvalidStateTransition   = fmt.Errorf("%w: invalid order state transition", checkout.ErrStateViolation)
	ErrInvalidPaymentTransition = fmt.Errorf("%w: invalid payment state transition", checkout.ErrStateViolation)
)

// OrderState implements the state pattern for the fulfilment lifecycle.
type OrderState interface {
	Status() Status
	OnProcess(o *Order) (OrderState, error)
	OnShip(o *Order) (OrderState, error)
	OnDeliver(o *Order) (OrderState, error)
	OnCancel(o *Order) (OrderState, error)
}

func stateFor(s Status) orderTransitioner {
	switch s {
	case StatusPending:
		return pendingState{}
	case StatusProcessing:
		return processingState{}
	case StatusShipped:
		return shippedState{}
	case StatusDelivered:
		return deliveredState{}
	case StatusCancelled:
		return cancelledState{}
	default:
		return unknownState{status: s}
	}
}

type orderTransitioner interface {
	OrderState
	transition(o *Order, target Status) (OrderState, error)
}

func dispatch(st OrderState, o *Order, target Status) (OrderState, error) {
	switch target {
	case StatusProcessing:
		return st.OnProcess(o)
	case StatusShipped:
		return st.OnShip(o)
	case StatusDelivered:
		return st.OnDeliver(o)
	case StatusCancelled:
		return st.OnCancel(o)
	default:
		return nil, ErrInvalidStateTransition
	}
}

// rejectAll is embedded by states to refuse every move they do not override.
type rejectAll struct{}

func (rejectAll) OnProcess(*Order) (OrderState, error) { return nil, ErrInvalidStateTransition }
func (rejectAll) OnShip(*Order) (OrderState, error)    { return nil, ErrInvalidStateTransition }
func (rejectAll) OnDeliver(*Order) (OrderState, error) { return nil, ErrInvalidStateTransition }
func (rejectAll) OnCancel(*Order) (OrderState, error)  { return nil, ErrInvalidStateTransition }

type pendingState struct{ rejectAll }

func (pendingState) Status() Status { return StatusPending }

func (pendingState) OnProcess(*Order) (OrderState, error) { return processingState{}, nil }

func (pendingState) OnCancel(*Order) (OrderState, error) { return cancelledState{}, nil }

func (s pendingState) transition(o *Order, target Status) (OrderState, error) {
	return dispatch(s, o, target)
}

type processingState struct{ rejectAll }

func (processingState) Status() Status { return StatusProcessing }

func (processingState) OnShip(*Order) (OrderState, error) { return shippedState{}, nil }

func (processingState) OnCancel(*Order) (OrderState, error) { return cancelledState{}, nil }

func (s processingState) transition(o *Order, target Status) (OrderState, error) {
	return dispatch(s, o, target)
}

type shippedState struct{ rejectAll }

func (shippedState) Status() Status { return StatusShipped }

func (shippedState) OnDeliver(*Order) (OrderState, error) { return deliveredState{}, nil }

func (s shippedState) transition(o *Order, target Status) (OrderState, error) {
	return dispatch(s, o, target)
}

// deliveredState and cancelledState are terminal.
type deliveredState struct{ rejectAll }

func (deliveredState) Status() Status { return StatusDelivered }

func (s deliveredState) transition(o *Order, target Status) (OrderState, error) {
	return dispatch(s, o, target)
}

type cancelledState struct{ rejectAll }

func (cancelledState) Status() Status { return StatusCancelled }

func (s cancelledState) transition(o *Order, target Status) (OrderState, error) {
	return dispatch(s, o, target)
}

type unknownState struct {
	rejectAll
	status Status
}

func (s unknownState) Status() Status { return s.status }

func (s unknownState) transition(*Order, Status) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

// PaymentState is the payment-side counterpart of OrderState.
type PaymentState interface {
	Status() PaymentStatus
	OnSucceeded() (PaymentState, error)
	OnFailed() (PaymentState, error)
	OnRefunded() (PaymentState, error)
}

func paymentStateFor(s PaymentStatus) paymentTransitioner {
	switch s {
	case PaymentPending:
		return paymentPendingState{}
	case PaymentSucceeded:
		return paymentSucceededState{}
	case PaymentFailed:
		return paymentFailedState{}
	case PaymentRefunded:
		return paymentRefundedState{}
	default:
		return paymentUnknownState{status: s}
	}
}

type paymentTransitioner interface {
	PaymentState
	transition(target PaymentStatus) (PaymentState, error)
}

func dispatchPayment(st PaymentState, target PaymentStatus) (PaymentState, error) {
	switch target {
	case PaymentSucceeded:
		return st.OnSucceeded()
	case PaymentFailed:
		return st.OnFailed()
	case PaymentRefunded:
		return st.OnRefunded()
	default:
		return nil, ErrInvalidPaymentTransition
	}
}

type rejectPayment struct{}

func (rejectPayment) OnSucceeded() (PaymentState, error) { return nil, ErrInvalidPaymentTransition }
func (rejectPayment) OnFailed() (PaymentState, error)    { return nil, ErrInvalidPaymentTransition }
func (rejectPayment) OnRefunded() (PaymentState, error)  { return nil, ErrInvalidPaymentTransition }

type paymentPendingState struct{ rejectPayment }

func (paymentPendingState) Status() PaymentStatus { return PaymentPending }

func (paymentPendingState) OnSucceeded() (PaymentState, error) { return paymentSucceededState{}, nil }

func (paymentPendingState) OnFailed() (PaymentState, error) { return paymentFailedState{}, nil }

func (s paymentPendingState) transition(target PaymentStatus) (PaymentState, error) {
	return dispatchPayment(s, target)
}

type paymentSucceededState struct{ rejectPayment }

func (paymentSucceededState) Status() PaymentStatus { return PaymentSucceeded }

func (paymentSucceededState) OnRefunded() (PaymentState, error) { return paymentRefundedState{}, nil }

func (s paymentSucceededState) transition(target PaymentStatus) (PaymentState, error) {
	return dispatchPayment(s, target)
}

type paymentFailedState struct{ rejectPayment }

func (paymentFailedState) Status() PaymentStatus { return PaymentFailed }

func (s paymentFailedState) transition(target PaymentStatus) (PaymentState, error) {
	return dispatchPayment(s, target)
}

type paymentRefundedState struct{ rejectPayment }

func (paymentRefundedState) Status() PaymentStatus { return PaymentRefunded }

func (s paymentRefundedState) transition(target PaymentStatus) (PaymentState, error) {
	return dispatchPayment(s, target)
}

type paymentUnknownState struct {
	rejectPayment
	status PaymentStatus
}

func (s paymentUnknownState) Status() PaymentStatus { return s.status }

func (paymentUnknownState) transition(PaymentStatus) (PaymentState, error) {
	return nil, ErrInvalidPaymentTransition
}
