package services

import (
	"fmt"
	"time"

	domain "github.com/shopfusion/api/internal/domain"
)

// DenialReason is a stable machine-readable code explaining why a lifecycle
// transition was refused.
type DenialReason string

const (
	DenialAlreadyPaid         DenialReason = "already_paid"
	DenialOrderCancelled      DenialReason = "order_cancelled"
	DenialAlreadyCancelled    DenialReason = "already_cancelled"
	DenialCannotCancelPaid    DenialReason = "cannot_cancel_paid_order"
	DenialNotEligible         DenialReason = "not_eligible"
	DenialOrderNotPaid        DenialReason = "order_not_paid"
	DenialAlreadyDelivered    DenialReason = "already_delivered"
	DenialOutOfOrder          DenialReason = "out_of_order"
	DenialNotDelivered        DenialReason = "not_delivered"
	DenialAlreadyRequested    DenialReason = "already_requested"
	DenialNoReturnRequest     DenialReason = "no_return_request"
	DenialNotApproved         DenialReason = "not_approved"
	DenialAlreadyCredited     DenialReason = "already_credited"
	DenialReturnStatusFinal   DenialReason = "return_status_final"
	DenialReturnStatusInvalid DenialReason = "return_status_invalid"
)

// GuardDenialError carries the denial reason alongside a human message. It
// unwraps to ErrOrderInvalidState so callers can branch with errors.Is.
type GuardDenialError struct {
	Reason  DenialReason
	Message string
}

func (e *GuardDenialError) Error() string {
	return fmt.Sprintf("order: transition denied (%s): %s", e.Reason, e.Message)
}

// Unwrap lets errors.Is match the invalid-state sentinel.
func (e *GuardDenialError) Unwrap() error {
	return ErrOrderInvalidState
}

func denial(reason DenialReason, format string, args ...any) error {
	return &GuardDenialError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// guardMarkPaid refuses double payment and payment against a cancelled order.
func guardMarkPaid(o domain.Order) error {
	if o.IsCancelled {
		return denial(DenialOrderCancelled, "order %s is cancelled", o.ID)
	}
	if o.IsPaid {
		return denial(DenialAlreadyPaid, "order %s is already paid", o.ID)
	}
	return nil
}

// guardCancel covers admin-initiated cancellation. Paid orders go through the
// return flow instead of cancellation.
func guardCancel(o domain.Order) error {
	if o.IsCancelled {
		return denial(DenialAlreadyCancelled, "order %s is already cancelled", o.ID)
	}
	if o.IsPaid {
		return denial(DenialCannotCancelPaid, "order %s is paid and cannot be cancelled", o.ID)
	}
	return nil
}

// guardCancelExpired covers system auto-cancellation. The order must still be
// unpaid, uncancelled, and older than the payment window.
func guardCancelExpired(o domain.Order, now time.Time, timeout time.Duration) error {
	if o.IsCancelled {
		return denial(DenialAlreadyCancelled, "order %s is already cancelled", o.ID)
	}
	if o.IsPaid {
		return denial(DenialCannotCancelPaid, "order %s is paid", o.ID)
	}
	if now.Sub(o.CreatedAt) <= timeout {
		return denial(DenialNotEligible, "order %s is still within the payment window", o.ID)
	}
	return nil
}

// guardSetFulfillment enforces the packing, dispatched, out-for-delivery,
// delivered progression. Each stage requires its predecessor, stages un-set
// only in reverse order, and a delivered order admits no further changes.
func guardSetFulfillment(o domain.Order, stage domain.FulfillmentStage, value bool) error {
	if o.IsCancelled {
		return denial(DenialOrderCancelled, "order %s is cancelled", o.ID)
	}
	if !o.IsPaid {
		return denial(DenialOrderNotPaid, "order %s is not paid", o.ID)
	}
	if o.IsDelivered {
		return denial(DenialAlreadyDelivered, "order %s is already delivered", o.ID)
	}

	stages := domain.FulfillmentStages
	idx := -1
	for i, s := range stages {
		if s == stage {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: unknown fulfillment stage %q", ErrOrderInvalidInput, stage)
	}

	if value {
		if o.Stage(stage) {
			// Setting an already-set flag is a no-op, not an error.
			return nil
		}
		if idx > 0 && !o.Stage(stages[idx-1]) {
			return denial(DenialOutOfOrder, "order %s cannot enter %s before %s", o.ID, stage, stages[idx-1])
		}
		return nil
	}

	if !o.Stage(stage) {
		return nil
	}
	if idx < len(stages)-1 && o.Stage(stages[idx+1]) {
		return denial(DenialOutOfOrder, "order %s cannot clear %s while %s is set", o.ID, stage, stages[idx+1])
	}
	return nil
}

// guardRequestReturn requires a delivered order with no open request.
func guardRequestReturn(o domain.Order) error {
	if o.IsCancelled {
		return denial(DenialOrderCancelled, "order %s is cancelled", o.ID)
	}
	if !o.IsDelivered {
		return denial(DenialNotDelivered, "order %s has not been delivered", o.ID)
	}
	if o.ReturnRequested {
		return denial(DenialAlreadyRequested, "order %s already has a return request", o.ID)
	}
	return nil
}

// guardSetReturnStatus allows an admin to resolve a pending request, and to
// flip between Approved and Rejected until the refund is credited. Resetting
// back to Pending is never permitted.
func guardSetReturnStatus(o domain.Order, target domain.ReturnStatus) error {
	if !o.ReturnRequested {
		return denial(DenialNoReturnRequest, "order %s has no return request", o.ID)
	}
	switch target {
	case domain.ReturnStatusApproved, domain.ReturnStatusRejected:
	case domain.ReturnStatusPending:
		return denial(DenialReturnStatusInvalid, "order %s return status cannot be reset to pending", o.ID)
	default:
		return fmt.Errorf("%w: unknown return status %q", ErrOrderInvalidInput, target)
	}
	if o.RefundCredited {
		return denial(DenialReturnStatusFinal, "order %s refund is already credited", o.ID)
	}
	return nil
}

// guardMarkRefundCredited requires an approved return that has not already
// been credited.
func guardMarkRefundCredited(o domain.Order) error {
	if !o.ReturnRequested {
		return denial(DenialNoReturnRequest, "order %s has no return request", o.ID)
	}
	if o.ReturnStatus != domain.ReturnStatusApproved {
		return denial(DenialNotApproved, "order %s return is not approved", o.ID)
	}
	if o.RefundCredited {
		return denial(DenialAlreadyCredited, "order %s refund is already credited", o.ID)
	}
	return nil
}
