package service

import (
	"errors"
	"fmt"
)

// Sentinel errors for the coordinator's user-actionable failure
// conditions.  Handlers map each to a distinct HTTP status; none of
// them is a generic failure.
var (
	// ErrAlreadyQueued: the user already has a live queue entry for
	// the event.  Retrying Join is therefore safe.
	ErrAlreadyQueued = errors.New("already queued for this event")

	// ErrAdmissionRequired: the event is demand-gated and the caller
	// has not (or no longer) passed the queue.
	ErrAdmissionRequired = errors.New("queue admission required")

	// ErrQueueDisabled: the event does not run a virtual queue, so
	// queue operations are meaningless for it.
	ErrQueueDisabled = errors.New("event is not queue-gated")

	// ErrBookingWindowClosed: the event's booking window is not open.
	ErrBookingWindowClosed = errors.New("booking window is closed")

	// ErrCartExpired: the cart's hold lapsed; the caller must rebuild
	// a cart.
	ErrCartExpired = errors.New("cart has expired")

	// ErrCartInvalid: the cart cannot proceed to checkout (wrong
	// status, empty, or holds out of step with items).
	ErrCartInvalid = errors.New("cart is not valid for checkout")

	// ErrMaxTicketsExceeded: the mutation would push the cart past
	// the event's per-booking ticket cap.
	ErrMaxTicketsExceeded = errors.New("maximum tickets per booking exceeded")

	// ErrInvalidQuantity: quantities must be positive.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")

	// ErrPaymentVerificationFailed: the relayed payment proof did not
	// verify.  Terminal for the booking; no charge was accepted and
	// no seats remain held.
	ErrPaymentVerificationFailed = errors.New("payment verification failed")

	// ErrTransactionAlreadyResolved: the booking already reached a
	// terminal state through another path.
	ErrTransactionAlreadyResolved = errors.New("transaction already resolved")

	// ErrBookingNotPending: the operation requires a pending booking.
	ErrBookingNotPending = errors.New("booking is not pending")
)

// AvailabilityError reports an inventory shortfall, carrying the
// remaining count so the user can be told exactly what changed
// instead of receiving a generic failure.
type AvailabilityError struct {
	CategoryID uint64
	Requested  int
	Available  int
}

func (e *AvailabilityError) Error() string {
	if e.Available == 0 {
		return fmt.Sprintf("no tickets left in category %d", e.CategoryID)
	}
	return fmt.Sprintf("only %d tickets left in category %d (requested %d)",
		e.Available, e.CategoryID, e.Requested)
}
