package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/venuegate/ticket-admission/internal/database"
	"github.com/venuegate/ticket-admission/internal/model"
	"github.com/venuegate/ticket-admission/internal/payment"
	q "github.com/venuegate/ticket-admission/internal/queue"
	"github.com/venuegate/ticket-admission/internal/repository"
)

// ContactInfo is captured at checkout start and frozen onto the
// booking.
type ContactInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CheckoutService drives a booking through its state machine:
// pending, then exactly one of confirmed, cancelled or failed.  The
// success path is idempotent by gateway transaction id; the
// reconciliation sweep is the unconditional backstop for clients that
// vanish mid-payment.  External gateway calls never run while a
// database transaction is open.
type CheckoutService interface {
	Begin(ctx context.Context, userID, cartID uint64, contact ContactInfo) (*model.Booking, error)
	OpenTransaction(ctx context.Context, userID, bookingID uint64) (*payment.Transaction, error)
	Confirm(ctx context.Context, bookingID uint64, transactionID, paymentID, signature string) (*model.Booking, error)
	Abandon(ctx context.Context, userID, bookingID uint64) error
	Get(ctx context.Context, userID, bookingID uint64) (*model.Booking, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	// Reconcile resolves bookings stuck in pending past the timeout,
	// consulting the gateway before cancelling.  Returns the number
	// of bookings it drove to a terminal state.
	Reconcile(ctx context.Context) (int, error)
}

type checkoutService struct {
	events     EventStore
	entries    QueueStore
	carts      CartStore
	bookings   BookingStore
	inventory  InventoryStore
	gateway    payment.Gateway
	pub        Publisher
	currency   string
	pendingTTL time.Duration
	runTx      func(ctx context.Context, fn func(tx *sql.Tx) error) error
	now        func() time.Time
}

// NewCheckoutService wires the checkout orchestrator.  pendingTTL
// bounds how long a pending booking may hold inventory before the
// reconciliation sweep force-resolves it.
func NewCheckoutService(db *sql.DB, events EventStore, entries QueueStore, carts CartStore, bookings BookingStore, inventory InventoryStore, gw payment.Gateway, pub Publisher, currency string, pendingTTL time.Duration) CheckoutService {
	return &checkoutService{
		events:     events,
		entries:    entries,
		carts:      carts,
		bookings:   bookings,
		inventory:  inventory,
		gateway:    gw,
		pub:        pub,
		currency:   currency,
		pendingTTL: pendingTTL,
		runTx: func(ctx context.Context, fn func(tx *sql.Tx) error) error {
			return database.WithTx(ctx, db, fn)
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *checkoutService) Begin(ctx context.Context, userID, cartID uint64, contact ContactInfo) (*model.Booking, error) {
	now := s.now()
	var booking *model.Booking
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		cart, err := s.carts.GetTx(ctx, tx, cartID)
		if err != nil {
			return err
		}
		if cart.UserID != userID {
			return repository.ErrForbidden
		}
		if cart.Status != model.CartActive {
			return ErrCartInvalid
		}
		if cart.Expired(now) {
			return ErrCartExpired
		}
		ev, err := s.events.GetByID(ctx, cart.EventID)
		if err != nil {
			return err
		}
		if !ev.BookingOpen(now) {
			return ErrBookingWindowClosed
		}
		items, err := s.carts.ItemsTx(ctx, tx, cartID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrCartInvalid
		}
		// The holds must still cover every line; anything less means
		// this cart already lost inventory and cannot be frozen.
		holds, err := s.inventory.HoldsByHolderTx(ctx, tx, model.HolderCart, cartID)
		if err != nil {
			return err
		}
		heldByCategory := make(map[uint64]int, len(holds))
		for _, h := range holds {
			heldByCategory[h.CategoryID] = h.Quantity
		}
		frozen := make([]model.BookingItem, 0, len(items))
		var total int64
		count := 0
		for _, it := range items {
			if heldByCategory[it.CategoryID] != it.Quantity {
				return ErrCartInvalid
			}
			frozen = append(frozen, model.BookingItem{
				CategoryID:     it.CategoryID,
				Quantity:       it.Quantity,
				UnitPriceCents: it.UnitPriceCents,
			})
			total += it.Subtotal()
			count += it.Quantity
		}

		booking = &model.Booking{
			BookingNumber: uuid.NewString(),
			UserID:        userID,
			EventID:       cart.EventID,
			CartID:        cart.ID,
			Status:        model.BookingPending,
			PaymentStatus: model.PaymentPending,
			TotalCents:    total,
			DiscountCents: 0,
			FinalCents:    total,
			TicketCount:   count,
			ContactName:   contact.Name,
			ContactEmail:  contact.Email,
		}
		if err := s.bookings.CreateTx(ctx, tx, booking, frozen); err != nil {
			return err
		}
		ok, err := s.carts.TransitionTx(ctx, tx, cart.ID, model.CartActive, model.CartConverted)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCartInvalid
		}
		// Holds pass from the cart to the pending booking and pick up
		// the booking timeout as their new deadline.
		if err := s.inventory.ReassignHolderTx(ctx, tx, model.HolderCart, cart.ID,
			model.HolderBooking, booking.ID, now.Add(s.pendingTTL)); err != nil {
			return err
		}
		// Reaching checkout completes the queue pass; zero rows is
		// fine for events without a queue.
		_, err = s.entries.CompleteActiveTx(ctx, tx, cart.EventID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *checkoutService) OpenTransaction(ctx context.Context, userID, bookingID uint64) (*payment.Transaction, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, repository.ErrForbidden
	}
	if b.Terminal() {
		return nil, ErrBookingNotPending
	}
	// The gateway call runs outside any database transaction.  Its
	// idempotency key is derived from the booking number, so a retry
	// replays the same gateway transaction rather than opening two.
	txn, err := s.gateway.CreateTransaction(ctx, b.FinalCents, s.currency, b.BookingNumber)
	if err != nil {
		return nil, err
	}
	claimed, err := s.bookings.ClaimTransaction(ctx, bookingID, txn.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Another call won the claim; honour whatever id it stored.
		b2, err := s.bookings.Get(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		if b2.Terminal() {
			return nil, ErrBookingNotPending
		}
		if b2.TransactionID != nil && *b2.TransactionID != txn.ID {
			return s.gateway.FetchTransaction(ctx, *b2.TransactionID)
		}
	}
	return txn, nil
}

func (s *checkoutService) Confirm(ctx context.Context, bookingID uint64, transactionID, paymentID, signature string) (*model.Booking, error) {
	var booking *model.Booking
	var verifyFailed bool
	confirmed := false
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		b, err := s.bookings.GetTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		// Repeat call with the transaction that confirmed the
		// booking: report the same state, mint nothing.
		if b.Status == model.BookingConfirmed && b.TransactionID != nil && *b.TransactionID == transactionID {
			items, err := s.bookings.ItemsTx(ctx, tx, b.ID)
			if err != nil {
				return err
			}
			b.Items = items
			booking = b
			return nil
		}
		if b.Terminal() {
			return ErrTransactionAlreadyResolved
		}
		if b.TransactionID == nil || *b.TransactionID != transactionID ||
			!s.gateway.VerifyProof(transactionID, paymentID, signature) {
			// Verification failure is terminal: the booking fails and
			// its inventory goes back on sale.  These effects must
			// commit, so the error is surfaced after the transaction.
			if _, err := s.bookings.TransitionTx(ctx, tx, b.ID, model.BookingFailed, model.PaymentFailed); err != nil {
				return err
			}
			if _, err := releaseHolderTx(ctx, tx, s.inventory, model.HolderBooking, b.ID); err != nil {
				return err
			}
			verifyFailed = true
			return nil
		}
		if err := s.confirmTx(ctx, tx, b); err != nil {
			return err
		}
		booking = b
		confirmed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if verifyFailed {
		return nil, ErrPaymentVerificationFailed
	}
	if confirmed {
		s.publishConfirmed(ctx, booking)
	}
	return booking, nil
}

// confirmTx applies the success transition: booking confirmed and
// payment success in one statement, held units converted to sold,
// hold rows removed and one ticket minted per unit.  Caller holds the
// booking row lock.
func (s *checkoutService) confirmTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	ok, err := s.bookings.TransitionTx(ctx, tx, b.ID, model.BookingConfirmed, model.PaymentSuccess)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTransactionAlreadyResolved
	}
	items, err := s.bookings.ItemsTx(ctx, tx, b.ID)
	if err != nil {
		return err
	}
	var tickets []model.Ticket
	for _, it := range items {
		if err := s.inventory.SellTx(ctx, tx, it.CategoryID, it.Quantity); err != nil {
			return err
		}
		for n := 0; n < it.Quantity; n++ {
			tickets = append(tickets, model.Ticket{
				BookingID:  b.ID,
				EventID:    b.EventID,
				CategoryID: it.CategoryID,
				UserID:     b.UserID,
				Code:       uuid.NewString(),
			})
		}
	}
	if err := s.inventory.DeleteHoldsByHolderTx(ctx, tx, model.HolderBooking, b.ID); err != nil {
		return err
	}
	if err := s.bookings.InsertTicketsTx(ctx, tx, tickets); err != nil {
		return err
	}
	b.Status = model.BookingConfirmed
	b.PaymentStatus = model.PaymentSuccess
	b.Items = items
	return nil
}

func (s *checkoutService) Abandon(ctx context.Context, userID, bookingID uint64) error {
	return s.runTx(ctx, func(tx *sql.Tx) error {
		b, err := s.bookings.GetTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.UserID != userID {
			return repository.ErrForbidden
		}
		if b.Status == model.BookingCancelled {
			return nil // already abandoned; nothing to undo
		}
		if b.Terminal() {
			return ErrBookingNotPending
		}
		return s.cancelTx(ctx, tx, b, "abandoned")
	})
}

// cancelTx cancels a pending booking and releases its holds.  The
// payment status stays pending: nothing was charged.  Used by both
// the explicit abandon path and the reconciliation sweep so the two
// produce identical terminal states.
func (s *checkoutService) cancelTx(ctx context.Context, tx *sql.Tx, b *model.Booking, reason string) error {
	ok, err := s.bookings.TransitionTx(ctx, tx, b.ID, model.BookingCancelled, b.PaymentStatus)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTransactionAlreadyResolved
	}
	released, err := releaseHolderTx(ctx, tx, s.inventory, model.HolderBooking, b.ID)
	if err != nil {
		return err
	}
	if s.pub != nil {
		payload := q.BookingCancelledEvent{
			BookingID:     b.ID,
			BookingNumber: b.BookingNumber,
			UserID:        b.UserID,
			EventID:       b.EventID,
			ReleasedUnits: released,
			Reason:        reason,
			CancelledAt:   s.now().Format(time.RFC3339),
		}
		if err := s.pub.Publish(ctx, q.BookingCancelledQueue, payload); err != nil {
			log.Printf("checkout: publish cancelled event failed: %v", err)
		}
	}
	return nil
}

func (s *checkoutService) Get(ctx context.Context, userID, bookingID uint64) (*model.Booking, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, repository.ErrForbidden
	}
	items, err := s.bookings.Items(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	b.Items = items
	return b, nil
}

func (s *checkoutService) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

func (s *checkoutService) Reconcile(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.pendingTTL)
	ids, err := s.bookings.StalePending(ctx, cutoff, 100)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for _, id := range ids {
		if err := s.reconcileOne(ctx, id); err != nil {
			log.Printf("checkout: reconcile booking %d failed: %v", id, err)
			continue
		}
		resolved++
	}
	return resolved, nil
}

// reconcileOne resolves a single stale pending booking.  The gateway
// is consulted first (outside any transaction): a payment that
// succeeded without its confirmation call arriving is confirmed, not
// thrown away; everything else is cancelled exactly like an explicit
// abandon.
func (s *checkoutService) reconcileOne(ctx context.Context, bookingID uint64) error {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.Terminal() {
		return nil
	}
	paid := false
	if b.TransactionID != nil {
		txn, err := s.gateway.FetchTransaction(ctx, *b.TransactionID)
		if err != nil {
			// Unreachable gateway: leave the booking for the next
			// pass rather than guessing.
			return err
		}
		paid = txn.Status == payment.StatusPaid
	}
	var confirmed *model.Booking
	err = s.runTx(ctx, func(tx *sql.Tx) error {
		b, err := s.bookings.GetTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.Terminal() {
			return nil
		}
		if paid {
			if err := s.confirmTx(ctx, tx, b); err != nil {
				return err
			}
			confirmed = b
			return nil
		}
		return s.cancelTx(ctx, tx, b, "reconciliation timeout")
	})
	if err != nil {
		if errors.Is(err, ErrTransactionAlreadyResolved) {
			return nil
		}
		return err
	}
	if confirmed != nil {
		s.publishConfirmed(ctx, confirmed)
	}
	return nil
}

func (s *checkoutService) publishConfirmed(ctx context.Context, b *model.Booking) {
	if s.pub == nil {
		return
	}
	payload := q.BookingConfirmedEvent{
		BookingID:     b.ID,
		BookingNumber: b.BookingNumber,
		UserID:        b.UserID,
		EventID:       b.EventID,
		TicketCount:   b.TicketCount,
		FinalCents:    b.FinalCents,
		ConfirmedAt:   s.now().Format(time.RFC3339),
	}
	if err := s.pub.Publish(ctx, q.BookingConfirmedQueue, payload); err != nil {
		log.Printf("checkout: publish confirmed event failed: %v", err)
	}
}
