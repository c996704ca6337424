package model

import "time"

// Booking statuses.  Pending is the only state that still holds
// inventory; confirmed, cancelled, failed and refunded are terminal.
const (
	BookingPending   = "PENDING"
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
	BookingRefunded  = "REFUNDED"
	BookingFailed    = "FAILED"
)

// Payment statuses tracked alongside the booking status.  A booking
// is confirmed if and only if its payment status is success; the two
// are always written in the same transaction.
const (
	PaymentPending  = "PENDING"
	PaymentSuccess  = "SUCCESS"
	PaymentFailed   = "FAILED"
	PaymentRefunded = "REFUNDED"
)

// Booking is the durable record of a checkout attempt and its
// outcome.  It is created by freezing an active cart and driven to a
// terminal state either by the payment protocol or by the
// reconciliation sweep.
//
// Fields:
//  ID            – primary key identifier.
//  BookingNumber – external-facing reference passed to the gateway.
//  UserID        – owner of the booking.
//  EventID       – event booked.
//  CartID        – cart this booking was frozen from.
//  Status        – one of the Booking* constants.
//  PaymentStatus – one of the Payment* constants.
//  TransactionID – gateway transaction opened for this booking, if any.
//  TotalCents    – sum of item subtotals.
//  DiscountCents – applied discount (summation only; always computed
//                  upstream).
//  FinalCents    – TotalCents minus DiscountCents; the charged amount.
//  TicketCount   – total units across all items.
//  ContactName   – checkout contact details.
//  ContactEmail  –
//  CreatedAt     – creation timestamp (anchor for the pending timeout).
//  UpdatedAt     – last transition timestamp.
//  Items         – frozen line items, loaded on demand.
type Booking struct {
	ID            uint64        // bookings.id
	BookingNumber string        // bookings.booking_number
	UserID        uint64        // bookings.user_id
	EventID       uint64        // bookings.event_id
	CartID        uint64        // bookings.cart_id
	Status        string        // bookings.status
	PaymentStatus string        // bookings.payment_status
	TransactionID *string       // bookings.transaction_id (nullable)
	TotalCents    int64         // bookings.total_cents
	DiscountCents int64         // bookings.discount_cents
	FinalCents    int64         // bookings.final_cents
	TicketCount   int           // bookings.ticket_count
	ContactName   string        // bookings.contact_name
	ContactEmail  string        // bookings.contact_email
	CreatedAt     time.Time     // bookings.created_at
	UpdatedAt     time.Time     // bookings.updated_at
	Items         []BookingItem //
}

// Terminal reports whether the booking has reached a final state.
func (b *Booking) Terminal() bool {
	return b.Status != BookingPending
}

// BookingItem is a frozen cart line.  It materializes into Quantity
// tickets only when the booking is confirmed.
type BookingItem struct {
	ID             uint64 // booking_items.id
	BookingID      uint64 // booking_items.booking_id
	CategoryID     uint64 // booking_items.category_id
	Quantity       int    // booking_items.quantity
	UnitPriceCents int64  // booking_items.unit_price_cents
}

// Ticket is one admission credential minted when a booking is
// confirmed.  The code is an opaque unique token presented at entry.
type Ticket struct {
	ID         uint64    // tickets.id
	BookingID  uint64    // tickets.booking_id
	EventID    uint64    // tickets.event_id
	CategoryID uint64    // tickets.category_id
	UserID     uint64    // tickets.user_id
	Code       string    // tickets.code
	IssuedAt   time.Time // tickets.issued_at
}
