// Package queue defines the message payloads exchanged over the
// broker and the background consumer that turns them into
// notifications.  The realtime channel is a convenience transport:
// every payload here is re-derivable by polling the HTTP API.
package queue

// Queue names, one per payload type.  Routing key equals queue name
// on the default exchange.
const (
	QueueAdmittedQueue    = "queue.admitted"
	CartExpiredQueue      = "cart.expired"
	BookingConfirmedQueue = "booking.confirmed"
	BookingCancelledQueue = "booking.cancelled"
)

// QueueAdmittedEvent is published when an admission batch promotes
// waiting users into their processing window.  Consumers push the
// update to the affected clients so they stop polling.
type QueueAdmittedEvent struct {
	EventID            uint64   `json:"event_id"`
	UserIDs            []uint64 `json:"user_ids"`
	ProcessingDeadline string   `json:"processing_deadline"`
	AdmittedAt         string   `json:"admitted_at"`
}

// CartExpiredEvent is published when the sweep expires a cart and
// releases its holds.
type CartExpiredEvent struct {
	CartID        uint64 `json:"cart_id"`
	UserID        uint64 `json:"user_id"`
	EventID       uint64 `json:"event_id"`
	ReleasedUnits int    `json:"released_units"`
	ExpiredAt     string `json:"expired_at"`
}

// BookingConfirmedEvent is published when payment is verified and
// tickets are minted.  It carries enough for downstream consumers to
// notify without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID     uint64 `json:"booking_id"`
	BookingNumber string `json:"booking_number"`
	UserID        uint64 `json:"user_id"`
	EventID       uint64 `json:"event_id"`
	TicketCount   int    `json:"ticket_count"`
	FinalCents    int64  `json:"final_cents"`
	ConfirmedAt   string `json:"confirmed_at"`
}

// BookingCancelledEvent is published when a pending booking is
// abandoned by the user or force-cancelled by reconciliation.  The
// reason distinguishes the two paths.
type BookingCancelledEvent struct {
	BookingID     uint64 `json:"booking_id"`
	BookingNumber string `json:"booking_number"`
	UserID        uint64 `json:"user_id"`
	EventID       uint64 `json:"event_id"`
	ReleasedUnits int    `json:"released_units"`
	Reason        string `json:"reason"`
	CancelledAt   string `json:"cancelled_at"`
}
