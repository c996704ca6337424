package model

import "time"

// Event is the read model of an on-sale event as published by the
// catalog service.  The coordinator never mutates events; it consumes
// the queue and booking-window settings to gate its own operations.
//
// Fields:
//  ID                     – primary key identifier.
//  Slug                   – external-facing identifier used in URLs.
//  Name                   – display name of the event.
//  QueueEnabled           – whether entry into booking is demand-gated.
//  QueueBatchSize         – users admitted per processing window.
//  QueueProcessingMinutes – length of the admission window in minutes.
//  MaxTicketsPerBooking   – cap on total quantity across one cart.
//  BookingOpensAt         – start of the booking window.
//  BookingClosesAt        – end of the booking window.
type Event struct {
	ID                     uint64    // events.id
	Slug                   string    // events.slug
	Name                   string    // events.name
	QueueEnabled           bool      // events.queue_enabled
	QueueBatchSize         int       // events.queue_batch_size
	QueueProcessingMinutes int       // events.queue_processing_minutes
	MaxTicketsPerBooking   int       // events.max_tickets_per_booking
	BookingOpensAt         time.Time // events.booking_opens_at
	BookingClosesAt        time.Time // events.booking_closes_at
}

// BookingOpen reports whether the booking window is open at the given
// instant.  The close timestamp is exclusive so an event closing at
// 12:00 rejects a request arriving at exactly 12:00.
func (e *Event) BookingOpen(now time.Time) bool {
	return !now.Before(e.BookingOpensAt) && now.Before(e.BookingClosesAt)
}

// ProcessingWindow returns the admission window as a duration.
func (e *Event) ProcessingWindow() time.Duration {
	return time.Duration(e.QueueProcessingMinutes) * time.Minute
}

// TicketCategory is one sellable inventory bucket of an event.  The
// held and sold counters together with total form the ledger's core
// invariant: held + sold <= total at all times.
//
// Fields:
//  ID         – primary key identifier.
//  EventID    – event this category belongs to.
//  Name       – display name (e.g. "General Admission").
//  PriceCents – unit price in cents.
//  Total      – total sellable units.
//  Held       – units currently committed to carts or pending bookings.
//  Sold       – units materialized into tickets.
type TicketCategory struct {
	ID         uint64 // ticket_categories.id
	EventID    uint64 // ticket_categories.event_id
	Name       string // ticket_categories.name
	PriceCents int64  // ticket_categories.price_cents
	Total      int    // ticket_categories.total
	Held       int    // ticket_categories.held
	Sold       int    // ticket_categories.sold
}

// Available returns the number of units that can still be held.
func (c *TicketCategory) Available() int {
	return c.Total - c.Held - c.Sold
}
