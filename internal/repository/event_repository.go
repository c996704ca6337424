package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/venuegate/ticket-admission/internal/model"
)

// EventRepo provides read access to the catalog tables (events and
// ticket_categories).  The coordinator treats the catalog as an
// external collaborator: rows are written by the catalog service and
// only the inventory counters on ticket_categories are mutated here
// (through InventoryRepo).
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns an EventRepo bound to the provided database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying handle so callers can begin transactions
// that span multiple repositories.
func (r *EventRepo) DB() *sql.DB { return r.db }

const eventColumns = `id, slug, name, queue_enabled, queue_batch_size,
	queue_processing_minutes, max_tickets_per_booking,
	booking_opens_at, booking_closes_at`

func scanEvent(row *sql.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Slug, &e.Name, &e.QueueEnabled, &e.QueueBatchSize,
		&e.QueueProcessingMinutes, &e.MaxTicketsPerBooking,
		&e.BookingOpensAt, &e.BookingClosesAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &e, nil
}

// GetByID fetches a single event or ErrEventNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	return scanEvent(row)
}

// ListQueueGated returns all events with the virtual queue enabled.
// The admission sweep iterates this set every cycle.
func (r *EventRepo) ListQueueGated(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE queue_enabled = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Slug, &e.Name, &e.QueueEnabled, &e.QueueBatchSize,
			&e.QueueProcessingMinutes, &e.MaxTicketsPerBooking,
			&e.BookingOpensAt, &e.BookingClosesAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Category fetches one ticket category or ErrCategoryNotFound.
func (r *EventRepo) Category(ctx context.Context, id uint64) (*model.TicketCategory, error) {
	var c model.TicketCategory
	err := r.db.QueryRowContext(ctx,
		`SELECT id, event_id, name, price_cents, total, held, sold
		 FROM ticket_categories WHERE id = ?`, id).
		Scan(&c.ID, &c.EventID, &c.Name, &c.PriceCents, &c.Total, &c.Held, &c.Sold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CategoriesByEvent lists an event's categories with their current
// counters.  Used by the public availability endpoint and by cart
// validation; callers must treat the counters as a point-in-time
// snapshot, never as a reservation.
func (r *EventRepo) CategoriesByEvent(ctx context.Context, eventID uint64) ([]model.TicketCategory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, name, price_cents, total, held, sold
		 FROM ticket_categories WHERE event_id = ? ORDER BY id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cats []model.TicketCategory
	for rows.Next() {
		var c model.TicketCategory
		if err := rows.Scan(&c.ID, &c.EventID, &c.Name, &c.PriceCents, &c.Total, &c.Held, &c.Sold); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}
