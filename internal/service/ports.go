// Package service implements the coordinator's three core components:
// the queue admission controller, the reservation store and the
// checkout orchestrator.  Services depend on narrow store interfaces
// (implemented by the repository layer) so the state machines can be
// exercised in tests without a database.
package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/venuegate/ticket-admission/internal/model"
)

// EventStore reads the catalog collaborator's tables.
type EventStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Event, error)
	Category(ctx context.Context, id uint64) (*model.TicketCategory, error)
	CategoriesByEvent(ctx context.Context, eventID uint64) ([]model.TicketCategory, error)
	ListQueueGated(ctx context.Context) ([]model.Event, error)
}

// QueueStore persists queue entries.
type QueueStore interface {
	InsertTx(ctx context.Context, tx *sql.Tx, eventID, userID uint64) (*model.QueueEntry, error)
	ActiveEntry(ctx context.Context, eventID, userID uint64) (*model.QueueEntry, error)
	LatestEntry(ctx context.Context, eventID, userID uint64) (*model.QueueEntry, error)
	PositionAhead(ctx context.Context, eventID, seq uint64) (int, error)
	MarkLeftTx(ctx context.Context, tx *sql.Tx, eventID, userID uint64) (int64, error)
	CompleteActiveTx(ctx context.Context, tx *sql.Tx, eventID, userID uint64) (int64, error)
	PromoteBatchTx(ctx context.Context, tx *sql.Tx, eventID uint64, limit int, admittedAt, deadline time.Time) ([]model.QueueEntry, error)
	ExpireOverdueTx(ctx context.Context, tx *sql.Tx, now time.Time) (int64, error)
	CountProcessing(ctx context.Context, eventID uint64) (int, error)
	LastAdmittedAt(ctx context.Context, eventID uint64) (*time.Time, error)
}

// AdmissionStore is the slice of QueueStore the reservation flow
// needs to check the queue gate.
type AdmissionStore interface {
	ActiveEntry(ctx context.Context, eventID, userID uint64) (*model.QueueEntry, error)
}

// InventoryStore is the inventory ledger.
type InventoryStore interface {
	AcquireTx(ctx context.Context, tx *sql.Tx, categoryID uint64, qty int) (bool, int, error)
	ReleaseTx(ctx context.Context, tx *sql.Tx, categoryID uint64, qty int) error
	SellTx(ctx context.Context, tx *sql.Tx, categoryID uint64, qty int) error
	AddToHoldTx(ctx context.Context, tx *sql.Tx, h *model.InventoryHold) error
	SetHoldQuantityTx(ctx context.Context, tx *sql.Tx, holderType string, holderID, categoryID uint64, qty int) error
	DeleteHoldTx(ctx context.Context, tx *sql.Tx, holderType string, holderID, categoryID uint64) (int, error)
	HoldsByHolderTx(ctx context.Context, tx *sql.Tx, holderType string, holderID uint64) ([]model.InventoryHold, error)
	HoldsByHolder(ctx context.Context, holderType string, holderID uint64) ([]model.InventoryHold, error)
	DeleteHoldsByHolderTx(ctx context.Context, tx *sql.Tx, holderType string, holderID uint64) error
	ReassignHolderTx(ctx context.Context, tx *sql.Tx, fromType string, fromID uint64, toType string, toID uint64, expiresAt time.Time) error
	SetHolderExpiryTx(ctx context.Context, tx *sql.Tx, holderType string, holderID uint64, expiresAt time.Time) error
}

// CartStore persists carts and their items.
type CartStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, c *model.Cart) error
	GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Cart, error)
	Get(ctx context.Context, id uint64) (*model.Cart, error)
	ActiveByUserEventTx(ctx context.Context, tx *sql.Tx, userID, eventID uint64) (*model.Cart, error)
	ActiveByUserEvent(ctx context.Context, userID, eventID uint64) (*model.Cart, error)
	ItemsTx(ctx context.Context, tx *sql.Tx, cartID uint64) ([]model.CartItem, error)
	Items(ctx context.Context, cartID uint64) ([]model.CartItem, error)
	GetItemTx(ctx context.Context, tx *sql.Tx, cartID, itemID uint64) (*model.CartItem, error)
	UpsertItemTx(ctx context.Context, tx *sql.Tx, it *model.CartItem) error
	SetItemQuantityTx(ctx context.Context, tx *sql.Tx, itemID uint64, qty int) error
	DeleteItemTx(ctx context.Context, tx *sql.Tx, itemID uint64) error
	TouchTx(ctx context.Context, tx *sql.Tx, cartID uint64, expiresAt time.Time) error
	TransitionTx(ctx context.Context, tx *sql.Tx, cartID uint64, from, to string) (bool, error)
	ExpiredActive(ctx context.Context, now time.Time, limit int) ([]uint64, error)
}

// BookingStore persists bookings, their items and minted tickets.
type BookingStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking, items []model.BookingItem) error
	GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error)
	Get(ctx context.Context, id uint64) (*model.Booking, error)
	ItemsTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]model.BookingItem, error)
	Items(ctx context.Context, bookingID uint64) ([]model.BookingItem, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	ClaimTransaction(ctx context.Context, bookingID uint64, transactionID string) (bool, error)
	TransitionTx(ctx context.Context, tx *sql.Tx, bookingID uint64, toStatus, toPayment string) (bool, error)
	InsertTicketsTx(ctx context.Context, tx *sql.Tx, tickets []model.Ticket) error
	CountTickets(ctx context.Context, bookingID uint64) (int, error)
	StalePending(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error)
}

// Publisher pushes asynchronous updates onto the realtime channel.
// A nil Publisher disables publishing; the channel is a convenience
// transport and the authoritative state stays pollable.
type Publisher interface {
	Publish(ctx context.Context, queueName string, payload any) error
}

// releaseHolderTx releases every hold owned by a cart or booking:
// the category counters move back to available and the hold rows are
// deleted in the same transaction.  Calling it for a holder with no
// remaining holds is a no-op, which makes every release path
// idempotent.  Returns the number of units released.
func releaseHolderTx(ctx context.Context, tx *sql.Tx, inv InventoryStore, holderType string, holderID uint64) (int, error) {
	holds, err := inv.HoldsByHolderTx(ctx, tx, holderType, holderID)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, h := range holds {
		if err := inv.ReleaseTx(ctx, tx, h.CategoryID, h.Quantity); err != nil {
			return released, err
		}
		released += h.Quantity
	}
	if err := inv.DeleteHoldsByHolderTx(ctx, tx, holderType, holderID); err != nil {
		return released, err
	}
	return released, nil
}
