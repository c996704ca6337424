package model

import "time"

// Hold holder types.  A hold is first owned by a cart and reassigned
// to the booking when checkout begins, so release paths always find
// it under exactly one owner.
const (
	HolderCart    = "CART"
	HolderBooking = "BOOKING"
)

// InventoryHold records capacity committed to a cart or pending
// booking.  The quantity here mirrors the held counter movement on
// the category row; deleting the hold and decrementing the counter
// happen in the same transaction, which is what makes release
// idempotent: a holder with no remaining hold rows releases nothing.
//
// Fields:
//  ID         – primary key identifier.
//  CategoryID – category whose units are committed.
//  Quantity   – units committed.
//  HolderType – HolderCart or HolderBooking.
//  HolderID   – id of the owning cart or booking.
//  Token      – opaque token for diagnostics and client correlation.
//  ExpiresAt  – mirror of the owner's deadline, used by sweeps.
//  CreatedAt  – creation timestamp.
type InventoryHold struct {
	ID         uint64    // inventory_holds.id
	CategoryID uint64    // inventory_holds.category_id
	Quantity   int       // inventory_holds.quantity
	HolderType string    // inventory_holds.holder_type
	HolderID   uint64    // inventory_holds.holder_id
	Token      string    // inventory_holds.token
	ExpiresAt  time.Time // inventory_holds.expires_at
	CreatedAt  time.Time // inventory_holds.created_at
}
