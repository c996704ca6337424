package model

import "time"

// Cart statuses.  Only an active cart may be mutated or checked out.
const (
	CartActive    = "ACTIVE"
	CartConverted = "CONVERTED"
	CartAbandoned = "ABANDONED"
	CartExpired   = "EXPIRED"
)

// Cart is a user's in-progress reservation against exactly one event.
// Every item in the cart is backed by an inventory hold of the same
// quantity; the two are created and released in the same transaction.
//
// Expiry is derived: a cart whose ExpiresAt has passed is expired for
// all purposes even if no sweep has updated the status column yet.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the cart.
//  EventID   – event being reserved.
//  Status    – one of the Cart* constants.
//  ExpiresAt – rolling hold expiration, clamped to a hard cap.
//  CreatedAt – creation timestamp (anchor for the hard cap).
//  UpdatedAt – last mutation timestamp.
//  Items     – line items, loaded on demand.
type Cart struct {
	ID        uint64     // carts.id
	UserID    uint64     // carts.user_id
	EventID   uint64     // carts.event_id
	Status    string     // carts.status
	ExpiresAt time.Time  // carts.expires_at
	CreatedAt time.Time  // carts.created_at
	UpdatedAt time.Time  // carts.updated_at
	Items     []CartItem //
}

// Expired reports whether the cart's hold has lapsed.  A cart whose
// expiry equals now exactly is treated as expired (fail-closed).
func (c *Cart) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Live reports whether the cart is active and unexpired at the given
// instant.  Read paths must use this rather than the status column
// alone.
func (c *Cart) Live(now time.Time) bool {
	return c.Status == CartActive && !c.Expired(now)
}

// TotalQuantity sums the quantities of all loaded items.
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, it := range c.Items {
		total += it.Quantity
	}
	return total
}

// TotalCents sums the subtotals of all loaded items.
func (c *Cart) TotalCents() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.Subtotal()
	}
	return total
}

// CartItem is one category line within a cart.  The unit price is a
// snapshot taken when the item was added; Validate surfaces a warning
// when the catalog price has since moved.
//
// Fields:
//  ID             – primary key identifier.
//  CartID         – owning cart.
//  CategoryID     – ticket category being held.
//  Quantity       – units held.
//  UnitPriceCents – price snapshot at add time.
//  CreatedAt      – creation timestamp.
type CartItem struct {
	ID             uint64    // cart_items.id
	CartID         uint64    // cart_items.cart_id
	CategoryID     uint64    // cart_items.category_id
	Quantity       int       // cart_items.quantity
	UnitPriceCents int64     // cart_items.unit_price_cents
	CreatedAt      time.Time // cart_items.created_at
}

// Subtotal returns quantity times the snapshotted unit price.
func (i *CartItem) Subtotal() int64 {
	return int64(i.Quantity) * i.UnitPriceCents
}
