package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/venuegate/ticket-admission/internal/database"
	"github.com/venuegate/ticket-admission/internal/model"
	q "github.com/venuegate/ticket-admission/internal/queue"
	"github.com/venuegate/ticket-admission/internal/repository"
)

// ValidationResult is the outcome of re-checking a cart against the
// ledger.  Errors block checkout; warnings do not.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// CartService is the reservation store.  Every item mutation holds or
// releases ledger inventory in the same transaction that records the
// item, and re-arms the cart's rolling expiry.  Mutations on one cart
// serialize on the cart row lock; concurrent carts only ever contend
// on the ledger's conditional counter updates.
type CartService interface {
	AddItem(ctx context.Context, userID, eventID, categoryID uint64, quantity int) (*model.Cart, error)
	UpdateItem(ctx context.Context, userID, cartID, itemID uint64, quantity int) (*model.Cart, error)
	RemoveItem(ctx context.Context, userID, cartID, itemID uint64) (*model.Cart, error)
	Get(ctx context.Context, userID, cartID uint64) (*model.Cart, error)
	Current(ctx context.Context, userID, eventID uint64) (*model.Cart, error)
	Validate(ctx context.Context, userID, cartID uint64) (*ValidationResult, error)
	// ExpireCarts sweeps lapsed active carts, releasing their holds.
	// Returns the number of carts expired.
	ExpireCarts(ctx context.Context) (int, error)
}

type cartService struct {
	events    EventStore
	admission AdmissionStore
	carts     CartStore
	inventory InventoryStore
	pub       Publisher
	holdTTL   time.Duration
	maxHold   time.Duration
	runTx     func(ctx context.Context, fn func(tx *sql.Tx) error) error
	now       func() time.Time
}

// NewCartService wires the reservation store.  holdTTL is the rolling
// expiry re-armed on every mutation; maxHold is the hard cap measured
// from cart creation beyond which no mutation extends the hold.
func NewCartService(db *sql.DB, events EventStore, admission AdmissionStore, carts CartStore, inventory InventoryStore, pub Publisher, holdTTL, maxHold time.Duration) CartService {
	return &cartService{
		events:    events,
		admission: admission,
		carts:     carts,
		inventory: inventory,
		pub:       pub,
		holdTTL:   holdTTL,
		maxHold:   maxHold,
		runTx: func(ctx context.Context, fn func(tx *sql.Tx) error) error {
			return database.WithTx(ctx, db, fn)
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// nextExpiry re-arms the rolling TTL, clamped so an actively clicking
// user cannot extend the hold past createdAt+maxHold.
func (s *cartService) nextExpiry(createdAt, now time.Time) time.Time {
	exp := now.Add(s.holdTTL)
	if s.maxHold > 0 {
		if cap := createdAt.Add(s.maxHold); exp.After(cap) {
			exp = cap
		}
	}
	return exp
}

func (s *cartService) AddItem(ctx context.Context, userID, eventID, categoryID uint64, quantity int) (*model.Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	now := s.now()
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ev.BookingOpen(now) {
		return nil, ErrBookingWindowClosed
	}
	if ev.QueueEnabled {
		entry, err := s.admission.ActiveEntry(ctx, eventID, userID)
		if err != nil {
			if errors.Is(err, repository.ErrEntryNotFound) {
				return nil, ErrAdmissionRequired
			}
			return nil, err
		}
		if !entry.CanProceed(now) {
			return nil, ErrAdmissionRequired
		}
	}
	cat, err := s.events.Category(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if cat.EventID != eventID {
		return nil, repository.ErrCategoryNotFound
	}

	var cartID uint64
	err = s.runTx(ctx, func(tx *sql.Tx) error {
		cart, err := s.carts.ActiveByUserEventTx(ctx, tx, userID, eventID)
		switch {
		case err == nil:
			// A lapsed cart is expired in place before the new hold
			// is attempted, so its inventory is back in the pool.
			if cart.Expired(now) {
				if err := s.expireCartTx(ctx, tx, cart); err != nil {
					return err
				}
				cart = nil
			}
		case errors.Is(err, repository.ErrCartNotFound):
			cart = nil
		default:
			return err
		}
		if cart == nil {
			cart = &model.Cart{
				UserID:    userID,
				EventID:   eventID,
				Status:    model.CartActive,
				ExpiresAt: now.Add(s.holdTTL),
				CreatedAt: now,
			}
			if err := s.carts.CreateTx(ctx, tx, cart); err != nil {
				return err
			}
		}

		items, err := s.carts.ItemsTx(ctx, tx, cart.ID)
		if err != nil {
			return err
		}
		total := quantity
		for _, it := range items {
			total += it.Quantity
		}
		if ev.MaxTicketsPerBooking > 0 && total > ev.MaxTicketsPerBooking {
			return ErrMaxTicketsExceeded
		}

		acquired, available, err := s.inventory.AcquireTx(ctx, tx, categoryID, quantity)
		if err != nil {
			return err
		}
		if !acquired {
			return &AvailabilityError{CategoryID: categoryID, Requested: quantity, Available: available}
		}

		expiresAt := s.nextExpiry(cart.CreatedAt, now)
		hold := &model.InventoryHold{
			CategoryID: categoryID,
			Quantity:   quantity,
			HolderType: model.HolderCart,
			HolderID:   cart.ID,
			Token:      uuid.NewString(),
			ExpiresAt:  expiresAt,
		}
		if err := s.inventory.AddToHoldTx(ctx, tx, hold); err != nil {
			return err
		}
		if err := s.carts.UpsertItemTx(ctx, tx, &model.CartItem{
			CartID:         cart.ID,
			CategoryID:     categoryID,
			Quantity:       quantity,
			UnitPriceCents: cat.PriceCents,
		}); err != nil {
			return err
		}
		if err := s.carts.TouchTx(ctx, tx, cart.ID, expiresAt); err != nil {
			return err
		}
		if err := s.inventory.SetHolderExpiryTx(ctx, tx, model.HolderCart, cart.ID, expiresAt); err != nil {
			return err
		}
		cartID = cart.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, cartID)
}

func (s *cartService) UpdateItem(ctx context.Context, userID, cartID, itemID uint64, quantity int) (*model.Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	now := s.now()
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		cart, err := s.liveCartTx(ctx, tx, userID, cartID, now)
		if err != nil {
			return err
		}
		item, err := s.carts.GetItemTx(ctx, tx, cartID, itemID)
		if err != nil {
			return err
		}
		delta := quantity - item.Quantity
		if delta > 0 {
			ev, err := s.events.GetByID(ctx, cart.EventID)
			if err != nil {
				return err
			}
			// Increases acquire fresh inventory and are gated by the
			// window; decreases only hand units back and stay allowed.
			if !ev.BookingOpen(now) {
				return ErrBookingWindowClosed
			}
			items, err := s.carts.ItemsTx(ctx, tx, cartID)
			if err != nil {
				return err
			}
			total := delta
			for _, it := range items {
				total += it.Quantity
			}
			if ev.MaxTicketsPerBooking > 0 && total > ev.MaxTicketsPerBooking {
				return ErrMaxTicketsExceeded
			}
			acquired, available, err := s.inventory.AcquireTx(ctx, tx, item.CategoryID, delta)
			if err != nil {
				return err
			}
			if !acquired {
				// Rolling back leaves the item untouched: the
				// increase either applies fully or not at all.
				return &AvailabilityError{CategoryID: item.CategoryID, Requested: delta, Available: available}
			}
		} else if delta < 0 {
			if err := s.inventory.ReleaseTx(ctx, tx, item.CategoryID, -delta); err != nil {
				return err
			}
		}
		if err := s.carts.SetItemQuantityTx(ctx, tx, itemID, quantity); err != nil {
			return err
		}
		if err := s.inventory.SetHoldQuantityTx(ctx, tx, model.HolderCart, cartID, item.CategoryID, quantity); err != nil {
			return err
		}
		return s.touchTx(ctx, tx, cart, now)
	})
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, cartID)
}

func (s *cartService) RemoveItem(ctx context.Context, userID, cartID, itemID uint64) (*model.Cart, error) {
	now := s.now()
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		cart, err := s.liveCartTx(ctx, tx, userID, cartID, now)
		if err != nil {
			return err
		}
		item, err := s.carts.GetItemTx(ctx, tx, cartID, itemID)
		if err != nil {
			return err
		}
		qty, err := s.inventory.DeleteHoldTx(ctx, tx, model.HolderCart, cartID, item.CategoryID)
		if err != nil {
			return err
		}
		if qty > 0 {
			if err := s.inventory.ReleaseTx(ctx, tx, item.CategoryID, qty); err != nil {
				return err
			}
		}
		if err := s.carts.DeleteItemTx(ctx, tx, itemID); err != nil {
			return err
		}
		// An emptied cart stays active so expiry remains the single
		// cleanup path.
		return s.touchTx(ctx, tx, cart, now)
	})
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, cartID)
}

func (s *cartService) Get(ctx context.Context, userID, cartID uint64) (*model.Cart, error) {
	cart, err := s.snapshot(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.UserID != userID {
		return nil, repository.ErrForbidden
	}
	return cart, nil
}

func (s *cartService) Current(ctx context.Context, userID, eventID uint64) (*model.Cart, error) {
	cart, err := s.carts.ActiveByUserEvent(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, cart.ID)
}

func (s *cartService) Validate(ctx context.Context, userID, cartID uint64) (*ValidationResult, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.UserID != userID {
		return nil, repository.ErrForbidden
	}
	res := &ValidationResult{}
	now := s.now()
	if cart.Status != model.CartActive {
		res.Errors = append(res.Errors, "cart is no longer active")
	} else if cart.Expired(now) {
		res.Errors = append(res.Errors, "cart hold has expired")
	}
	items, err := s.carts.Items(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		res.Errors = append(res.Errors, "cart has no items")
	}
	holds, err := s.inventory.HoldsByHolder(ctx, model.HolderCart, cartID)
	if err != nil {
		return nil, err
	}
	heldByCategory := make(map[uint64]int, len(holds))
	for _, h := range holds {
		heldByCategory[h.CategoryID] = h.Quantity
	}
	for _, it := range items {
		if heldByCategory[it.CategoryID] != it.Quantity {
			res.Errors = append(res.Errors,
				fmt.Sprintf("hold for category %d no longer covers the requested quantity", it.CategoryID))
			continue
		}
		cat, err := s.events.Category(ctx, it.CategoryID)
		if err != nil {
			return nil, err
		}
		if cat.PriceCents != it.UnitPriceCents {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("price for category %d changed since it was added", it.CategoryID))
		}
	}
	res.IsValid = len(res.Errors) == 0
	return res, nil
}

func (s *cartService) ExpireCarts(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.carts.ExpiredActive(ctx, now, 200)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, id := range ids {
		err := s.runTx(ctx, func(tx *sql.Tx) error {
			cart, err := s.carts.GetTx(ctx, tx, id)
			if err != nil {
				return err
			}
			// Re-check under lock: a checkout may have converted the
			// cart between the scan and now.
			if cart.Status != model.CartActive || !cart.Expired(now) {
				return nil
			}
			return s.expireCartTx(ctx, tx, cart)
		})
		if err != nil {
			log.Printf("cart: expiry of cart %d failed: %v", id, err)
			continue
		}
		expired++
	}
	return expired, nil
}

// expireCartTx transitions a cart to expired and releases its holds
// in one transaction, so there is no window where the inventory is
// neither held nor available.
func (s *cartService) expireCartTx(ctx context.Context, tx *sql.Tx, cart *model.Cart) error {
	ok, err := s.carts.TransitionTx(ctx, tx, cart.ID, model.CartActive, model.CartExpired)
	if err != nil {
		return err
	}
	if !ok {
		// Another path already resolved the cart; its holds are that
		// path's responsibility.
		return nil
	}
	released, err := releaseHolderTx(ctx, tx, s.inventory, model.HolderCart, cart.ID)
	if err != nil {
		return err
	}
	if s.pub != nil {
		payload := q.CartExpiredEvent{
			CartID:        cart.ID,
			UserID:        cart.UserID,
			EventID:       cart.EventID,
			ReleasedUnits: released,
			ExpiredAt:     s.now().Format(time.RFC3339),
		}
		if err := s.pub.Publish(ctx, q.CartExpiredQueue, payload); err != nil {
			log.Printf("cart: publish expired event failed: %v", err)
		}
	}
	return nil
}

// liveCartTx loads and locks a cart for mutation, enforcing ownership
// and derived expiry.  A lapsed cart fails the mutation closed; the
// actual status flip and hold release stay with the sweep (or with
// AddItem, which expires in place before re-acquiring) so the error
// return cannot roll back the cleanup.
func (s *cartService) liveCartTx(ctx context.Context, tx *sql.Tx, userID, cartID uint64, now time.Time) (*model.Cart, error) {
	cart, err := s.carts.GetTx(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.UserID != userID {
		return nil, repository.ErrForbidden
	}
	if cart.Status != model.CartActive {
		return nil, ErrCartInvalid
	}
	if cart.Expired(now) {
		return nil, ErrCartExpired
	}
	return cart, nil
}

// touchTx re-arms the cart's rolling expiry and mirrors it onto the
// hold rows.
func (s *cartService) touchTx(ctx context.Context, tx *sql.Tx, cart *model.Cart, now time.Time) error {
	expiresAt := s.nextExpiry(cart.CreatedAt, now)
	if err := s.carts.TouchTx(ctx, tx, cart.ID, expiresAt); err != nil {
		return err
	}
	return s.inventory.SetHolderExpiryTx(ctx, tx, model.HolderCart, cart.ID, expiresAt)
}

// snapshot returns the cart with items, reporting derived expiry in
// the status so clients never see a stale ACTIVE on a lapsed cart.
func (s *cartService) snapshot(ctx context.Context, cartID uint64) (*model.Cart, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	items, err := s.carts.Items(ctx, cartID)
	if err != nil {
		return nil, err
	}
	cart.Items = items
	if cart.Status == model.CartActive && cart.Expired(s.now()) {
		cart.Status = model.CartExpired
	}
	return cart, nil
}
