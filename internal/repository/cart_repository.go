package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/venuegate/ticket-admission/internal/model"
)

// CartRepo provides data access to the carts and cart_items tables.
// Mutations against one cart are serialized by loading the cart row
// FOR UPDATE inside the caller's transaction, so two tabs of the same
// user cannot double-spend a hold.  All timestamps are UTC.
type CartRepo struct {
	db *sql.DB
}

// NewCartRepo returns a CartRepo bound to the provided database.
func NewCartRepo(db *sql.DB) *CartRepo { return &CartRepo{db: db} }

const cartColumns = `id, user_id, event_id, status, expires_at, created_at, updated_at`

func scanCart(scan func(dest ...any) error) (*model.Cart, error) {
	var c model.Cart
	if err := scan(&c.ID, &c.UserID, &c.EventID, &c.Status, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateTx inserts a new active cart and populates its id.
func (r *CartRepo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Cart) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO carts (user_id, event_id, status, expires_at) VALUES (?, ?, ?, ?)`,
		c.UserID, c.EventID, c.Status, c.ExpiresAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// GetTx loads and locks one cart or returns ErrCartNotFound.  Every
// cart mutation starts here; the row lock is the per-cart
// serialization point.
func (r *CartRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Cart, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE id = ? FOR UPDATE`, id)
	c, err := scanCart(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}
	return c, nil
}

// Get loads one cart without locking, for read paths.
func (r *CartRepo) Get(ctx context.Context, id uint64) (*model.Cart, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE id = ?`, id)
	c, err := scanCart(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}
	return c, nil
}

// ActiveByUserEventTx loads and locks the user's active cart for an
// event, or returns ErrCartNotFound.  Status is checked on the
// column only; the caller applies derived expiry.
func (r *CartRepo) ActiveByUserEventTx(ctx context.Context, tx *sql.Tx, userID, eventID uint64) (*model.Cart, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+cartColumns+` FROM carts
		 WHERE user_id = ? AND event_id = ? AND status = ?
		 ORDER BY id DESC LIMIT 1 FOR UPDATE`,
		userID, eventID, model.CartActive)
	c, err := scanCart(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}
	return c, nil
}

// ActiveByUserEvent is the read-path variant of ActiveByUserEventTx.
func (r *CartRepo) ActiveByUserEvent(ctx context.Context, userID, eventID uint64) (*model.Cart, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+cartColumns+` FROM carts
		 WHERE user_id = ? AND event_id = ? AND status = ?
		 ORDER BY id DESC LIMIT 1`,
		userID, eventID, model.CartActive)
	c, err := scanCart(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}
	return c, nil
}

const itemColumns = `id, cart_id, category_id, quantity, unit_price_cents, created_at`

func collectItems(rows *sql.Rows) ([]model.CartItem, error) {
	defer rows.Close()
	var items []model.CartItem
	for rows.Next() {
		var it model.CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.CategoryID, &it.Quantity, &it.UnitPriceCents, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ItemsTx lists a cart's items inside a transaction.
func (r *CartRepo) ItemsTx(ctx context.Context, tx *sql.Tx, cartID uint64) ([]model.CartItem, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM cart_items WHERE cart_id = ? ORDER BY id`, cartID)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

// Items lists a cart's items on the read path.
func (r *CartRepo) Items(ctx context.Context, cartID uint64) ([]model.CartItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM cart_items WHERE cart_id = ? ORDER BY id`, cartID)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

// GetItemTx fetches one item of a cart or ErrItemNotFound.
func (r *CartRepo) GetItemTx(ctx context.Context, tx *sql.Tx, cartID, itemID uint64) (*model.CartItem, error) {
	var it model.CartItem
	err := tx.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM cart_items WHERE id = ? AND cart_id = ?`,
		itemID, cartID).
		Scan(&it.ID, &it.CartID, &it.CategoryID, &it.Quantity, &it.UnitPriceCents, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &it, nil
}

// UpsertItemTx adds quantity to the cart's line for a category,
// creating the line with the given price snapshot when it does not
// exist.  An existing line keeps its original snapshot.
func (r *CartRepo) UpsertItemTx(ctx context.Context, tx *sql.Tx, it *model.CartItem) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO cart_items (cart_id, category_id, quantity, unit_price_cents)
		 VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)`,
		it.CartID, it.CategoryID, it.Quantity, it.UnitPriceCents)
	return err
}

// SetItemQuantityTx overwrites one item's quantity.
func (r *CartRepo) SetItemQuantityTx(ctx context.Context, tx *sql.Tx, itemID uint64, qty int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE cart_items SET quantity = ? WHERE id = ?`, qty, itemID)
	return err
}

// DeleteItemTx removes one item row.
func (r *CartRepo) DeleteItemTx(ctx context.Context, tx *sql.Tx, itemID uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE id = ?`, itemID)
	return err
}

// TouchTx re-arms the cart's expiry after a successful mutation.
func (r *CartRepo) TouchTx(ctx context.Context, tx *sql.Tx, cartID uint64, expiresAt time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE carts SET expires_at = ? WHERE id = ?`, expiresAt.UTC(), cartID)
	return err
}

// TransitionTx moves a cart from one status to another.  The guard on
// the current status makes racing transitions converge: whichever
// path runs second affects zero rows and reports false.
func (r *CartRepo) TransitionTx(ctx context.Context, tx *sql.Tx, cartID uint64, from, to string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE carts SET status = ? WHERE id = ? AND status = ?`,
		to, cartID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ExpiredActive lists ids of active carts whose expiry has passed.
// The sweep processes each id in its own transaction so one poisoned
// cart cannot wedge the whole pass.
func (r *CartRepo) ExpiredActive(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM carts WHERE status = ? AND expires_at <= ? ORDER BY expires_at LIMIT ?`,
		model.CartActive, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
