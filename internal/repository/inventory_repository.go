package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/venuegate/ticket-admission/internal/model"
)

// InventoryRepo is the inventory ledger: per-category counters on
// ticket_categories plus inventory_holds rows tying committed units
// to their owning cart or booking.
//
// Every counter movement is a single conditional UPDATE so that
// concurrent acquisitions of the last unit can never both succeed.
// Read-then-write sequences are never used for counters.  All methods
// operate inside a caller-supplied transaction because a counter
// movement is only valid together with the hold-row change that
// explains it.
type InventoryRepo struct {
	db *sql.DB
}

// NewInventoryRepo returns an InventoryRepo bound to the provided
// database.
func NewInventoryRepo(db *sql.DB) *InventoryRepo { return &InventoryRepo{db: db} }

// AcquireTx attempts to move qty units of a category from available
// to held.  It returns acquired=false with the remaining availability
// when the category cannot satisfy the request; the caller uses the
// count to tell the user what changed.
func (r *InventoryRepo) AcquireTx(ctx context.Context, tx *sql.Tx, categoryID uint64, qty int) (acquired bool, available int, err error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE ticket_categories
		 SET held = held + ?
		 WHERE id = ? AND total - held - sold >= ?`,
		qty, categoryID, qty)
	if err != nil {
		return false, 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, 0, err
	}
	if n == 1 {
		return true, 0, nil
	}
	// Condition failed; report what is actually left.
	err = tx.QueryRowContext(ctx,
		`SELECT total - held - sold FROM ticket_categories WHERE id = ?`,
		categoryID).Scan(&available)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, 0, ErrCategoryNotFound
		}
		return false, 0, err
	}
	return false, available, nil
}

// ReleaseTx moves qty units of a category from held back to
// available.  A guard on the held counter turns a double release into
// ErrLedgerUnderflow instead of a silently negative counter; callers
// prevent double release structurally by deleting the hold row in the
// same transaction.
func (r *InventoryRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, categoryID uint64, qty int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE ticket_categories SET held = held - ? WHERE id = ? AND held >= ?`,
		qty, categoryID, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLedgerUnderflow
	}
	return nil
}

// SellTx converts qty held units of a category into sold units.  The
// held guard keeps the held+sold <= total invariant intact even if a
// confirmation raced a release.
func (r *InventoryRepo) SellTx(ctx context.Context, tx *sql.Tx, categoryID uint64, qty int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE ticket_categories
		 SET held = held - ?, sold = sold + ?
		 WHERE id = ? AND held >= ?`,
		qty, qty, categoryID, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLedgerUnderflow
	}
	return nil
}

// AddToHoldTx records qty additional units against the holder's hold
// on a category, creating the hold row if none exists.  The unique
// key on (holder_type, holder_id, category_id) keeps one row per
// owner and category.
func (r *InventoryRepo) AddToHoldTx(ctx context.Context, tx *sql.Tx, h *model.InventoryHold) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO inventory_holds (category_id, quantity, holder_type, holder_id, token, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity), expires_at = VALUES(expires_at)`,
		h.CategoryID, h.Quantity, h.HolderType, h.HolderID, h.Token, h.ExpiresAt.UTC())
	return err
}

// SetHoldQuantityTx overwrites the holder's held quantity for one
// category.  Used by item updates after the counter delta has been
// applied.
func (r *InventoryRepo) SetHoldQuantityTx(ctx context.Context, tx *sql.Tx, holderType string, holderID, categoryID uint64, qty int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE inventory_holds SET quantity = ?
		 WHERE holder_type = ? AND holder_id = ? AND category_id = ?`,
		qty, holderType, holderID, categoryID)
	return err
}

// DeleteHoldTx removes the holder's hold row for one category and
// returns the quantity it carried.  Returns (0, nil) when no such
// hold exists, which is what makes single-item release idempotent.
func (r *InventoryRepo) DeleteHoldTx(ctx context.Context, tx *sql.Tx, holderType string, holderID, categoryID uint64) (int, error) {
	var qty int
	err := tx.QueryRowContext(ctx,
		`SELECT quantity FROM inventory_holds
		 WHERE holder_type = ? AND holder_id = ? AND category_id = ? FOR UPDATE`,
		holderType, holderID, categoryID).Scan(&qty)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM inventory_holds
		 WHERE holder_type = ? AND holder_id = ? AND category_id = ?`,
		holderType, holderID, categoryID)
	return qty, err
}

// HoldsByHolderTx loads and locks every hold row owned by a cart or
// booking.  The returned rows drive counter releases or conversions;
// locking them serializes racing release paths so only one of them
// sees the rows.
func (r *InventoryRepo) HoldsByHolderTx(ctx context.Context, tx *sql.Tx, holderType string, holderID uint64) ([]model.InventoryHold, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, category_id, quantity, holder_type, holder_id, token, expires_at, created_at
		 FROM inventory_holds WHERE holder_type = ? AND holder_id = ? FOR UPDATE`,
		holderType, holderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var holds []model.InventoryHold
	for rows.Next() {
		var h model.InventoryHold
		if err := rows.Scan(&h.ID, &h.CategoryID, &h.Quantity, &h.HolderType, &h.HolderID,
			&h.Token, &h.ExpiresAt, &h.CreatedAt); err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

// HoldsByHolder is the read-path variant of HoldsByHolderTx, used by
// cart validation.  No locks are taken.
func (r *InventoryRepo) HoldsByHolder(ctx context.Context, holderType string, holderID uint64) ([]model.InventoryHold, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category_id, quantity, holder_type, holder_id, token, expires_at, created_at
		 FROM inventory_holds WHERE holder_type = ? AND holder_id = ?`,
		holderType, holderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var holds []model.InventoryHold
	for rows.Next() {
		var h model.InventoryHold
		if err := rows.Scan(&h.ID, &h.CategoryID, &h.Quantity, &h.HolderType, &h.HolderID,
			&h.Token, &h.ExpiresAt, &h.CreatedAt); err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

// DeleteHoldsByHolderTx removes every hold row owned by a cart or
// booking.  Safe to call when none remain.
func (r *InventoryRepo) DeleteHoldsByHolderTx(ctx context.Context, tx *sql.Tx, holderType string, holderID uint64) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM inventory_holds WHERE holder_type = ? AND holder_id = ?`,
		holderType, holderID)
	return err
}

// ReassignHolderTx moves every hold of one owner to another, stamping
// a new expiry.  Used at checkout start when holds pass from the cart
// to its pending booking.
func (r *InventoryRepo) ReassignHolderTx(ctx context.Context, tx *sql.Tx, fromType string, fromID uint64, toType string, toID uint64, expiresAt time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE inventory_holds SET holder_type = ?, holder_id = ?, expires_at = ?
		 WHERE holder_type = ? AND holder_id = ?`,
		toType, toID, expiresAt.UTC(), fromType, fromID)
	return err
}

// SetHolderExpiryTx re-stamps the expiry on every hold of one owner.
// Cart mutations call this so hold rows always mirror the cart's
// rolling deadline.
func (r *InventoryRepo) SetHolderExpiryTx(ctx context.Context, tx *sql.Tx, holderType string, holderID uint64, expiresAt time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE inventory_holds SET expires_at = ? WHERE holder_type = ? AND holder_id = ?`,
		expiresAt.UTC(), holderType, holderID)
	return err
}
