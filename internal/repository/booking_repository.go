package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/venuegate/ticket-admission/internal/model"
)

// BookingRepo provides data access to the bookings, booking_items and
// tickets tables.  Status transitions are guarded UPDATEs keyed on
// the current status so that the client path and the reconciliation
// sweep can both drive a booking to a terminal state without racing
// destructively.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, booking_number, user_id, event_id, cart_id, status,
	payment_status, transaction_id, total_cents, discount_cents, final_cents,
	ticket_count, contact_name, contact_email, created_at, updated_at`

func scanBooking(scan func(dest ...any) error) (*model.Booking, error) {
	var b model.Booking
	var txnID sql.NullString
	if err := scan(&b.ID, &b.BookingNumber, &b.UserID, &b.EventID, &b.CartID, &b.Status,
		&b.PaymentStatus, &txnID, &b.TotalCents, &b.DiscountCents, &b.FinalCents,
		&b.TicketCount, &b.ContactName, &b.ContactEmail, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if txnID.Valid {
		s := txnID.String
		b.TransactionID = &s
	}
	return &b, nil
}

// CreateTx inserts a pending booking together with its frozen items
// and populates the generated ids.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking, items []model.BookingItem) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (booking_number, user_id, event_id, cart_id, status,
		   payment_status, total_cents, discount_cents, final_cents, ticket_count,
		   contact_name, contact_email)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.BookingNumber, b.UserID, b.EventID, b.CartID, b.Status,
		b.PaymentStatus, b.TotalCents, b.DiscountCents, b.FinalCents, b.TicketCount,
		b.ContactName, b.ContactEmail)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	for i := range items {
		items[i].BookingID = b.ID
		res, err := tx.ExecContext(ctx,
			`INSERT INTO booking_items (booking_id, category_id, quantity, unit_price_cents)
			 VALUES (?, ?, ?, ?)`,
			items[i].BookingID, items[i].CategoryID, items[i].Quantity, items[i].UnitPriceCents)
		if err != nil {
			return err
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		items[i].ID = uint64(itemID)
	}
	b.Items = items
	return nil
}

// GetTx loads and locks one booking or returns ErrBookingNotFound.
// Confirmation, abandon and reconciliation all serialize on this row
// lock, which is what keeps the state machine single-writer.
func (r *BookingRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id)
	b, err := scanBooking(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

// Get loads one booking without locking.
func (r *BookingRepo) Get(ctx context.Context, id uint64) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

// ItemsTx lists a booking's frozen items inside a transaction.
func (r *BookingRepo) ItemsTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]model.BookingItem, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, booking_id, category_id, quantity, unit_price_cents
		 FROM booking_items WHERE booking_id = ? ORDER BY id`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.BookingItem
	for rows.Next() {
		var it model.BookingItem
		if err := rows.Scan(&it.ID, &it.BookingID, &it.CategoryID, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Items lists a booking's frozen items on the read path.
func (r *BookingRepo) Items(ctx context.Context, bookingID uint64) ([]model.BookingItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, booking_id, category_id, quantity, unit_price_cents
		 FROM booking_items WHERE booking_id = ? ORDER BY id`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.BookingItem
	for rows.Next() {
		var it model.BookingItem
		if err := rows.Scan(&it.ID, &it.BookingID, &it.CategoryID, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListByUser returns a user's bookings, most recent first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, *b)
	}
	return list, rows.Err()
}

// ClaimTransaction records the gateway transaction id on a booking if
// and only if none is recorded yet.  Returns false when another call
// already claimed it, which is how OpenPaymentTransaction stays
// idempotent per booking.
func (r *BookingRepo) ClaimTransaction(ctx context.Context, bookingID uint64, transactionID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET transaction_id = ?
		 WHERE id = ? AND transaction_id IS NULL AND status = ?`,
		transactionID, bookingID, model.BookingPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// TransitionTx moves a booking out of PENDING into a terminal status,
// writing booking status and payment status in the same statement so
// the two can never be observed diverged.
func (r *BookingRepo) TransitionTx(ctx context.Context, tx *sql.Tx, bookingID uint64, toStatus, toPayment string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, payment_status = ?
		 WHERE id = ? AND status = ?`,
		toStatus, toPayment, bookingID, model.BookingPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// InsertTicketsTx mints tickets for a confirmed booking.
func (r *BookingRepo) InsertTicketsTx(ctx context.Context, tx *sql.Tx, tickets []model.Ticket) error {
	for i := range tickets {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO tickets (booking_id, event_id, category_id, user_id, code)
			 VALUES (?, ?, ?, ?, ?)`,
			tickets[i].BookingID, tickets[i].EventID, tickets[i].CategoryID,
			tickets[i].UserID, tickets[i].Code)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		tickets[i].ID = uint64(id)
	}
	return nil
}

// CountTickets reports how many tickets exist for a booking.  Used by
// tests and diagnostics to assert exactly-once minting.
func (r *BookingRepo) CountTickets(ctx context.Context, bookingID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE booking_id = ?`, bookingID).Scan(&n)
	return n, err
}

// StalePending lists ids of bookings that have sat in PENDING since
// before the cutoff.  The reconciliation sweep resolves each one
// against the gateway in its own transaction.
func (r *BookingRepo) StalePending(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM bookings WHERE status = ? AND created_at <= ? ORDER BY created_at LIMIT ?`,
		model.BookingPending, cutoff.UTC(), limit)
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
