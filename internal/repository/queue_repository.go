package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/venuegate/ticket-admission/internal/model"
)

// QueueRepo provides data access to the queue_entries table.  The
// auto-increment primary key doubles as the FIFO sequence number, so
// position-in-line queries reduce to counting live entries with a
// smaller id.  The table carries a generated column that is 1 for
// live entries and NULL otherwise, with a unique index over
// (event_id, user_id, live) enforcing the one-live-entry invariant at
// the storage layer.
type QueueRepo struct {
	db *sql.DB
}

// NewQueueRepo returns a QueueRepo bound to the provided database.
func NewQueueRepo(db *sql.DB) *QueueRepo { return &QueueRepo{db: db} }

const entryColumns = `id, event_id, user_id, status, admitted_at, processing_deadline, created_at`

func scanEntry(scan func(dest ...any) error) (*model.QueueEntry, error) {
	var e model.QueueEntry
	var admitted, deadline sql.NullTime
	if err := scan(&e.ID, &e.EventID, &e.UserID, &e.Status, &admitted, &deadline, &e.CreatedAt); err != nil {
		return nil, err
	}
	if admitted.Valid {
		t := admitted.Time
		e.AdmittedAt = &t
	}
	if deadline.Valid {
		t := deadline.Time
		e.ProcessingDeadline = &t
	}
	return &e, nil
}

// InsertTx appends a new waiting entry at the tail of an event's
// queue.  Returns ErrActiveEntryExists when the user already has a
// live entry for the event (duplicate key on the uniqueness index).
func (r *QueueRepo) InsertTx(ctx context.Context, tx *sql.Tx, eventID, userID uint64) (*model.QueueEntry, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO queue_entries (event_id, user_id, status) VALUES (?, ?, ?)`,
		eventID, userID, model.QueueWaiting)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return nil, ErrActiveEntryExists
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.QueueEntry{
		ID:        uint64(id),
		EventID:   eventID,
		UserID:    userID,
		Status:    model.QueueWaiting,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// ActiveEntry returns the user's live (waiting or processing) entry
// for an event, or ErrEntryNotFound.
func (r *QueueRepo) ActiveEntry(ctx context.Context, eventID, userID uint64) (*model.QueueEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM queue_entries
		 WHERE event_id = ? AND user_id = ? AND status IN (?, ?)`,
		eventID, userID, model.QueueWaiting, model.QueueProcessing)
	e, err := scanEntry(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

// LatestEntry returns the user's most recent entry for an event
// regardless of status, or ErrEntryNotFound.  Position reads use it
// so a just-expired user sees their terminal status instead of a 404.
func (r *QueueRepo) LatestEntry(ctx context.Context, eventID, userID uint64) (*model.QueueEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM queue_entries
		 WHERE event_id = ? AND user_id = ? ORDER BY id DESC LIMIT 1`,
		eventID, userID)
	e, err := scanEntry(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

// PositionAhead counts live entries that joined before the given
// sequence number.  Zero means the entry is first in line.
func (r *QueueRepo) PositionAhead(ctx context.Context, eventID, seq uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queue_entries
		 WHERE event_id = ? AND id < ? AND status IN (?, ?)`,
		eventID, seq, model.QueueWaiting, model.QueueProcessing).Scan(&n)
	return n, err
}

// MarkLeftTx transitions the user's live entry to LEFT.  Returns the
// number of rows changed; zero means the entry was already terminal
// or absent, which callers treat as success (Leave is idempotent).
func (r *QueueRepo) MarkLeftTx(ctx context.Context, tx *sql.Tx, eventID, userID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE queue_entries SET status = ?
		 WHERE event_id = ? AND user_id = ? AND status IN (?, ?)`,
		model.QueueLeft, eventID, userID, model.QueueWaiting, model.QueueProcessing)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CompleteActiveTx transitions the user's live entry to COMPLETED
// when they reach checkout.  Zero rows affected is not an error: the
// event may not be queue-gated, or the sweep may have expired the
// entry between admission and checkout.
func (r *QueueRepo) CompleteActiveTx(ctx context.Context, tx *sql.Tx, eventID, userID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE queue_entries SET status = ?
		 WHERE event_id = ? AND user_id = ? AND status IN (?, ?)`,
		model.QueueCompleted, eventID, userID, model.QueueWaiting, model.QueueProcessing)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PromoteBatchTx promotes up to limit oldest waiting entries of an
// event to PROCESSING, stamping the admission time and deadline.  It
// locks the candidate rows first so concurrent sweep runs cannot
// promote the same entry twice, then returns the promoted entries for
// notification publishing.
func (r *QueueRepo) PromoteBatchTx(ctx context.Context, tx *sql.Tx, eventID uint64, limit int, admittedAt, deadline time.Time) ([]model.QueueEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM queue_entries
		 WHERE event_id = ? AND status = ?
		 ORDER BY id LIMIT ? FOR UPDATE`,
		eventID, model.QueueWaiting, limit)
	if err != nil {
		return nil, err
	}
	var batch []model.QueueEntry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, err
		}
		batch = append(batch, *e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(batch) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(batch))
	args := []any{model.QueueProcessing, admittedAt.UTC(), deadline.UTC()}
	for i := range batch {
		ids = append(ids, "?")
		args = append(args, batch[i].ID)
	}
	query := fmt.Sprintf(
		`UPDATE queue_entries SET status = ?, admitted_at = ?, processing_deadline = ?
		 WHERE id IN (%s)`, strings.Join(ids, ","))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	at := admittedAt.UTC()
	dl := deadline.UTC()
	for i := range batch {
		batch[i].Status = model.QueueProcessing
		batch[i].AdmittedAt = &at
		batch[i].ProcessingDeadline = &dl
	}
	return batch, nil
}

// ExpireOverdueTx flips every PROCESSING entry whose deadline has
// passed to EXPIRED, freeing its admission slot.  The comparison is
// inclusive so a deadline equal to now expires.
func (r *QueueRepo) ExpireOverdueTx(ctx context.Context, tx *sql.Tx, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE queue_entries SET status = ?
		 WHERE status = ? AND processing_deadline <= ?`,
		model.QueueExpired, model.QueueProcessing, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountProcessing counts an event's entries currently inside the
// admission window.  The admission sweep subtracts this from the
// batch size to size the next promotion.
func (r *QueueRepo) CountProcessing(ctx context.Context, eventID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queue_entries WHERE event_id = ? AND status = ?`,
		eventID, model.QueueProcessing).Scan(&n)
	return n, err
}

// LastAdmittedAt returns the time of the event's most recent
// admission, or nil when no batch has ever run.
func (r *QueueRepo) LastAdmittedAt(ctx context.Context, eventID uint64) (*time.Time, error) {
	var t sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(admitted_at) FROM queue_entries WHERE event_id = ?`,
		eventID).Scan(&t)
	if err != nil {
		return nil, err
	}
	if !t.Valid {
		return nil, nil
	}
	ts := t.Time
	return &ts, nil
}
