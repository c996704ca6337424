package model

import "time"

// Queue entry statuses.  Waiting and processing are the two live
// states; everything else is terminal.
const (
	QueueWaiting    = "WAITING"
	QueueProcessing = "PROCESSING"
	QueueCompleted  = "COMPLETED"
	QueueExpired    = "EXPIRED"
	QueueLeft       = "LEFT"
)

// QueueEntry represents one user's attempt to enter booking for one
// event.  At most one non-terminal entry may exist per (user, event)
// pair; the storage layer enforces this with a generated uniqueness
// column.  Position in line is derived from the auto-increment ID,
// which serves as the FIFO sequence number.
//
// Fields:
//  ID                 – primary key and FIFO sequence number.
//  EventID            – event being queued for.
//  UserID             – user who joined.
//  Status             – one of the Queue* constants above.
//  AdmittedAt         – when the entry was promoted to processing.
//  ProcessingDeadline – instant after which a processing entry expires.
//  CreatedAt          – when the user joined.
type QueueEntry struct {
	ID                 uint64     // queue_entries.id
	EventID            uint64     // queue_entries.event_id
	UserID             uint64     // queue_entries.user_id
	Status             string     // queue_entries.status
	AdmittedAt         *time.Time // queue_entries.admitted_at (nullable)
	ProcessingDeadline *time.Time // queue_entries.processing_deadline (nullable)
	CreatedAt          time.Time  // queue_entries.created_at
}

// Terminal reports whether the entry can no longer change state.
func (q *QueueEntry) Terminal() bool {
	switch q.Status {
	case QueueCompleted, QueueExpired, QueueLeft:
		return true
	}
	return false
}

// CanProceed reports whether the entry currently grants access to the
// reservation flow.  The deadline comparison is fail-closed: a
// deadline exactly equal to now no longer admits.
func (q *QueueEntry) CanProceed(now time.Time) bool {
	if q.Status != QueueProcessing || q.ProcessingDeadline == nil {
		return false
	}
	return now.Before(*q.ProcessingDeadline)
}
