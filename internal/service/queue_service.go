package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/venuegate/ticket-admission/internal/database"
	"github.com/venuegate/ticket-admission/internal/model"
	q "github.com/venuegate/ticket-admission/internal/queue"
	"github.com/venuegate/ticket-admission/internal/repository"
)

// PositionInfo is the pollable view of a user's place in the queue.
type PositionInfo struct {
	Position             int        `json:"position"`
	Status               string     `json:"status"`
	EstimatedWaitMinutes int        `json:"estimated_wait_minutes"`
	CanProceed           bool       `json:"can_proceed"`
	ProcessingDeadline   *time.Time `json:"processing_deadline,omitempty"`
}

// QueueService is the queue admission controller.  It owns the
// QueueEntry lifecycle: users join at the tail, a timer-driven batch
// promotes the head into a bounded processing window, and entries
// that overstay the window expire.  FIFO order is by entry id.
type QueueService interface {
	Join(ctx context.Context, eventID, userID uint64) (*model.QueueEntry, *PositionInfo, error)
	Position(ctx context.Context, eventID, userID uint64) (*PositionInfo, error)
	Leave(ctx context.Context, eventID, userID uint64) error
	// RunAdmissions executes one admission cycle across all gated
	// events and returns the number of entries promoted.
	RunAdmissions(ctx context.Context) (int, error)
	// ExpireEntries flips overdue processing entries to expired and
	// returns how many it flipped.
	ExpireEntries(ctx context.Context) (int64, error)
}

type queueService struct {
	events  EventStore
	entries QueueStore
	pub     Publisher
	runTx   func(ctx context.Context, fn func(tx *sql.Tx) error) error
	now     func() time.Time
}

// NewQueueService wires the queue admission controller.  pub may be
// nil to disable realtime publishing.
func NewQueueService(db *sql.DB, events EventStore, entries QueueStore, pub Publisher) QueueService {
	return &queueService{
		events:  events,
		entries: entries,
		pub:     pub,
		runTx: func(ctx context.Context, fn func(tx *sql.Tx) error) error {
			return database.WithTx(ctx, db, fn)
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *queueService) Join(ctx context.Context, eventID, userID uint64) (*model.QueueEntry, *PositionInfo, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	if !ev.QueueEnabled {
		return nil, nil, ErrQueueDisabled
	}
	if !ev.BookingOpen(s.now()) {
		return nil, nil, ErrBookingWindowClosed
	}

	var entry *model.QueueEntry
	err = s.runTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		entry, txErr = s.entries.InsertTx(ctx, tx, eventID, userID)
		return txErr
	})
	if err != nil {
		if errors.Is(err, repository.ErrActiveEntryExists) {
			return nil, nil, ErrAlreadyQueued
		}
		return nil, nil, err
	}

	info, err := s.positionFor(ctx, ev, entry)
	if err != nil {
		return nil, nil, err
	}
	return entry, info, nil
}

func (s *queueService) Position(ctx context.Context, eventID, userID uint64) (*PositionInfo, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	entry, err := s.entries.LatestEntry(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	return s.positionFor(ctx, ev, entry)
}

func (s *queueService) Leave(ctx context.Context, eventID, userID uint64) error {
	// Idempotent: a terminal or missing entry leaves nothing to do.
	return s.runTx(ctx, func(tx *sql.Tx) error {
		_, err := s.entries.MarkLeftTx(ctx, tx, eventID, userID)
		return err
	})
}

// positionFor derives the pollable view from an entry.  The deadline
// comparison in CanProceed is fail-closed, so a stale processing
// entry reads as not-proceedable even before the sweep expires it.
func (s *queueService) positionFor(ctx context.Context, ev *model.Event, entry *model.QueueEntry) (*PositionInfo, error) {
	info := &PositionInfo{
		Status:             entry.Status,
		CanProceed:         entry.CanProceed(s.now()),
		ProcessingDeadline: entry.ProcessingDeadline,
	}
	if entry.Terminal() || entry.Status == model.QueueProcessing {
		return info, nil
	}
	ahead, err := s.entries.PositionAhead(ctx, ev.ID, entry.ID)
	if err != nil {
		return nil, err
	}
	info.Position = ahead
	if ev.QueueBatchSize > 0 {
		// Whole admission cycles until this entry's wave reaches the
		// front, assuming each wave uses its full window.
		waves := (ahead / ev.QueueBatchSize) + 1
		info.EstimatedWaitMinutes = waves * ev.QueueProcessingMinutes
	}
	return info, nil
}

func (s *queueService) RunAdmissions(ctx context.Context) (int, error) {
	events, err := s.events.ListQueueGated(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for i := range events {
		n, err := s.admitBatch(ctx, &events[i])
		if err != nil {
			// One wedged event must not starve the others.
			log.Printf("queue: admission batch for event %d failed: %v", events[i].ID, err)
			continue
		}
		total += n
	}
	return total, nil
}

// admitBatch runs at most one admission wave for an event.  A wave is
// due when no admission has ever happened or the previous one is at
// least a full processing window old.  The wave size is the batch
// size minus entries still inside their window, so expired slots are
// handed to the next users in line and concurrent checkout load stays
// bounded by the batch size.
func (s *queueService) admitBatch(ctx context.Context, ev *model.Event) (int, error) {
	last, err := s.entries.LastAdmittedAt(ctx, ev.ID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	if last != nil && now.Sub(*last) < ev.ProcessingWindow() {
		return 0, nil
	}
	processing, err := s.entries.CountProcessing(ctx, ev.ID)
	if err != nil {
		return 0, err
	}
	slots := ev.QueueBatchSize - processing
	if slots <= 0 {
		return 0, nil
	}

	deadline := now.Add(ev.ProcessingWindow())
	var batch []model.QueueEntry
	err = s.runTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		batch, txErr = s.entries.PromoteBatchTx(ctx, tx, ev.ID, slots, now, deadline)
		return txErr
	})
	if err != nil {
		return 0, err
	}
	if len(batch) > 0 && s.pub != nil {
		userIDs := make([]uint64, 0, len(batch))
		for _, e := range batch {
			userIDs = append(userIDs, e.UserID)
		}
		payload := q.QueueAdmittedEvent{
			EventID:            ev.ID,
			UserIDs:            userIDs,
			ProcessingDeadline: deadline.Format(time.RFC3339),
			AdmittedAt:         now.Format(time.RFC3339),
		}
		if err := s.pub.Publish(ctx, q.QueueAdmittedQueue, payload); err != nil {
			log.Printf("queue: publish admitted event failed: %v", err)
		}
	}
	return len(batch), nil
}

func (s *queueService) ExpireEntries(ctx context.Context) (int64, error) {
	var n int64
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		n, txErr = s.entries.ExpireOverdueTx(ctx, tx, s.now())
		return txErr
	})
	return n, err
}
