package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuegate/ticket-admission/internal/model"
	"github.com/venuegate/ticket-admission/internal/repository"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func gatedEvent() *model.Event {
	return &model.Event{
		ID:                     1,
		Slug:                   "arena-tour",
		Name:                   "Arena Tour",
		QueueEnabled:           true,
		QueueBatchSize:         100,
		QueueProcessingMinutes: 10,
		MaxTicketsPerBooking:   6,
		BookingOpensAt:         testNow.Add(-time.Hour),
		BookingClosesAt:        testNow.Add(time.Hour),
	}
}

func newTestQueueService(events *mockEventStore, entries *mockQueueStore, pub Publisher) *queueService {
	return &queueService{
		events:  events,
		entries: entries,
		pub:     pub,
		runTx:   passTx,
		now:     func() time.Time { return testNow },
	}
}

func TestQueueJoin_Success(t *testing.T) {
	ev := gatedEvent()
	events := &mockEventStore{
		getByIDFn: func(ctx context.Context, id uint64) (*model.Event, error) { return ev, nil },
	}
	entries := &mockQueueStore{
		insertFn: func(ctx context.Context, tx *sql.Tx, eventID, userID uint64) (*model.QueueEntry, error) {
			return &model.QueueEntry{ID: 42, EventID: eventID, UserID: userID, Status: model.QueueWaiting, CreatedAt: testNow}, nil
		},
		positionAheadFn: func(ctx context.Context, eventID, seq uint64) (int, error) {
			assert.Equal(t, uint64(42), seq)
			return 250, nil
		},
	}

	svc := newTestQueueService(events, entries, nil)
	entry, info, err := svc.Join(context.Background(), 1, 7)

	require.NoError(t, err)
	assert.Equal(t, uint64(42), entry.ID)
	assert.Equal(t, 250, info.Position)
	// 250 ahead at 100 per 10-minute wave: third wave.
	assert.Equal(t, 30, info.EstimatedWaitMinutes)
	assert.False(t, info.CanProceed)
}

func TestQueueJoin_AlreadyQueued(t *testing.T) {
	events := &mockEventStore{
		getByIDFn: func(ctx context.Context, id uint64) (*model.Event, error) { return gatedEvent(), nil },
	}
	entries := &mockQueueStore{
		insertFn: func(ctx context.Context, tx *sql.Tx, eventID, userID uint64) (*model.QueueEntry, error) {
			return nil, repository.ErrActiveEntryExists
		},
	}

	svc := newTestQueueService(events, entries, nil)
	_, _, err := svc.Join(context.Background(), 1, 7)

	assert.ErrorIs(t, err, ErrAlreadyQueued)
}

func TestQueueJoin_QueueDisabled(t *testing.T) {
	ev := gatedEvent()
	ev.QueueEnabled = false
	events := &mockEventStore{
		getByIDFn: func(ctx context.Context, id uint64) (*model.Event, error) { return ev, nil },
	}

	svc := newTestQueueService(events, &mockQueueStore{}, nil)
	_, _, err := svc.Join(context.Background(), 1, 7)

	assert.ErrorIs(t, err, ErrQueueDisabled)
}

func TestQueueJoin_WindowClosed(t *testing.T) {
	ev := gatedEvent()
	ev.BookingClosesAt = testNow // close instant is exclusive
	events := &mockEventStore{
		getByIDFn: func(ctx context.Context, id uint64) (*model.Event, error) { return ev, nil },
	}

	svc := newTestQueueService(events, &mockQueueStore{}, nil)
	_, _, err := svc.Join(context.Background(), 1, 7)

	assert.ErrorIs(t, err, ErrBookingWindowClosed)
}

func TestQueuePosition_ProcessingCanProceed(t *testing.T) {
	deadline := testNow.Add(5 * time.Minute)
	events := &mockEventStore{
		getByIDFn: func(ctx context.Context, id uint64) (*model.Event, error) { return gatedEvent(), nil },
	}
	entries := &mockQueueStore{
		latestEntryFn: func(ctx context.Context, eventID, userID uint64) (*model.QueueEntry, error) {
			return &model.QueueEntry{ID: 42, Status: model.QueueProcessing, ProcessingDeadline: &deadline}, nil
		},
	}

	svc := newTestQueueService(events, entries, nil)
	info, err := svc.Position(context.Background(), 1, 7)

	require.NoError(t, err)
	assert.True(t, info.CanProceed)
	assert.Equal(t, model.QueueProcessing, info.Status)
	require.NotNil(t, info.ProcessingDeadline)
	assert.Equal(t, deadline, *info.ProcessingDeadline)
}

func TestQueuePosition_DeadlineEqualNowFailsClosed(t *testing.T) {
	deadline := testNow // exactly now: window is over
	events := &mockEventStore{
		getByIDFn: func(ctx context.Context, id uint64) (*model.Event, error) { return gatedEvent(), nil },
	}
	entries := &mockQueueStore{
		latestEntryFn: func(ctx context.Context, eventID, userID uint64) (*model.QueueEntry, error) {
			return &model.QueueEntry{ID: 42, Status: model.QueueProcessing, ProcessingDeadline: &deadline}, nil
		},
	}

	svc := newTestQueueService(events, entries, nil)
	info, err := svc.Position(context.Background(), 1, 7)

	require.NoError(t, err)
	assert.False(t, info.CanProceed)
}

func TestRunAdmissions_PromotesUpToFreeSlots(t *testing.T) {
	ev := gatedEvent()
	ev.QueueBatchSize = 5
	events := &mockEventStore{
		listQueueGatedFn: func(ctx context.Context) ([]model.Event, error) { return []model.Event{*ev}, nil },
	}
	pub := &mockPublisher{}
	entries := &mockQueueStore{
		lastAdmittedAtFn: func(ctx context.Context, eventID uint64) (*time.Time, error) { return nil, nil },
		countProcessingFn: func(ctx context.Context, eventID uint64) (int, error) {
			return 2, nil
		},
		promoteBatchFn: func(ctx context.Context, tx *sql.Tx, eventID uint64, limit int, admittedAt, deadline time.Time) ([]model.QueueEntry, error) {
			assert.Equal(t, 3, limit) // batch 5 minus 2 still processing
			assert.Equal(t, testNow, admittedAt)
			assert.Equal(t, testNow.Add(10*time.Minute), deadline)
			return []model.QueueEntry{
				{ID: 10, UserID: 100},
				{ID: 11, UserID: 101},
			}, nil
		},
	}

	svc := newTestQueueService(events, entries, pub)
	n, err := svc.RunAdmissions(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"queue.admitted"}, pub.published)
}

func TestRunAdmissions_WaveNotDue(t *testing.T) {
	ev := gatedEvent()
	events := &mockEventStore{
		listQueueGatedFn: func(ctx context.Context) ([]model.Event, error) { return []model.Event{*ev}, nil },
	}
	last := testNow.Add(-5 * time.Minute) // window is 10 minutes
	entries := &mockQueueStore{
		lastAdmittedAtFn: func(ctx context.Context, eventID uint64) (*time.Time, error) { return &last, nil },
	}

	svc := newTestQueueService(events, entries, nil)
	n, err := svc.RunAdmissions(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRunAdmissions_NoFreeSlots(t *testing.T) {
	ev := gatedEvent()
	ev.QueueBatchSize = 2
	events := &mockEventStore{
		listQueueGatedFn: func(ctx context.Context) ([]model.Event, error) { return []model.Event{*ev}, nil },
	}
	entries := &mockQueueStore{
		lastAdmittedAtFn:  func(ctx context.Context, eventID uint64) (*time.Time, error) { return nil, nil },
		countProcessingFn: func(ctx context.Context, eventID uint64) (int, error) { return 2, nil },
	}

	svc := newTestQueueService(events, entries, nil)
	n, err := svc.RunAdmissions(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestExpireEntries_PassesNow(t *testing.T) {
	entries := &mockQueueStore{
		expireOverdueFn: func(ctx context.Context, tx *sql.Tx, now time.Time) (int64, error) {
			assert.Equal(t, testNow, now)
			return 7, nil
		},
	}

	svc := newTestQueueService(&mockEventStore{}, entries, nil)
	n, err := svc.ExpireEntries(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
