package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuegate/ticket-admission/internal/model"
	"github.com/venuegate/ticket-admission/internal/service"
)

func TestQueueJoin_Created(t *testing.T) {
	svc := &mockQueueService{
		joinFn: func(ctx context.Context, eventID, userID uint64) (*model.QueueEntry, *service.PositionInfo, error) {
			assert.Equal(t, uint64(1), eventID)
			assert.Equal(t, uint64(7), userID)
			entry := &model.QueueEntry{ID: 42, EventID: 1, UserID: 7,
				Status: model.QueueWaiting, CreatedAt: time.Now().UTC()}
			info := &service.PositionInfo{Position: 250, Status: model.QueueWaiting, EstimatedWaitMinutes: 30}
			return entry, info, nil
		},
	}
	h := NewQueueHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/v1/events/1/queue", "", 7)
	c.SetParamNames("id")
	c.SetParamValues("1")

	require.NoError(t, h.Join(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"position"`)
	assert.Contains(t, rec.Body.String(), `"entry_id":42`)
}

func TestQueueJoin_AlreadyQueuedConflicts(t *testing.T) {
	svc := &mockQueueService{
		joinFn: func(ctx context.Context, eventID, userID uint64) (*model.QueueEntry, *service.PositionInfo, error) {
			return nil, nil, service.ErrAlreadyQueued
		},
	}
	h := NewQueueHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/v1/events/1/queue", "", 7)
	c.SetParamNames("id")
	c.SetParamValues("1")

	require.NoError(t, h.Join(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestQueueJoin_NotGatedUnprocessable(t *testing.T) {
	svc := &mockQueueService{
		joinFn: func(ctx context.Context, eventID, userID uint64) (*model.QueueEntry, *service.PositionInfo, error) {
			return nil, nil, service.ErrQueueDisabled
		},
	}
	h := NewQueueHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/v1/events/1/queue", "", 7)
	c.SetParamNames("id")
	c.SetParamValues("1")

	require.NoError(t, h.Join(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestQueueJoin_MissingUserUnauthorized(t *testing.T) {
	h := NewQueueHandler(&mockQueueService{})

	c, rec := newTestContext(http.MethodPost, "/v1/events/1/queue", "", 0)
	c.SetParamNames("id")
	c.SetParamValues("1")

	require.NoError(t, h.Join(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestQueueJoin_BadEventID(t *testing.T) {
	h := NewQueueHandler(&mockQueueService{})

	c, rec := newTestContext(http.MethodPost, "/v1/events/abc/queue", "", 7)
	c.SetParamNames("id")
	c.SetParamValues("abc")

	require.NoError(t, h.Join(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueuePosition_OK(t *testing.T) {
	deadline := time.Now().UTC().Add(10 * time.Minute)
	svc := &mockQueueService{
		positionFn: func(ctx context.Context, eventID, userID uint64) (*service.PositionInfo, error) {
			return &service.PositionInfo{Position: 0, Status: model.QueueProcessing,
				CanProceed: true, ProcessingDeadline: &deadline}, nil
		},
	}
	h := NewQueueHandler(svc)

	c, rec := newTestContext(http.MethodGet, "/v1/events/1/queue/position", "", 7)
	c.SetParamNames("id")
	c.SetParamValues("1")

	require.NoError(t, h.Position(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"can_proceed":true`)
}

func TestQueueLeave_NoContent(t *testing.T) {
	svc := &mockQueueService{
		leaveFn: func(ctx context.Context, eventID, userID uint64) error { return nil },
	}
	h := NewQueueHandler(svc)

	c, rec := newTestContext(http.MethodDelete, "/v1/events/1/queue", "", 7)
	c.SetParamNames("id")
	c.SetParamValues("1")

	require.NoError(t, h.Leave(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
