package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/venuegate/ticket-admission/internal/service"
)

// QueueHandler exposes the virtual waiting room: join, poll position,
// leave.
type QueueHandler struct {
	Queue service.QueueService
}

func NewQueueHandler(queue service.QueueService) *QueueHandler {
	if queue == nil {
		panic("nil service passed to NewQueueHandler")
	}
	return &QueueHandler{Queue: queue}
}

// Join handles POST /v1/events/:id/queue.  Joining twice returns 409;
// the client should poll the position endpoint instead.
func (h *QueueHandler) Join(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	entry, info, err := h.Queue.Join(c.Request().Context(), eventID, userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"entry_id":  entry.ID,
		"event_id":  entry.EventID,
		"joined_at": entry.CreatedAt,
		"position":  info,
	})
}

// Position handles GET /v1/events/:id/queue/position.  It reports the
// caller's most recent entry for the event, including terminal ones,
// so a client that missed the admission push still learns its fate.
func (h *QueueHandler) Position(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	info, err := h.Queue.Position(c.Request().Context(), eventID, userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// Leave handles DELETE /v1/events/:id/queue.  Leaving is idempotent.
func (h *QueueHandler) Leave(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	if err := h.Queue.Leave(c.Request().Context(), eventID, userID); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
