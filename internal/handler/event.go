package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/venuegate/ticket-admission/internal/repository"
)

// EventHandler serves public event reads straight from the
// repository; availability is a point-in-time snapshot and carries no
// reservation semantics.
type EventHandler struct {
	Events *repository.EventRepo
}

func NewEventHandler(events *repository.EventRepo) *EventHandler {
	if events == nil {
		panic("nil repository passed to NewEventHandler")
	}
	return &EventHandler{Events: events}
}

// Availability handles GET /v1/events/:id/availability.  The counts
// are advisory: the ledger's conditional updates remain the only
// authority on whether an add succeeds.
func (h *EventHandler) Availability(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx := c.Request().Context()

	ev, err := h.Events.GetByID(ctx, eventID)
	if err != nil {
		return writeServiceError(c, err)
	}
	cats, err := h.Events.CategoriesByEvent(ctx, eventID)
	if err != nil {
		return writeServiceError(c, err)
	}

	type categoryAvailability struct {
		CategoryID uint64 `json:"category_id"`
		Name       string `json:"name"`
		PriceCents int64  `json:"price_cents"`
		Available  int    `json:"available"`
	}
	out := make([]categoryAvailability, 0, len(cats))
	for _, cat := range cats {
		out = append(out, categoryAvailability{
			CategoryID: cat.ID,
			Name:       cat.Name,
			PriceCents: cat.PriceCents,
			Available:  cat.Available(),
		})
	}
	now := time.Now().UTC()
	return c.JSON(http.StatusOK, echo.Map{
		"event_id":      ev.ID,
		"name":          ev.Name,
		"booking_open":  ev.BookingOpen(now),
		"queue_enabled": ev.QueueEnabled,
		"categories":    out,
	})
}
