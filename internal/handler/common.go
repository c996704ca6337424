// Package handler defines the HTTP layer.  Handlers bind and
// validate input, delegate to the service layer and translate the
// service error taxonomy into HTTP status codes.  All handlers assume
// JWT authentication ran in middleware.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/venuegate/ticket-admission/internal/repository"
	"github.com/venuegate/ticket-admission/internal/service"
)

// getUserID extracts the authenticated user id stored by the JWT
// middleware.
func getUserID(c echo.Context) (uint64, error) {
	if v, ok := c.Get("user_id").(uint64); ok && v != 0 {
		return v, nil
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// queryID parses a numeric query parameter.
func queryID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.QueryParam(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// writeServiceError maps a service or repository error onto an HTTP
// response.  Unknown errors become an opaque 500 so internals never
// leak to clients.
func writeServiceError(c echo.Context, err error) error {
	var avail *service.AvailabilityError
	if errors.As(err, &avail) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":       "insufficient_availability",
			"message":     avail.Error(),
			"category_id": avail.CategoryID,
			"requested":   avail.Requested,
			"available":   avail.Available,
		})
	}

	switch {
	case errors.Is(err, repository.ErrEventNotFound),
		errors.Is(err, repository.ErrCategoryNotFound),
		errors.Is(err, repository.ErrEntryNotFound),
		errors.Is(err, repository.ErrCartNotFound),
		errors.Is(err, repository.ErrItemNotFound),
		errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": err.Error()})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "resource belongs to another user"})
	case errors.Is(err, service.ErrAdmissionRequired):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "admission_required", "message": err.Error()})
	case errors.Is(err, service.ErrAlreadyQueued),
		errors.Is(err, service.ErrTransactionAlreadyResolved),
		errors.Is(err, service.ErrBookingNotPending):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict", "message": err.Error()})
	case errors.Is(err, service.ErrCartExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "cart_expired", "message": err.Error()})
	case errors.Is(err, service.ErrQueueDisabled),
		errors.Is(err, service.ErrBookingWindowClosed),
		errors.Is(err, service.ErrCartInvalid),
		errors.Is(err, service.ErrMaxTicketsExceeded):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "unprocessable", "message": err.Error()})
	case errors.Is(err, service.ErrInvalidQuantity):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "bad_request", "message": err.Error()})
	case errors.Is(err, service.ErrPaymentVerificationFailed):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "payment_verification_failed", "message": err.Error()})
	}
	c.Logger().Errorf("internal error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
}
