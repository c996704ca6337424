package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/venuegate/ticket-admission/internal/model"
	"github.com/venuegate/ticket-admission/internal/service"
)

// CheckoutHandler exposes the booking lifecycle: freeze a cart into a
// pending booking, open the payment transaction, confirm with proof,
// abandon, and read back.
type CheckoutHandler struct {
	Checkout service.CheckoutService
}

func NewCheckoutHandler(checkout service.CheckoutService) *CheckoutHandler {
	if checkout == nil {
		panic("nil service passed to NewCheckoutHandler")
	}
	return &CheckoutHandler{Checkout: checkout}
}

type bookingItemResponse struct {
	CategoryID     uint64 `json:"category_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type bookingResponse struct {
	ID            uint64                `json:"id"`
	BookingNumber string                `json:"booking_number"`
	EventID       uint64                `json:"event_id"`
	Status        string                `json:"status"`
	PaymentStatus string                `json:"payment_status"`
	TotalCents    int64                 `json:"total_cents"`
	DiscountCents int64                 `json:"discount_cents"`
	FinalCents    int64                 `json:"final_cents"`
	TicketCount   int                   `json:"ticket_count"`
	ContactName   string                `json:"contact_name"`
	ContactEmail  string                `json:"contact_email"`
	CreatedAt     time.Time             `json:"created_at"`
	Items         []bookingItemResponse `json:"items,omitempty"`
}

func toBookingResponse(b *model.Booking) bookingResponse {
	items := make([]bookingItemResponse, 0, len(b.Items))
	for _, it := range b.Items {
		items = append(items, bookingItemResponse{
			CategoryID:     it.CategoryID,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}
	return bookingResponse{
		ID:            b.ID,
		BookingNumber: b.BookingNumber,
		EventID:       b.EventID,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		TotalCents:    b.TotalCents,
		DiscountCents: b.DiscountCents,
		FinalCents:    b.FinalCents,
		TicketCount:   b.TicketCount,
		ContactName:   b.ContactName,
		ContactEmail:  b.ContactEmail,
		CreatedAt:     b.CreatedAt,
		Items:         items,
	}
}

// Begin handles POST /v1/carts/:id/checkout.  On success the cart is
// converted and a pending booking returned; the client then opens a
// payment transaction against it.
func (h *CheckoutHandler) Begin(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	cartID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var body service.ContactInfo
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	body.Name = strings.TrimSpace(body.Name)
	body.Email = strings.TrimSpace(body.Email)
	if body.Name == "" || body.Email == "" || !strings.Contains(body.Email, "@") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "contact name and email are required"})
	}

	booking, err := h.Checkout.Begin(c.Request().Context(), userID, cartID, body)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toBookingResponse(booking))
}

// OpenTransaction handles POST /v1/bookings/:id/transaction.  Safe to
// retry: the gateway call is idempotent by booking number and only
// the first stored transaction id wins.
func (h *CheckoutHandler) OpenTransaction(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	txn, err := h.Checkout.OpenTransaction(c.Request().Context(), userID, bookingID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"transaction_id": txn.ID,
		"gateway_key":    txn.GatewayKey,
		"amount_cents":   txn.AmountCents,
		"currency":       txn.Currency,
		"status":         txn.Status,
	})
}

// Confirm handles POST /v1/bookings/:id/confirm.  The signature is
// the gateway's proof over the transaction and payment ids; amounts
// are never taken from the client.
func (h *CheckoutHandler) Confirm(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var body struct {
		TransactionID string `json:"transaction_id"`
		PaymentID     string `json:"payment_id"`
		Signature     string `json:"signature"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.TransactionID == "" || body.PaymentID == "" || body.Signature == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "transaction_id, payment_id and signature are required"})
	}

	// Ownership is checked before confirmation so a stranger cannot
	// even probe the booking's existence.
	if _, err := h.Checkout.Get(c.Request().Context(), userID, bookingID); err != nil {
		return writeServiceError(c, err)
	}
	booking, err := h.Checkout.Confirm(c.Request().Context(), bookingID, body.TransactionID, body.PaymentID, body.Signature)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(booking))
}

// Abandon handles POST /v1/bookings/:id/abandon.  Idempotent; the
// held inventory returns to the pool immediately.
func (h *CheckoutHandler) Abandon(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	if err := h.Checkout.Abandon(c.Request().Context(), userID, bookingID); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Get handles GET /v1/bookings/:id.
func (h *CheckoutHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	booking, err := h.Checkout.Get(c.Request().Context(), userID, bookingID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(booking))
}

// ListMine handles GET /v1/me/bookings.
func (h *CheckoutHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	bookings, err := h.Checkout.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	out := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, toBookingResponse(&bookings[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}
