package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/venuegate/ticket-admission/internal/model"
	"github.com/venuegate/ticket-admission/internal/service"
)

// CartHandler exposes the reservation store: item mutations against
// the caller's active cart, cart reads and pre-checkout validation.
type CartHandler struct {
	Carts service.CartService
}

func NewCartHandler(carts service.CartService) *CartHandler {
	if carts == nil {
		panic("nil service passed to NewCartHandler")
	}
	return &CartHandler{Carts: carts}
}

type cartItemResponse struct {
	ID             uint64 `json:"id"`
	CategoryID     uint64 `json:"category_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type cartResponse struct {
	ID            uint64             `json:"id"`
	EventID       uint64             `json:"event_id"`
	Status        string             `json:"status"`
	ExpiresAt     time.Time          `json:"expires_at"`
	TotalQuantity int                `json:"total_quantity"`
	TotalCents    int64              `json:"total_cents"`
	Items         []cartItemResponse `json:"items"`
}

func toCartResponse(cart *model.Cart) cartResponse {
	items := make([]cartItemResponse, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, cartItemResponse{
			ID:             it.ID,
			CategoryID:     it.CategoryID,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
			SubtotalCents:  it.Subtotal(),
		})
	}
	return cartResponse{
		ID:            cart.ID,
		EventID:       cart.EventID,
		Status:        cart.Status,
		ExpiresAt:     cart.ExpiresAt,
		TotalQuantity: cart.TotalQuantity(),
		TotalCents:    cart.TotalCents(),
		Items:         items,
	}
}

// AddItem handles POST /v1/events/:id/cart/items.  The active cart is
// implicit: one is created on first add, and a lapsed one is swept
// aside in the same transaction.
func (h *CartHandler) AddItem(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var body struct {
		CategoryID uint64 `json:"category_id"`
		Quantity   int    `json:"quantity"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.CategoryID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "category_id is required"})
	}

	cart, err := h.Carts.AddItem(c.Request().Context(), userID, eventID, body.CategoryID, body.Quantity)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toCartResponse(cart))
}

// Current handles GET /v1/carts/current?event_id=N.
func (h *CartHandler) Current(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := queryID(c, "event_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	cart, err := h.Carts.Current(c.Request().Context(), userID, eventID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toCartResponse(cart))
}

// Get handles GET /v1/carts/:id.
func (h *CartHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	cartID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	cart, err := h.Carts.Get(c.Request().Context(), userID, cartID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toCartResponse(cart))
}

// UpdateItem handles PATCH /v1/carts/:id/items/:itemId.  The body
// carries the new absolute quantity; the ledger delta is worked out
// server-side.
func (h *CartHandler) UpdateItem(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	cartID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	itemID, err := pathID(c, "itemId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	cart, err := h.Carts.UpdateItem(c.Request().Context(), userID, cartID, itemID, body.Quantity)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toCartResponse(cart))
}

// RemoveItem handles DELETE /v1/carts/:id/items/:itemId.
func (h *CartHandler) RemoveItem(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	cartID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	itemID, err := pathID(c, "itemId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	cart, err := h.Carts.RemoveItem(c.Request().Context(), userID, cartID, itemID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toCartResponse(cart))
}

// Validate handles POST /v1/carts/:id/validate.  It always returns
// 200 with the validation verdict; only lookup and ownership failures
// produce an error status.
func (h *CartHandler) Validate(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	cartID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	result, err := h.Carts.Validate(c.Request().Context(), userID, cartID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
