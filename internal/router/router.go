// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/venuegate/ticket-admission/internal/config"
	"github.com/venuegate/ticket-admission/internal/handler"
	"github.com/venuegate/ticket-admission/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication:
// the health check and public event availability.
func RegisterRoutes(e *echo.Echo, events *handler.EventHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/v1/events/:id/availability", events.Availability)
}

// RegisterAPI registers the authenticated admission, cart and
// checkout endpoints under /v1.  The rate limiter runs after JWTAuth
// so its key strategy can bucket per user; queue joins are the
// endpoint that takes the on-sale stampede.
func RegisterAPI(e *echo.Echo, q *handler.QueueHandler, carts *handler.CartHandler, checkout *handler.CheckoutHandler, jwtSecret string, rl config.RateLimitConfig, rdb *redis.Client) {
	api := e.Group("/v1")
	api.Use(middleware.JWTAuth(jwtSecret))
	api.Use(middleware.NewTokenBucket(rl, rdb))

	// Virtual waiting room.
	api.POST("/events/:id/queue", q.Join)
	api.GET("/events/:id/queue/position", q.Position)
	api.DELETE("/events/:id/queue", q.Leave)

	// Reservation carts.  AddItem hangs off the event because the
	// active cart is implicit; the rest address the cart directly.
	api.POST("/events/:id/cart/items", carts.AddItem)
	api.GET("/carts/current", carts.Current)
	api.GET("/carts/:id", carts.Get)
	api.PATCH("/carts/:id/items/:itemId", carts.UpdateItem)
	api.DELETE("/carts/:id/items/:itemId", carts.RemoveItem)
	api.POST("/carts/:id/validate", carts.Validate)

	// Checkout and bookings.
	api.POST("/carts/:id/checkout", checkout.Begin)
	api.POST("/bookings/:id/transaction", checkout.OpenTransaction)
	api.POST("/bookings/:id/confirm", checkout.Confirm)
	api.POST("/bookings/:id/abandon", checkout.Abandon)
	api.GET("/bookings/:id", checkout.Get)
	api.GET("/me/bookings", checkout.ListMine)
}
