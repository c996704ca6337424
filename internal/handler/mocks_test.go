package handler

import (
	"context"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/venuegate/ticket-admission/internal/model"
	"github.com/venuegate/ticket-admission/internal/payment"
	"github.com/venuegate/ticket-admission/internal/service"
)

// Function-field mocks for the service interfaces.  A nil field
// panics on an unexpected call.

type mockQueueService struct {
	joinFn     func(ctx context.Context, eventID, userID uint64) (*model.QueueEntry, *service.PositionInfo, error)
	positionFn func(ctx context.Context, eventID, userID uint64) (*service.PositionInfo, error)
	leaveFn    func(ctx context.Context, eventID, userID uint64) error
}

func (m *mockQueueService) Join(ctx context.Context, eventID, userID uint64) (*model.QueueEntry, *service.PositionInfo, error) {
	return m.joinFn(ctx, eventID, userID)
}
func (m *mockQueueService) Position(ctx context.Context, eventID, userID uint64) (*service.PositionInfo, error) {
	return m.positionFn(ctx, eventID, userID)
}
func (m *mockQueueService) Leave(ctx context.Context, eventID, userID uint64) error {
	return m.leaveFn(ctx, eventID, userID)
}
func (m *mockQueueService) RunAdmissions(ctx context.Context) (int, error) { return 0, nil }
func (m *mockQueueService) ExpireEntries(ctx context.Context) (int64, error) {
	return 0, nil
}

type mockCartService struct {
	addItemFn    func(ctx context.Context, userID, eventID, categoryID uint64, quantity int) (*model.Cart, error)
	updateItemFn func(ctx context.Context, userID, cartID, itemID uint64, quantity int) (*model.Cart, error)
	removeItemFn func(ctx context.Context, userID, cartID, itemID uint64) (*model.Cart, error)
	getFn        func(ctx context.Context, userID, cartID uint64) (*model.Cart, error)
	currentFn    func(ctx context.Context, userID, eventID uint64) (*model.Cart, error)
	validateFn   func(ctx context.Context, userID, cartID uint64) (*service.ValidationResult, error)
}

func (m *mockCartService) AddItem(ctx context.Context, userID, eventID, categoryID uint64, quantity int) (*model.Cart, error) {
	return m.addItemFn(ctx, userID, eventID, categoryID, quantity)
}
func (m *mockCartService) UpdateItem(ctx context.Context, userID, cartID, itemID uint64, quantity int) (*model.Cart, error) {
	return m.updateItemFn(ctx, userID, cartID, itemID, quantity)
}
func (m *mockCartService) RemoveItem(ctx context.Context, userID, cartID, itemID uint64) (*model.Cart, error) {
	return m.removeItemFn(ctx, userID, cartID, itemID)
}
func (m *mockCartService) Get(ctx context.Context, userID, cartID uint64) (*model.Cart, error) {
	return m.getFn(ctx, userID, cartID)
}
func (m *mockCartService) Current(ctx context.Context, userID, eventID uint64) (*model.Cart, error) {
	return m.currentFn(ctx, userID, eventID)
}
func (m *mockCartService) Validate(ctx context.Context, userID, cartID uint64) (*service.ValidationResult, error) {
	return m.validateFn(ctx, userID, cartID)
}
func (m *mockCartService) ExpireCarts(ctx context.Context) (int, error) { return 0, nil }

type mockCheckoutService struct {
	beginFn           func(ctx context.Context, userID, cartID uint64, contact service.ContactInfo) (*model.Booking, error)
	openTransactionFn func(ctx context.Context, userID, bookingID uint64) (*payment.Transaction, error)
	confirmFn         func(ctx context.Context, bookingID uint64, transactionID, paymentID, signature string) (*model.Booking, error)
	abandonFn         func(ctx context.Context, userID, bookingID uint64) error
	getFn             func(ctx context.Context, userID, bookingID uint64) (*model.Booking, error)
	listByUserFn      func(ctx context.Context, userID uint64) ([]model.Booking, error)
}

func (m *mockCheckoutService) Begin(ctx context.Context, userID, cartID uint64, contact service.ContactInfo) (*model.Booking, error) {
	return m.beginFn(ctx, userID, cartID, contact)
}
func (m *mockCheckoutService) OpenTransaction(ctx context.Context, userID, bookingID uint64) (*payment.Transaction, error) {
	return m.openTransactionFn(ctx, userID, bookingID)
}
func (m *mockCheckoutService) Confirm(ctx context.Context, bookingID uint64, transactionID, paymentID, signature string) (*model.Booking, error) {
	return m.confirmFn(ctx, bookingID, transactionID, paymentID, signature)
}
func (m *mockCheckoutService) Abandon(ctx context.Context, userID, bookingID uint64) error {
	return m.abandonFn(ctx, userID, bookingID)
}
func (m *mockCheckoutService) Get(ctx context.Context, userID, bookingID uint64) (*model.Booking, error) {
	return m.getFn(ctx, userID, bookingID)
}
func (m *mockCheckoutService) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return m.listByUserFn(ctx, userID)
}
func (m *mockCheckoutService) Reconcile(ctx context.Context) (int, error) { return 0, nil }

// newTestContext builds an echo context the way the middleware would
// hand it to a handler, with the authenticated user already set.
func newTestContext(method, target, body string, userID uint64) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != 0 {
		c.Set("user_id", userID)
	}
	return c, rec
}
