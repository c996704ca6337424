package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuegate/ticket-admission/internal/model"
	"github.com/venuegate/ticket-admission/internal/payment"
	"github.com/venuegate/ticket-admission/internal/repository"
	"github.com/venuegate/ticket-admission/internal/service"
)

func confirmedBooking() *model.Booking {
	txn := "txn-1"
	return &model.Booking{
		ID:            5,
		BookingNumber: "bn-1",
		UserID:        7,
		EventID:       1,
		CartID:        9,
		Status:        model.BookingConfirmed,
		PaymentStatus: model.PaymentSuccess,
		TransactionID: &txn,
		TotalCents:    11000,
		FinalCents:    11000,
		TicketCount:   2,
		ContactName:   "Ada",
		ContactEmail:  "ada@example.com",
		CreatedAt:     time.Now().UTC(),
		Items:         []model.BookingItem{{CategoryID: 3, Quantity: 2, UnitPriceCents: 5500}},
	}
}

func TestCheckoutBegin_Created(t *testing.T) {
	svc := &mockCheckoutService{
		beginFn: func(ctx context.Context, userID, cartID uint64, contact service.ContactInfo) (*model.Booking, error) {
			assert.Equal(t, "Ada", contact.Name)
			assert.Equal(t, "ada@example.com", contact.Email)
			b := confirmedBooking()
			b.Status = model.BookingPending
			b.PaymentStatus = model.PaymentPending
			return b, nil
		},
	}
	h := NewCheckoutHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/v1/carts/9/checkout",
		`{"name":"Ada","email":"ada@example.com"}`, 7)
	c.SetParamNames("id")
	c.SetParamValues("9")

	require.NoError(t, h.Begin(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"PENDING"`)
	assert.Contains(t, rec.Body.String(), `"final_cents":11000`)
}

func TestCheckoutBegin_RejectsBadContact(t *testing.T) {
	h := NewCheckoutHandler(&mockCheckoutService{})

	c, rec := newTestContext(http.MethodPost, "/v1/carts/9/checkout",
		`{"name":"Ada","email":"not-an-email"}`, 7)
	c.SetParamNames("id")
	c.SetParamValues("9")

	require.NoError(t, h.Begin(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutBegin_ExpiredCartGone(t *testing.T) {
	svc := &mockCheckoutService{
		beginFn: func(ctx context.Context, userID, cartID uint64, contact service.ContactInfo) (*model.Booking, error) {
			return nil, service.ErrCartExpired
		},
	}
	h := NewCheckoutHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/v1/carts/9/checkout",
		`{"name":"Ada","email":"ada@example.com"}`, 7)
	c.SetParamNames("id")
	c.SetParamValues("9")

	require.NoError(t, h.Begin(c))
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestOpenTransaction_Created(t *testing.T) {
	svc := &mockCheckoutService{
		openTransactionFn: func(ctx context.Context, userID, bookingID uint64) (*payment.Transaction, error) {
			return &payment.Transaction{ID: "txn-1", GatewayKey: "key-1",
				AmountCents: 11000, Currency: "EUR", Status: payment.StatusCreated}, nil
		},
	}
	h := NewCheckoutHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/v1/bookings/5/transaction", "", 7)
	c.SetParamNames("id")
	c.SetParamValues("5")

	require.NoError(t, h.OpenTransaction(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"transaction_id":"txn-1"`)
	assert.Contains(t, rec.Body.String(), `"gateway_key":"key-1"`)
}

func TestConfirm_OK(t *testing.T) {
	svc := &mockCheckoutService{
		getFn: func(ctx context.Context, userID, bookingID uint64) (*model.Booking, error) {
			return confirmedBooking(), nil
		},
		confirmFn: func(ctx context.Context, bookingID uint64, transactionID, paymentID, signature string) (*model.Booking, error) {
			assert.Equal(t, "txn-1", transactionID)
			assert.Equal(t, "pay-1", paymentID)
			return confirmedBooking(), nil
		},
	}
	h := NewCheckoutHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/v1/bookings/5/confirm",
		`{"transaction_id":"txn-1","payment_id":"pay-1","signature":"sig"}`, 7)
	c.SetParamNames("id")
	c.SetParamValues("5")

	require.NoError(t, h.Confirm(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"CONFIRMED"`)
}

func TestConfirm_VerificationFailurePaymentRequired(t *testing.T) {
	svc := &mockCheckoutService{
		getFn: func(ctx context.Context, userID, bookingID uint64) (*model.Booking, error) {
			b := confirmedBooking()
			b.Status = model.BookingPending
			return b, nil
		},
		confirmFn: func(ctx context.Context, bookingID uint64, transactionID, paymentID, signature string) (*model.Booking, error) {
			return nil, service.ErrPaymentVerificationFailed
		},
	}
	h := NewCheckoutHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/v1/bookings/5/confirm",
		`{"transaction_id":"txn-1","payment_id":"pay-1","signature":"forged"}`, 7)
	c.SetParamNames("id")
	c.SetParamValues("5")

	require.NoError(t, h.Confirm(c))
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), "payment_verification_failed")
}

func TestConfirm_ForeignBookingForbidden(t *testing.T) {
	svc := &mockCheckoutService{
		getFn: func(ctx context.Context, userID, bookingID uint64) (*model.Booking, error) {
			return nil, repository.ErrForbidden
		},
	}
	h := NewCheckoutHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/v1/bookings/5/confirm",
		`{"transaction_id":"txn-1","payment_id":"pay-1","signature":"sig"}`, 8)
	c.SetParamNames("id")
	c.SetParamValues("5")

	require.NoError(t, h.Confirm(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestConfirm_MissingProofFields(t *testing.T) {
	h := NewCheckoutHandler(&mockCheckoutService{})

	c, rec := newTestContext(http.MethodPost, "/v1/bookings/5/confirm",
		`{"transaction_id":"txn-1"}`, 7)
	c.SetParamNames("id")
	c.SetParamValues("5")

	require.NoError(t, h.Confirm(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAbandon_NoContent(t *testing.T) {
	svc := &mockCheckoutService{
		abandonFn: func(ctx context.Context, userID, bookingID uint64) error { return nil },
	}
	h := NewCheckoutHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/v1/bookings/5/abandon", "", 7)
	c.SetParamNames("id")
	c.SetParamValues("5")

	require.NoError(t, h.Abandon(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAbandon_ConfirmedBookingConflicts(t *testing.T) {
	svc := &mockCheckoutService{
		abandonFn: func(ctx context.Context, userID, bookingID uint64) error {
			return service.ErrBookingNotPending
		},
	}
	h := NewCheckoutHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/v1/bookings/5/abandon", "", 7)
	c.SetParamNames("id")
	c.SetParamValues("5")

	require.NoError(t, h.Abandon(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListMine_OK(t *testing.T) {
	svc := &mockCheckoutService{
		listByUserFn: func(ctx context.Context, userID uint64) ([]model.Booking, error) {
			return []model.Booking{*confirmedBooking()}, nil
		},
	}
	h := NewCheckoutHandler(svc)

	c, rec := newTestContext(http.MethodGet, "/v1/me/bookings", "", 7)

	require.NoError(t, h.ListMine(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"bookings"`)
	assert.Contains(t, rec.Body.String(), `"booking_number":"bn-1"`)
}
