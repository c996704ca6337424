package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/venuegate/ticket-admission/internal/model"
	"github.com/venuegate/ticket-admission/internal/payment"
)

// Function-field mocks for the store interfaces.  Tests set only the
// functions their scenario exercises; an unexpected call panics on
// the nil field, which is the failure we want.

type mockEventStore struct {
	getByIDFn           func(ctx context.Context, id uint64) (*model.Event, error)
	categoryFn          func(ctx context.Context, id uint64) (*model.TicketCategory, error)
	categoriesByEventFn func(ctx context.Context, eventID uint64) ([]model.TicketCategory, error)
	listQueueGatedFn    func(ctx context.Context) ([]model.Event, error)
}

func (m *mockEventStore) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	return m.getByIDFn(ctx, id)
}
func (m *mockEventStore) Category(ctx context.Context, id uint64) (*model.TicketCategory, error) {
	return m.categoryFn(ctx, id)
}
func (m *mockEventStore) CategoriesByEvent(ctx context.Context, eventID uint64) ([]model.TicketCategory, error) {
	return m.categoriesByEventFn(ctx, eventID)
}
func (m *mockEventStore) ListQueueGated(ctx context.Context) ([]model.Event, error) {
	return m.listQueueGatedFn(ctx)
}

type mockQueueStore struct {
	insertFn          func(ctx context.Context, tx *sql.Tx, eventID, userID uint64) (*model.QueueEntry, error)
	activeEntryFn     func(ctx context.Context, eventID, userID uint64) (*model.QueueEntry, error)
	latestEntryFn     func(ctx context.Context, eventID, userID uint64) (*model.QueueEntry, error)
	positionAheadFn   func(ctx context.Context, eventID, seq uint64) (int, error)
	markLeftFn        func(ctx context.Context, tx *sql.Tx, eventID, userID uint64) (int64, error)
	completeActiveFn  func(ctx context.Context, tx *sql.Tx, eventID, userID uint64) (int64, error)
	promoteBatchFn    func(ctx context.Context, tx *sql.Tx, eventID uint64, limit int, admittedAt, deadline time.Time) ([]model.QueueEntry, error)
	expireOverdueFn   func(ctx context.Context, tx *sql.Tx, now time.Time) (int64, error)
	countProcessingFn func(ctx context.Context, eventID uint64) (int, error)
	lastAdmittedAtFn  func(ctx context.Context, eventID uint64) (*time.Time, error)
}

func (m *mockQueueStore) InsertTx(ctx context.Context, tx *sql.Tx, eventID, userID uint64) (*model.QueueEntry, error) {
	return m.insertFn(ctx, tx, eventID, userID)
}
func (m *mockQueueStore) ActiveEntry(ctx context.Context, eventID, userID uint64) (*model.QueueEntry, error) {
	return m.activeEntryFn(ctx, eventID, userID)
}
func (m *mockQueueStore) LatestEntry(ctx context.Context, eventID, userID uint64) (*model.QueueEntry, error) {
	return m.latestEntryFn(ctx, eventID, userID)
}
func (m *mockQueueStore) PositionAhead(ctx context.Context, eventID, seq uint64) (int, error) {
	return m.positionAheadFn(ctx, eventID, seq)
}
func (m *mockQueueStore) MarkLeftTx(ctx context.Context, tx *sql.Tx, eventID, userID uint64) (int64, error) {
	return m.markLeftFn(ctx, tx, eventID, userID)
}
func (m *mockQueueStore) CompleteActiveTx(ctx context.Context, tx *sql.Tx, eventID, userID uint64) (int64, error) {
	return m.completeActiveFn(ctx, tx, eventID, userID)
}
func (m *mockQueueStore) PromoteBatchTx(ctx context.Context, tx *sql.Tx, eventID uint64, limit int, admittedAt, deadline time.Time) ([]model.QueueEntry, error) {
	return m.promoteBatchFn(ctx, tx, eventID, limit, admittedAt, deadline)
}
func (m *mockQueueStore) ExpireOverdueTx(ctx context.Context, tx *sql.Tx, now time.Time) (int64, error) {
	return m.expireOverdueFn(ctx, tx, now)
}
func (m *mockQueueStore) CountProcessing(ctx context.Context, eventID uint64) (int, error) {
	return m.countProcessingFn(ctx, eventID)
}
func (m *mockQueueStore) LastAdmittedAt(ctx context.Context, eventID uint64) (*time.Time, error) {
	return m.lastAdmittedAtFn(ctx, eventID)
}

type mockInventoryStore struct {
	acquireFn             func(ctx context.Context, tx *sql.Tx, categoryID uint64, qty int) (bool, int, error)
	releaseFn             func(ctx context.Context, tx *sql.Tx, categoryID uint64, qty int) error
	sellFn                func(ctx context.Context, tx *sql.Tx, categoryID uint64, qty int) error
	addToHoldFn           func(ctx context.Context, tx *sql.Tx, h *model.InventoryHold) error
	setHoldQuantityFn     func(ctx context.Context, tx *sql.Tx, holderType string, holderID, categoryID uint64, qty int) error
	deleteHoldFn          func(ctx context.Context, tx *sql.Tx, holderType string, holderID, categoryID uint64) (int, error)
	holdsByHolderTxFn     func(ctx context.Context, tx *sql.Tx, holderType string, holderID uint64) ([]model.InventoryHold, error)
	holdsByHolderFn       func(ctx context.Context, holderType string, holderID uint64) ([]model.InventoryHold, error)
	deleteHoldsByHolderFn func(ctx context.Context, tx *sql.Tx, holderType string, holderID uint64) error
	reassignHolderFn      func(ctx context.Context, tx *sql.Tx, fromType string, fromID uint64, toType string, toID uint64, expiresAt time.Time) error
	setHolderExpiryFn     func(ctx context.Context, tx *sql.Tx, holderType string, holderID uint64, expiresAt time.Time) error
}

func (m *mockInventoryStore) AcquireTx(ctx context.Context, tx *sql.Tx, categoryID uint64, qty int) (bool, int, error) {
	return m.acquireFn(ctx, tx, categoryID, qty)
}
func (m *mockInventoryStore) ReleaseTx(ctx context.Context, tx *sql.Tx, categoryID uint64, qty int) error {
	return m.releaseFn(ctx, tx, categoryID, qty)
}
func (m *mockInventoryStore) SellTx(ctx context.Context, tx *sql.Tx, categoryID uint64, qty int) error {
	return m.sellFn(ctx, tx, categoryID, qty)
}
func (m *mockInventoryStore) AddToHoldTx(ctx context.Context, tx *sql.Tx, h *model.InventoryHold) error {
	return m.addToHoldFn(ctx, tx, h)
}
func (m *mockInventoryStore) SetHoldQuantityTx(ctx context.Context, tx *sql.Tx, holderType string, holderID, categoryID uint64, qty int) error {
	return m.setHoldQuantityFn(ctx, tx, holderType, holderID, categoryID, qty)
}
func (m *mockInventoryStore) DeleteHoldTx(ctx context.Context, tx *sql.Tx, holderType string, holderID, categoryID uint64) (int, error) {
	return m.deleteHoldFn(ctx, tx, holderType, holderID, categoryID)
}
func (m *mockInventoryStore) HoldsByHolderTx(ctx context.Context, tx *sql.Tx, holderType string, holderID uint64) ([]model.InventoryHold, error) {
	return m.holdsByHolderTxFn(ctx, tx, holderType, holderID)
}
func (m *mockInventoryStore) HoldsByHolder(ctx context.Context, holderType string, holderID uint64) ([]model.InventoryHold, error) {
	return m.holdsByHolderFn(ctx, holderType, holderID)
}
func (m *mockInventoryStore) DeleteHoldsByHolderTx(ctx context.Context, tx *sql.Tx, holderType string, holderID uint64) error {
	return m.deleteHoldsByHolderFn(ctx, tx, holderType, holderID)
}
func (m *mockInventoryStore) ReassignHolderTx(ctx context.Context, tx *sql.Tx, fromType string, fromID uint64, toType string, toID uint64, expiresAt time.Time) error {
	return m.reassignHolderFn(ctx, tx, fromType, fromID, toType, toID, expiresAt)
}
func (m *mockInventoryStore) SetHolderExpiryTx(ctx context.Context, tx *sql.Tx, holderType string, holderID uint64, expiresAt time.Time) error {
	return m.setHolderExpiryFn(ctx, tx, holderType, holderID, expiresAt)
}

type mockCartStore struct {
	createFn              func(ctx context.Context, tx *sql.Tx, c *model.Cart) error
	getTxFn               func(ctx context.Context, tx *sql.Tx, id uint64) (*model.Cart, error)
	getFn                 func(ctx context.Context, id uint64) (*model.Cart, error)
	activeByUserEventTxFn func(ctx context.Context, tx *sql.Tx, userID, eventID uint64) (*model.Cart, error)
	activeByUserEventFn   func(ctx context.Context, userID, eventID uint64) (*model.Cart, error)
	itemsTxFn             func(ctx context.Context, tx *sql.Tx, cartID uint64) ([]model.CartItem, error)
	itemsFn               func(ctx context.Context, cartID uint64) ([]model.CartItem, error)
	getItemFn             func(ctx context.Context, tx *sql.Tx, cartID, itemID uint64) (*model.CartItem, error)
	upsertItemFn          func(ctx context.Context, tx *sql.Tx, it *model.CartItem) error
	setItemQuantityFn     func(ctx context.Context, tx *sql.Tx, itemID uint64, qty int) error
	deleteItemFn          func(ctx context.Context, tx *sql.Tx, itemID uint64) error
	touchFn               func(ctx context.Context, tx *sql.Tx, cartID uint64, expiresAt time.Time) error
	transitionFn          func(ctx context.Context, tx *sql.Tx, cartID uint64, from, to string) (bool, error)
	expiredActiveFn       func(ctx context.Context, now time.Time, limit int) ([]uint64, error)
}

func (m *mockCartStore) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Cart) error {
	return m.createFn(ctx, tx, c)
}
func (m *mockCartStore) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Cart, error) {
	return m.getTxFn(ctx, tx, id)
}
func (m *mockCartStore) Get(ctx context.Context, id uint64) (*model.Cart, error) {
	return m.getFn(ctx, id)
}
func (m *mockCartStore) ActiveByUserEventTx(ctx context.Context, tx *sql.Tx, userID, eventID uint64) (*model.Cart, error) {
	return m.activeByUserEventTxFn(ctx, tx, userID, eventID)
}
func (m *mockCartStore) ActiveByUserEvent(ctx context.Context, userID, eventID uint64) (*model.Cart, error) {
	return m.activeByUserEventFn(ctx, userID, eventID)
}
func (m *mockCartStore) ItemsTx(ctx context.Context, tx *sql.Tx, cartID uint64) ([]model.CartItem, error) {
	return m.itemsTxFn(ctx, tx, cartID)
}
func (m *mockCartStore) Items(ctx context.Context, cartID uint64) ([]model.CartItem, error) {
	return m.itemsFn(ctx, cartID)
}
func (m *mockCartStore) GetItemTx(ctx context.Context, tx *sql.Tx, cartID, itemID uint64) (*model.CartItem, error) {
	return m.getItemFn(ctx, tx, cartID, itemID)
}
func (m *mockCartStore) UpsertItemTx(ctx context.Context, tx *sql.Tx, it *model.CartItem) error {
	return m.upsertItemFn(ctx, tx, it)
}
func (m *mockCartStore) SetItemQuantityTx(ctx context.Context, tx *sql.Tx, itemID uint64, qty int) error {
	return m.setItemQuantityFn(ctx, tx, itemID, qty)
}
func (m *mockCartStore) DeleteItemTx(ctx context.Context, tx *sql.Tx, itemID uint64) error {
	return m.deleteItemFn(ctx, tx, itemID)
}
func (m *mockCartStore) TouchTx(ctx context.Context, tx *sql.Tx, cartID uint64, expiresAt time.Time) error {
	return m.touchFn(ctx, tx, cartID, expiresAt)
}
func (m *mockCartStore) TransitionTx(ctx context.Context, tx *sql.Tx, cartID uint64, from, to string) (bool, error) {
	return m.transitionFn(ctx, tx, cartID, from, to)
}
func (m *mockCartStore) ExpiredActive(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	return m.expiredActiveFn(ctx, now, limit)
}

type mockBookingStore struct {
	createFn           func(ctx context.Context, tx *sql.Tx, b *model.Booking, items []model.BookingItem) error
	getTxFn            func(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error)
	getFn              func(ctx context.Context, id uint64) (*model.Booking, error)
	itemsTxFn          func(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]model.BookingItem, error)
	itemsFn            func(ctx context.Context, bookingID uint64) ([]model.BookingItem, error)
	listByUserFn       func(ctx context.Context, userID uint64) ([]model.Booking, error)
	claimTransactionFn func(ctx context.Context, bookingID uint64, transactionID string) (bool, error)
	transitionFn       func(ctx context.Context, tx *sql.Tx, bookingID uint64, toStatus, toPayment string) (bool, error)
	insertTicketsFn    func(ctx context.Context, tx *sql.Tx, tickets []model.Ticket) error
	countTicketsFn     func(ctx context.Context, bookingID uint64) (int, error)
	stalePendingFn     func(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error)
}

func (m *mockBookingStore) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking, items []model.BookingItem) error {
	return m.createFn(ctx, tx, b, items)
}
func (m *mockBookingStore) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	return m.getTxFn(ctx, tx, id)
}
func (m *mockBookingStore) Get(ctx context.Context, id uint64) (*model.Booking, error) {
	return m.getFn(ctx, id)
}
func (m *mockBookingStore) ItemsTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]model.BookingItem, error) {
	return m.itemsTxFn(ctx, tx, bookingID)
}
func (m *mockBookingStore) Items(ctx context.Context, bookingID uint64) ([]model.BookingItem, error) {
	return m.itemsFn(ctx, bookingID)
}
func (m *mockBookingStore) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return m.listByUserFn(ctx, userID)
}
func (m *mockBookingStore) ClaimTransaction(ctx context.Context, bookingID uint64, transactionID string) (bool, error) {
	return m.claimTransactionFn(ctx, bookingID, transactionID)
}
func (m *mockBookingStore) TransitionTx(ctx context.Context, tx *sql.Tx, bookingID uint64, toStatus, toPayment string) (bool, error) {
	return m.transitionFn(ctx, tx, bookingID, toStatus, toPayment)
}
func (m *mockBookingStore) InsertTicketsTx(ctx context.Context, tx *sql.Tx, tickets []model.Ticket) error {
	return m.insertTicketsFn(ctx, tx, tickets)
}
func (m *mockBookingStore) CountTickets(ctx context.Context, bookingID uint64) (int, error) {
	return m.countTicketsFn(ctx, bookingID)
}
func (m *mockBookingStore) StalePending(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	return m.stalePendingFn(ctx, cutoff, limit)
}

type mockPublisher struct {
	published []string
	publishFn func(ctx context.Context, queueName string, payload any) error
}

func (m *mockPublisher) Publish(ctx context.Context, queueName string, payload any) error {
	m.published = append(m.published, queueName)
	if m.publishFn != nil {
		return m.publishFn(ctx, queueName, payload)
	}
	return nil
}

type mockGateway struct {
	createFn func(ctx context.Context, amountCents int64, currency, reference string) (*payment.Transaction, error)
	fetchFn  func(ctx context.Context, transactionID string) (*payment.Transaction, error)
	verifyFn func(transactionID, paymentID, signature string) bool
}

func (m *mockGateway) CreateTransaction(ctx context.Context, amountCents int64, currency, reference string) (*payment.Transaction, error) {
	return m.createFn(ctx, amountCents, currency, reference)
}
func (m *mockGateway) FetchTransaction(ctx context.Context, transactionID string) (*payment.Transaction, error) {
	return m.fetchFn(ctx, transactionID)
}
func (m *mockGateway) VerifyProof(transactionID, paymentID, signature string) bool {
	return m.verifyFn(transactionID, paymentID, signature)
}

// passTx is a runTx stand-in that executes the function with a nil
// transaction handle; the mocks never dereference it.
func passTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}
