// Package payment implements the coordinator's side of the external
// payment gateway protocol: opening transactions, fetching their
// outcome during reconciliation, and verifying the signed proof the
// client relays after completing the gateway UI.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Transaction statuses reported by the gateway.
const (
	StatusCreated = "created"
	StatusPaid    = "paid"
	StatusFailed  = "failed"
)

// Transaction is a gateway transaction opened for a booking.  The
// GatewayKey is forwarded to the client so it can mount the gateway's
// own checkout UI.
type Transaction struct {
	ID          string `json:"id"`
	GatewayKey  string `json:"gateway_key"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	Status      string `json:"status"`
	PaymentID   string `json:"payment_id,omitempty"`
}

// Gateway is the coordinator's view of the payment provider.  The
// checkout orchestrator depends on this interface; the HTTP client
// below is the production implementation and tests substitute their
// own.
type Gateway interface {
	// CreateTransaction opens a transaction for the given amount.
	// Implementations must be safe to retry: the reference is the
	// booking number and the idempotency key is derived from it.
	CreateTransaction(ctx context.Context, amountCents int64, currency, reference string) (*Transaction, error)
	// FetchTransaction returns the gateway's current view of a
	// transaction.  Reconciliation uses it to resolve bookings whose
	// confirmation callback never arrived.
	FetchTransaction(ctx context.Context, transactionID string) (*Transaction, error)
	// VerifyProof checks the signed proof relayed by the client
	// against the transaction and payment ids.  It must never trust
	// any client-supplied amount.
	VerifyProof(transactionID, paymentID, signature string) bool
}

// HTTPGateway talks to the gateway's REST API with key-id/secret
// authentication.  The secret also keys proof verification, so a
// proof can only have been produced by the gateway.
type HTTPGateway struct {
	baseURL string
	keyID   string
	secret  string
	client  *http.Client
}

// NewHTTPGateway constructs a gateway client.  The base URL carries
// no trailing slash.
func NewHTTPGateway(baseURL, keyID, secret string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		keyID:   keyID,
		secret:  secret,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateTransaction opens a gateway transaction.  The idempotency key
// is a UUIDv5 of the booking reference, so retries for the same
// booking replay the original transaction instead of opening a second
// one.
func (g *HTTPGateway) CreateTransaction(ctx context.Context, amountCents int64, currency, reference string) (*Transaction, error) {
	payload := map[string]any{
		"amount":    amountCents,
		"currency":  currency,
		"reference": reference,
	}
	idemKey := uuid.NewSHA1(uuid.NameSpaceURL, []byte("txn:"+reference)).String()
	var txn Transaction
	if err := g.post(ctx, "/v1/transactions", idemKey, payload, &txn); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	txn.GatewayKey = g.keyID
	return &txn, nil
}

// FetchTransaction reads a transaction's current state.
func (g *HTTPGateway) FetchTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.baseURL+"/v1/transactions/"+transactionID, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(g.keyID, g.secret)
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch transaction: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch transaction: gateway returned %d: %s", resp.StatusCode, body)
	}
	var txn Transaction
	if err := json.NewDecoder(resp.Body).Decode(&txn); err != nil {
		return nil, fmt.Errorf("fetch transaction: decode: %w", err)
	}
	return &txn, nil
}

// VerifyProof recomputes the expected signature from the stored
// transaction id and the gateway-issued payment id.
func (g *HTTPGateway) VerifyProof(transactionID, paymentID, signature string) bool {
	return VerifySignature(g.secret, transactionID, paymentID, signature)
}

func (g *HTTPGateway) post(ctx context.Context, path, idemKey string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idemKey)
	req.SetBasicAuth(g.keyID, g.secret)
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, b)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
