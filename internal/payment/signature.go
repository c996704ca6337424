package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the hex-encoded HMAC-SHA256 of
// "<transactionID>|<paymentID>" under the gateway secret.  The
// gateway produces the same value after a successful charge; the
// client relays it as proof of payment.
func Sign(secret, transactionID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(transactionID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a relayed proof in constant time.  Amounts
// never enter the computation: the signature binds the payment to the
// transaction the coordinator itself opened, whose amount it already
// knows.
func VerifySignature(secret, transactionID, paymentID, signature string) bool {
	expected := Sign(secret, transactionID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
