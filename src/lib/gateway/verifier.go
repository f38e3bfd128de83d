package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"ticketing/src/types"

	"github.com/stripe/stripe-go/v82"
)

// Confirmation is the payload the client relays after paying.
type Confirmation struct {
	OrderID   string
	PaymentID string
	Signature string
	Amount    int64
}

// Verifier decides whether a confirmation payload really came from the gateway.
type Verifier interface {
	Verify(ctx context.Context, c Confirmation) error
}

type VerifierFunc func(ctx context.Context, c Confirmation) error

func (f VerifierFunc) Verify(ctx context.Context, c Confirmation) error { return f(ctx, c) }

// SignatureVerifier checks hex(HMAC-SHA256(secret, orderId|paymentId)).
type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

func (v *SignatureVerifier) Verify(_ context.Context, c Confirmation) error {
	if c.OrderID == "" || c.PaymentID == "" || c.Signature == "" {
		return &types.AuthenticityError{Reason: "order id, payment id and signature are required"}
	}
	got, err := hex.DecodeString(c.Signature)
	if err != nil {
		return &types.AuthenticityError{Reason: "signature is not hex encoded"}
	}
	if !hmac.Equal(got, v.sum(c.OrderID, c.PaymentID)) {
		return &types.AuthenticityError{Reason: "signature mismatch"}
	}
	return nil
}

// Sign produces the signature the gateway attaches for the pair.
func (v *SignatureVerifier) Sign(orderID, paymentID string) string {
	return hex.EncodeToString(v.sum(orderID, paymentID))
}

func (v *SignatureVerifier) sum(orderID, paymentID string) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return mac.Sum(nil)
}

// StripeVerifier has no shared-secret scheme for client relayed payloads, so
// it asks Stripe for the intent and checks it has succeeded for the amount.
type StripeVerifier struct {
	client *StripeClient
}

func NewStripeVerifier(client *StripeClient) *StripeVerifier {
	return &StripeVerifier{client: client}
}

func (v *StripeVerifier) Verify(ctx context.Context, c Confirmation) error {
	if c.PaymentID == "" {
		return &types.AuthenticityError{Reason: "payment id is required"}
	}
	if c.OrderID != "" && c.OrderID != c.PaymentID {
		return &types.AuthenticityError{Reason: "order id does not match payment intent"}
	}
	ctx, cancel := v.client.bound(ctx)
	defer cancel()
	pi, err := v.client.intents.Retrieve(ctx, c.PaymentID, &stripe.PaymentIntentRetrieveParams{})
	if err != nil {
		return &types.GatewayError{Op: "verify payment", Err: err}
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return &types.AuthenticityError{Reason: fmt.Sprintf("payment intent is %s", pi.Status)}
	}
	if c.Amount > 0 && pi.Amount != c.Amount {
		return &types.AuthenticityError{Reason: "amount does not match payment intent"}
	}
	return nil
}
