package gateway

import (
	"context"
	"log"
	"strings"
	"ticketing/src/types"
	"time"

	"github.com/stripe/stripe-go/v82"
)

// paymentIntentAPI is the subset of stripe.Client.V1PaymentIntents used here.
type paymentIntentAPI interface {
	Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
	Retrieve(ctx context.Context, id string, params *stripe.PaymentIntentRetrieveParams) (*stripe.PaymentIntent, error)
}

// StripeClient maps orders onto PaymentIntents. The intent id doubles as order id and payment id.
type StripeClient struct {
	intents  paymentIntentAPI
	currency string
	timeout  time.Duration
	now      func() time.Time
}

func NewStripeClient(apiKey, currency string, timeout time.Duration) *StripeClient {
	sc := stripe.NewClient(apiKey)
	return newStripeClient(sc.V1PaymentIntents, currency, timeout)
}

func newStripeClient(intents paymentIntentAPI, currency string, timeout time.Duration) *StripeClient {
	if currency == "" {
		currency = "INR"
	}
	return &StripeClient{intents: intents, currency: currency, timeout: timeout, now: time.Now}
}

func (c *StripeClient) Provider() string { return ProviderStripe }

func (c *StripeClient) CreateOrder(ctx context.Context, amount int64, currency string) (*Order, error) {
	if currency == "" {
		currency = c.currency
	}
	if err := validateOrder(amount, currency); err != nil {
		return nil, err
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()
	receipt := receiptLabel(c.now())
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(strings.ToLower(currency)),
	}
	params.AddMetadata("receipt", receipt)
	pi, err := c.intents.Create(ctx, params)
	if err != nil {
		log.Printf("[Stripe] Error creating PaymentIntent: %s\n", err.Error())
		return nil, &types.GatewayError{Op: "create order", Err: err}
	}
	log.Printf("[PaymentIntent] ID: %s %s\n", pi.ID, pi.Status)
	return intentToOrder(pi, receipt), nil
}

func (c *StripeClient) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, types.NewValidationError("orderId", "is required")
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()
	pi, err := c.intents.Retrieve(ctx, orderID, &stripe.PaymentIntentRetrieveParams{})
	if err != nil {
		log.Printf("[Stripe] Error retrieving PaymentIntent %s: %s\n", orderID, err.Error())
		return nil, &types.GatewayError{Op: "fetch order", Err: err}
	}
	return intentToOrder(pi, pi.Metadata["receipt"]), nil
}

func (c *StripeClient) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func intentToOrder(pi *stripe.PaymentIntent, receipt string) *Order {
	return &Order{
		ID:       pi.ID,
		Amount:   pi.Amount,
		Currency: strings.ToUpper(string(pi.Currency)),
		Receipt:  receipt,
		Status:   string(pi.Status),
	}
}
