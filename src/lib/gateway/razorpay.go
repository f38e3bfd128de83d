package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"ticketing/src/types"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
)

// orderAPI is the subset of razorpay-go's Order resource used here.
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(orderID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type RazorpayClient struct {
	orders   orderAPI
	currency string
	timeout  time.Duration
	now      func() time.Time
}

func NewRazorpayClient(keyID, secret, currency string, timeout time.Duration) *RazorpayClient {
	client := razorpay.NewClient(keyID, secret)
	return newRazorpayClient(client.Order, currency, timeout)
}

func newRazorpayClient(orders orderAPI, currency string, timeout time.Duration) *RazorpayClient {
	if currency == "" {
		currency = "INR"
	}
	return &RazorpayClient{orders: orders, currency: currency, timeout: timeout, now: time.Now}
}

func (c *RazorpayClient) Provider() string { return ProviderRazorpay }

func (c *RazorpayClient) CreateOrder(ctx context.Context, amount int64, currency string) (*Order, error) {
	if currency == "" {
		currency = c.currency
	}
	currency = strings.ToUpper(currency)
	if err := validateOrder(amount, currency); err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receiptLabel(c.now()),
	}
	body, err := call(ctx, c.timeout, func() (map[string]interface{}, error) {
		return c.orders.Create(data, nil)
	})
	if err != nil {
		log.Printf("[Razorpay] Order creation failed: %s\n", err.Error())
		return nil, &types.GatewayError{Op: "create order", Err: err}
	}
	order, err := parseRazorpayOrder(body)
	if err != nil {
		return nil, &types.GatewayError{Op: "create order", Err: err}
	}
	log.Printf("[Razorpay] Created order %s for %d %s\n", order.ID, order.Amount, order.Currency)
	return order, nil
}

func (c *RazorpayClient) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, types.NewValidationError("orderId", "is required")
	}
	body, err := call(ctx, c.timeout, func() (map[string]interface{}, error) {
		return c.orders.Fetch(orderID, nil, nil)
	})
	if err != nil {
		log.Printf("[Razorpay] Could not fetch order %s: %s\n", orderID, err.Error())
		return nil, &types.GatewayError{Op: "fetch order", Err: err}
	}
	order, err := parseRazorpayOrder(body)
	if err != nil {
		return nil, &types.GatewayError{Op: "fetch order", Err: err}
	}
	return order, nil
}

func parseRazorpayOrder(body map[string]interface{}) (*Order, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("order response has no id")
	}
	amount, err := toInt64(body["amount"])
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", id, err)
	}
	currency, _ := body["currency"].(string)
	receipt, _ := body["receipt"].(string)
	status, _ := body["status"].(string)
	return &Order{ID: id, Amount: amount, Currency: currency, Receipt: receipt, Status: status}, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("unexpected amount type %T", v)
}
