// Package gateway wraps the external payment-order APIs. It keeps no local state.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"ticketing/src/config"
	"ticketing/src/types"
	"time"
)

const (
	ProviderRazorpay = "razorpay"
	ProviderStripe   = "stripe"
)

// Order is the gateway's payment intent. It is never stored locally.
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

type Client interface {
	Provider() string
	CreateOrder(ctx context.Context, amount int64, currency string) (*Order, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
}

// New builds the client and the matching confirmation verifier for the configured provider.
func New(cfg config.Gateway, timeout time.Duration) (Client, Verifier, error) {
	switch cfg.Provider {
	case ProviderRazorpay, "":
		if cfg.RazorpayKeyID == "" || cfg.RazorpaySecret == "" {
			return nil, nil, errors.New("razorpay key id and secret are required")
		}
		return NewRazorpayClient(cfg.RazorpayKeyID, cfg.RazorpaySecret, cfg.Currency, timeout),
			NewSignatureVerifier(cfg.RazorpaySecret), nil
	case ProviderStripe:
		if cfg.StripeSecretKey == "" {
			return nil, nil, errors.New("stripe secret key is required")
		}
		c := NewStripeClient(cfg.StripeSecretKey, cfg.Currency, timeout)
		return c, NewStripeVerifier(c), nil
	}
	return nil, nil, fmt.Errorf("unknown gateway provider %q", cfg.Provider)
}

func validateOrder(amount int64, currency string) error {
	if amount <= 0 {
		return types.NewValidationError("amount", "must be a positive integer in minor currency units")
	}
	if len(strings.TrimSpace(currency)) != 3 {
		return types.NewValidationError("currency", "must be a 3 letter ISO code")
	}
	return nil
}

func receiptLabel(now time.Time) string {
	return fmt.Sprintf("receipt_%d", now.UnixMilli())
}

// call runs fn under ctx with a deadline. fn keeps running in the background
// when the deadline passes, but its result is discarded.
func call[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
