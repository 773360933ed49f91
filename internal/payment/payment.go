// Package payment defines the payment processor collaborator boundary and the
// merchant's provider selection policy. A processor turns an amount and
// currency into a pending payment reference; success or failure arrives later
// through provider webhooks.
package payment

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/ucpify/ucpify/internal/merchant"
)

// Provider namespaces as declared in merchant payment handlers.
const (
	ProviderStripe = "stripe"
	ProviderPayPal = "paypal"

	namespaceStripe = "com.stripe"
	namespacePayPal = "com.paypal"
)

// ErrProcessor wraps any provider-side failure while creating a pending
// payment.
var ErrProcessor = errors.New("payment processor error")

// PendingPayment is the provider's reference for a payment awaiting
// confirmation.
type PendingPayment struct {
	Provider string
	Ref      string
}

// Processor creates a pending payment for the given amount in minor units.
// The reference ties the payment back to the checkout session.
type Processor interface {
	CreatePendingPayment(ctx context.Context, amount int64, currency, reference string) (*PendingPayment, error)
}

// Select picks the processor for a merchant configuration: Stripe when
// configured, else PayPal when configured, else nil (orders proceed without a
// payment reference). A handler declared without API credentials gets a local
// mock processor, so starter configs work out of the box.
func Select(cfg *merchant.Config) Processor {
	if h := cfg.PaymentHandlerFor(namespaceStripe); h != nil {
		if key := h.Config["secret_key"]; key != "" {
			return NewStripe(key)
		}
		return NewMock(ProviderStripe)
	}
	if h := cfg.PaymentHandlerFor(namespacePayPal); h != nil {
		if id, secret := h.Config["client_id"], h.Config["client_secret"]; id != "" && secret != "" {
			return NewPayPal(id, secret)
		}
		return NewMock(ProviderPayPal)
	}
	return nil
}
