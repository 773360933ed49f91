// Package order defines the immutable order record derived from a completed
// checkout session. Orders carry frozen copies of line items, buyer, and
// totals as they were at completion time; only the payment status may change
// afterwards, driven by provider webhooks.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/ucpify/ucpify/internal/catalog"
)

// ErrNotFound is returned when the order ID is unknown.
var ErrNotFound = errors.New("order not found")

// LineItem is a frozen copy of a session line item. Amounts are minor
// currency units.
type LineItem struct {
	ID       string       `json:"id"`
	Item     catalog.Item `json:"item"`
	Quantity int          `json:"quantity"`
	Subtotal int64        `json:"subtotal"`
	Total    int64        `json:"total"`
}

// Buyer is a frozen copy of the session buyer.
type Buyer struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// Total is one component of the frozen totals breakdown.
type Total struct {
	Type        string `json:"type"`
	DisplayText string `json:"display_text,omitempty"`
	Amount      int64  `json:"amount"`
}

// FulfillmentExpectation records what was promised for a set of line items:
// the delivery type, destination, and the chosen option.
type FulfillmentExpectation struct {
	Type            string   `json:"type"`
	DestinationID   string   `json:"destination_id,omitempty"`
	LineItemIDs     []string `json:"line_item_ids"`
	OptionID        string   `json:"option_id,omitempty"`
	OptionTitle     string   `json:"option_title,omitempty"`
	EstimatedDays   string   `json:"estimated_days,omitempty"`
	FulfillmentCost int64    `json:"fulfillment_cost"`
}

// Order is the immutable record created when a checkout session completes.
type Order struct {
	ID              string                   `json:"id"`
	CheckoutID      string                   `json:"checkout_id"`
	Currency        string                   `json:"currency"`
	LineItems       []LineItem               `json:"line_items"`
	Buyer           *Buyer                   `json:"buyer,omitempty"`
	Totals          []Total                  `json:"totals"`
	Fulfillment     []FulfillmentExpectation `json:"fulfillment,omitempty"`
	PaymentStatus   string                   `json:"payment_status,omitempty"`
	PaymentProvider string                   `json:"payment_provider,omitempty"`
	ProviderRef     string                   `json:"provider_ref,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
}

// Repository defines persistence for orders. Creation happens inside the
// checkout repository's completion transaction; this interface covers reads
// and the asynchronous payment-status updates.
type Repository interface {
	Get(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context) ([]*Order, error)
	// SetPaymentStatus updates the payment status of the order (and is a
	// no-op returning ErrNotFound when the ID is unknown).
	SetPaymentStatus(ctx context.Context, id, status string) error
	// SetPaymentStatusByProviderRef updates payment status by the provider's
	// payment reference, for webhooks that do not carry the order ID.
	SetPaymentStatusByProviderRef(ctx context.Context, providerRef, status string) error
}
