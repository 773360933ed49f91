// Package checkout implements the checkout session lifecycle: creation,
// partial updates, pricing, validation-message generation, completion, and
// cancellation.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/ucpify/ucpify/internal/catalog"
	"github.com/ucpify/ucpify/internal/order"
)

// Status enumerates the session lifecycle states reachable by this server.
// The UCP protocol additionally reserves "requires_escalation" and
// "complete_in_progress"; no transition here produces them.
type Status string

const (
	StatusIncomplete       Status = "incomplete"
	StatusReadyForComplete Status = "ready_for_complete"
	StatusCompleted        Status = "completed"
	StatusCanceled         Status = "canceled"
)

// Payment status values carried on sessions and orders, updated
// asynchronously by provider webhooks.
const (
	PaymentPending   = "pending"
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
)

// Session expiry: advisory metadata only; operations on an expired session
// are not rejected.
const sessionTTL = time.Hour

// Sentinel errors for session transitions.
var (
	// ErrNotFound is returned when the session ID is unknown.
	ErrNotFound = errors.New("checkout session not found")
	// ErrPaymentFailed is returned when the payment processor rejects the
	// pending payment during completion. The session is left unchanged.
	ErrPaymentFailed = errors.New("payment failed")
)

// NotReadyError is returned by Complete when the session is not in
// ready_for_complete. It carries the current validation messages.
type NotReadyError struct {
	Status   Status
	Messages []Message
}

func (e *NotReadyError) Error() string {
	return "checkout session is not ready for completion"
}

// TerminalStateError is returned by Update when the session is already
// completed or canceled. Terminal sessions never leave their state through
// updates; only webhooks may still touch their payment status.
type TerminalStateError struct {
	Status Status
}

func (e *TerminalStateError) Error() string {
	return "checkout session is " + string(e.Status)
}

// Buyer holds buyer contact fields, partially fillable across updates.
type Buyer struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// LineItem is a priced cart entry holding a snapshot of the resolved item.
// Amounts are minor currency units.
type LineItem struct {
	ID       string       `json:"id"`
	Item     catalog.Item `json:"item"`
	Quantity int          `json:"quantity"`
	Subtotal int64        `json:"subtotal"`
	Total    int64        `json:"total"`
}

// Destination is a fulfillment address. It is assigned an ID on first save.
type Destination struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line_one,omitempty"`
	Line2      string `json:"line_two,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// Total is one component of a totals breakdown.
type Total struct {
	Type        string `json:"type"`
	DisplayText string `json:"display_text,omitempty"`
	Amount      int64  `json:"amount"`
}

// Totals entry types.
const (
	TotalSubtotal    = "subtotal"
	TotalTax         = "tax"
	TotalFulfillment = "fulfillment"
	TotalTotal       = "total"
)

// FulfillmentOption is one shipping choice offered inside a group, priced
// from the merchant's configured shipping options.
type FulfillmentOption struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description,omitempty"`
	EstimatedDays string  `json:"estimated_days,omitempty"`
	Selected      bool    `json:"selected,omitempty"`
	Totals        []Total `json:"totals"`
}

// FulfillmentGroup binds a subset of line items to a chosen option.
type FulfillmentGroup struct {
	ID          string              `json:"id,omitempty"`
	LineItemIDs []string            `json:"line_item_ids"`
	Options     []FulfillmentOption `json:"options"`
}

// FulfillmentMethod describes how a set of line items is delivered.
type FulfillmentMethod struct {
	Type                  string             `json:"type"`
	SelectedDestinationID string             `json:"selected_destination_id,omitempty"`
	Destinations          []Destination      `json:"destinations,omitempty"`
	Groups                []FulfillmentGroup `json:"groups,omitempty"`
}

// Fulfillment holds every method attached to a session.
type Fulfillment struct {
	Methods []FulfillmentMethod `json:"methods"`
}

// Message is a validation finding surfaced to the caller. The message list
// is fully recomputed on every create/update.
type Message struct {
	Type     string `json:"type"`
	Code     string `json:"code"`
	Path     string `json:"path"`
	Severity string `json:"severity"`
	Content  string `json:"content"`
}

// Session is a checkout session record. Totals are always recomputed from
// line items + fulfillment before being stored, never mutated by callers.
type Session struct {
	ID            string       `json:"id"`
	Status        Status       `json:"status"`
	Currency      string       `json:"currency"`
	Buyer         *Buyer       `json:"buyer,omitempty"`
	LineItems     []LineItem   `json:"line_items"`
	Fulfillment   *Fulfillment `json:"fulfillment,omitempty"`
	Totals        []Total      `json:"totals"`
	Messages      []Message    `json:"messages"`
	ContinueURL   string       `json:"continue_url,omitempty"`
	PaymentStatus string       `json:"payment_status,omitempty"`
	OrderID       string       `json:"order_id,omitempty"`
	ExpiresAt     time.Time    `json:"expires_at"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// TotalAmount returns the amount of the "total" totals entry.
func (s *Session) TotalAmount() int64 {
	for _, t := range s.Totals {
		if t.Type == TotalTotal {
			return t.Amount
		}
	}
	return 0
}

// Repository defines persistence for checkout sessions.
type Repository interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	// Complete persists the completed session and its derived order in one
	// transaction; neither write may be observable without the other.
	Complete(ctx context.Context, s *Session, o *order.Order) error
	// SetPaymentStatus records the asynchronous payment outcome reported by a
	// provider webhook. Unknown IDs return ErrNotFound.
	SetPaymentStatus(ctx context.Context, id, status string) error
}
