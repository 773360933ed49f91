package checkout

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/ucpify/ucpify/internal/catalog"
	"github.com/ucpify/ucpify/internal/ids"
	"github.com/ucpify/ucpify/internal/merchant"
	"github.com/ucpify/ucpify/internal/order"
	"github.com/ucpify/ucpify/internal/payment"
	"github.com/ucpify/ucpify/pkg/keylock"
)

// Request bounds enforced at creation.
const (
	maxLineItems = 50
	minQuantity  = 1
	maxQuantity  = 100
)

// ValidationError reports a structurally invalid request (bounds violations,
// not business-rule failures).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + e.Reason
}

// LineItemRequest references an item with a quantity. Title and Price seed
// the synthesized listing when the ID is not in the catalog.
type LineItemRequest struct {
	ItemID   string `json:"id"`
	Title    string `json:"title,omitempty"`
	Price    int64  `json:"price,omitempty"`
	Quantity int    `json:"quantity"`
}

// CreateRequest holds the input for creating a session.
type CreateRequest struct {
	Items []LineItemRequest
	Buyer *Buyer
}

// UpdateRequest holds a partial update. Nil fields are absent and leave the
// session untouched; a non-nil Items fully replaces the line-item list.
type UpdateRequest struct {
	Buyer       *Buyer
	Items       []LineItemRequest
	Fulfillment *Fulfillment
}

// Service owns checkout session records and applies every lifecycle
// transition. All mutations of one session are serialized via a per-key lock;
// distinct sessions progress in parallel.
type Service struct {
	merchant *merchant.Config
	catalog  *catalog.Index
	sessions Repository
	payments payment.Processor

	locks *keylock.KeyLock
	now   func() time.Time
	newID func(prefix string) string
}

// NewService creates the checkout session machine. payments may be nil when
// no payment handler is configured; completion then proceeds without a
// payment reference.
func NewService(
	cfg *merchant.Config,
	idx *catalog.Index,
	sessions Repository,
	payments payment.Processor,
) *Service {
	return &Service{
		merchant: cfg,
		catalog:  idx,
		sessions: sessions,
		payments: payments,
		locks:    keylock.New(),
		now:      time.Now,
		newID:    ids.New,
	}
}

// Create builds a new session from 1-50 line item requests, prices it,
// validates it, and persists it in incomplete or ready_for_complete.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	if err := validateItemRequests(req.Items); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sess := &Session{
		ID:        s.newID(ids.Checkout),
		Currency:  s.merchant.Currency,
		Buyer:     req.Buyer,
		LineItems: s.resolveLineItems(req.Items),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(sessionTTL),
	}
	sess.ContinueURL = s.merchant.Domain + "/checkout/" + sess.ID
	s.recompute(sess)

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, errors.Wrap(err, "save session")
	}

	zctx.From(ctx).Info("checkout session created",
		zap.String("checkout_id", sess.ID),
		zap.String("status", string(sess.Status)),
		zap.Int("line_items", len(sess.LineItems)),
	)
	return sess, nil
}

// Get returns the session or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.sessions.Get(ctx, id)
}

// Update applies a partial update: shallow-merges buyer fields, replaces the
// line-item list when present, normalizes fulfillment when present, then
// reprices and revalidates the whole session.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status == StatusCompleted || sess.Status == StatusCanceled {
		// A completed session must keep pointing at its order, and a canceled
		// one must stay canceled; recomputing status would resurrect both.
		return nil, &TerminalStateError{Status: sess.Status}
	}

	if req.Buyer != nil {
		sess.Buyer = mergeBuyer(sess.Buyer, req.Buyer)
	}
	if req.Items != nil {
		if err := validateItemRequests(req.Items); err != nil {
			return nil, err
		}
		sess.LineItems = s.resolveLineItems(req.Items)
	}
	if req.Fulfillment != nil {
		sess.Fulfillment = s.normalizeFulfillment(req.Fulfillment, sess.LineItems)
	}

	sess.UpdatedAt = s.now().UTC()
	s.recompute(sess)

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, errors.Wrap(err, "save session")
	}
	return sess, nil
}

// Complete transitions a ready session to completed: requests a pending
// payment when the total is positive, projects the order, and persists
// session + order atomically. A processor failure aborts with
// ErrPaymentFailed and no state change.
func (s *Service) Complete(ctx context.Context, id string) (*Session, *order.Order, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if sess.Status != StatusReadyForComplete {
		return nil, nil, &NotReadyError{Status: sess.Status, Messages: sess.Messages}
	}

	now := s.now().UTC()

	var pending *payment.PendingPayment
	if amount := sess.TotalAmount(); amount > 0 && s.payments != nil {
		pending, err = s.payments.CreatePendingPayment(ctx, amount, sess.Currency, sess.ID)
		if err != nil {
			zctx.From(ctx).Error("pending payment failed",
				zap.String("checkout_id", sess.ID),
				zap.Error(err),
			)
			return nil, nil, errors.Wrap(ErrPaymentFailed, err.Error())
		}
	}

	o := s.projectOrder(sess, pending, now)

	sess.Status = StatusCompleted
	sess.OrderID = o.ID
	sess.ContinueURL = ""
	sess.Messages = nil
	sess.UpdatedAt = now
	if pending != nil {
		sess.PaymentStatus = PaymentPending
	}

	if err := s.sessions.Complete(ctx, sess, o); err != nil {
		return nil, nil, errors.Wrap(err, "complete session")
	}

	zctx.From(ctx).Info("checkout session completed",
		zap.String("checkout_id", sess.ID),
		zap.String("order_id", o.ID),
		zap.Int64("total", sess.TotalAmount()),
	)
	return sess, o, nil
}

// Cancel unconditionally transitions any existing session to canceled and
// clears its continuation URL. It is idempotent; only a never-existing
// session fails, with ErrNotFound.
func (s *Service) Cancel(ctx context.Context, id string) (*Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	sess.Status = StatusCanceled
	sess.ContinueURL = ""
	sess.UpdatedAt = s.now().UTC()

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, errors.Wrap(err, "save session")
	}
	return sess, nil
}

// resolveLineItems resolves each request against the catalog. Unknown IDs are
// never rejected: the listing is synthesized from caller-supplied title and
// price (defaulting to 0).
func (s *Service) resolveLineItems(reqs []LineItemRequest) []LineItem {
	items := make([]LineItem, len(reqs))
	for i, r := range reqs {
		item, ok := s.catalog.Lookup(r.ItemID)
		if !ok {
			item = catalog.Item{ID: r.ItemID, Title: r.Title, Price: r.Price}
		}
		items[i] = LineItem{
			ID:       lineItemID(i),
			Item:     item,
			Quantity: r.Quantity,
		}
	}
	return priceLineItems(items)
}

// normalizeFulfillment assigns IDs to destinations lacking one and, for
// methods without explicit groups, synthesizes one group spanning all current
// line items with every configured shipping option, the first auto-selected.
// Explicit groups are reduced to at most one selected option each.
func (s *Service) normalizeFulfillment(f *Fulfillment, items []LineItem) *Fulfillment {
	for mi := range f.Methods {
		m := &f.Methods[mi]
		for di := range m.Destinations {
			if m.Destinations[di].ID == "" {
				m.Destinations[di].ID = s.newID(ids.Destination)
			}
		}
		if len(m.Groups) == 0 {
			m.Groups = []FulfillmentGroup{s.defaultGroup(items)}
			continue
		}
		for gi := range m.Groups {
			selectFirstOnly(m.Groups[gi].Options)
		}
	}
	return f
}

// selectFirstOnly keeps the first selected option and clears any further
// selections, so each group carries at most one selected option and its cost
// is counted once.
func selectFirstOnly(opts []FulfillmentOption) {
	found := false
	for i := range opts {
		if !opts[i].Selected {
			continue
		}
		if found {
			opts[i].Selected = false
		}
		found = true
	}
}

func (s *Service) defaultGroup(items []LineItem) FulfillmentGroup {
	itemIDs := make([]string, len(items))
	for i, li := range items {
		itemIDs[i] = li.ID
	}

	opts := make([]FulfillmentOption, len(s.merchant.ShippingOptions))
	for i, so := range s.merchant.ShippingOptions {
		opts[i] = FulfillmentOption{
			ID:            so.ID,
			Title:         so.Title,
			Description:   so.Description,
			EstimatedDays: so.EstimatedDays,
			Selected:      i == 0,
			Totals: []Total{
				{Type: TotalSubtotal, Amount: so.Price},
				{Type: TotalTotal, Amount: so.Price},
			},
		}
	}
	return FulfillmentGroup{LineItemIDs: itemIDs, Options: opts}
}

// recompute reprices and revalidates the session in place.
func (s *Service) recompute(sess *Session) {
	sess.Totals = computeTotals(sess.LineItems, sess.Fulfillment, s.merchant.TaxRate)
	sess.Messages = validate(sess)
	sess.Status = statusFor(sess.Messages)
}

// projectOrder derives the immutable order record from a completed session.
func (s *Service) projectOrder(sess *Session, pending *payment.PendingPayment, now time.Time) *order.Order {
	o := &order.Order{
		ID:         s.newID(ids.Order),
		CheckoutID: sess.ID,
		Currency:   sess.Currency,
		LineItems:  make([]order.LineItem, len(sess.LineItems)),
		Totals:     make([]order.Total, len(sess.Totals)),
		CreatedAt:  now,
	}
	for i, li := range sess.LineItems {
		o.LineItems[i] = order.LineItem{
			ID:       li.ID,
			Item:     li.Item,
			Quantity: li.Quantity,
			Subtotal: li.Subtotal,
			Total:    li.Total,
		}
	}
	for i, t := range sess.Totals {
		o.Totals[i] = order.Total{Type: t.Type, DisplayText: t.DisplayText, Amount: t.Amount}
	}
	if sess.Buyer != nil {
		b := order.Buyer(*sess.Buyer)
		o.Buyer = &b
	}
	o.Fulfillment = projectFulfillment(sess.Fulfillment)
	if pending != nil {
		o.PaymentStatus = PaymentPending
		o.PaymentProvider = pending.Provider
		o.ProviderRef = pending.Ref
	}
	return o
}

// projectFulfillment flattens the fulfillment plan into per-group delivery
// expectations, capturing the selected option of each group.
func projectFulfillment(f *Fulfillment) []order.FulfillmentExpectation {
	if f == nil {
		return nil
	}
	var out []order.FulfillmentExpectation
	for _, m := range f.Methods {
		for _, g := range m.Groups {
			exp := order.FulfillmentExpectation{
				Type:          m.Type,
				DestinationID: m.SelectedDestinationID,
				LineItemIDs:   g.LineItemIDs,
			}
			for _, opt := range g.Options {
				if !opt.Selected {
					continue
				}
				exp.OptionID = opt.ID
				exp.OptionTitle = opt.Title
				exp.EstimatedDays = opt.EstimatedDays
				for _, t := range opt.Totals {
					if t.Type == TotalTotal {
						exp.FulfillmentCost = t.Amount
					}
				}
			}
			out = append(out, exp)
		}
	}
	return out
}

func mergeBuyer(dst, src *Buyer) *Buyer {
	if dst == nil {
		b := *src
		return &b
	}
	if src.FirstName != "" {
		dst.FirstName = src.FirstName
	}
	if src.LastName != "" {
		dst.LastName = src.LastName
	}
	if src.Email != "" {
		dst.Email = src.Email
	}
	if src.PhoneNumber != "" {
		dst.PhoneNumber = src.PhoneNumber
	}
	return dst
}

func validateItemRequests(reqs []LineItemRequest) error {
	if len(reqs) == 0 {
		return &ValidationError{Reason: "at least one line item is required"}
	}
	if len(reqs) > maxLineItems {
		return &ValidationError{Reason: "at most 50 line items are allowed"}
	}
	for _, r := range reqs {
		if r.Quantity < minQuantity || r.Quantity > maxQuantity {
			return &ValidationError{Reason: "quantity must be between 1 and 100"}
		}
	}
	return nil
}

func lineItemID(i int) string {
	// Deterministic per-position IDs keep recomputation stable across updates.
	return "li_" + strconv.Itoa(i+1)
}
