package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ucpify/ucpify/internal/catalog"
	"github.com/ucpify/ucpify/internal/merchant"
	"github.com/ucpify/ucpify/internal/order"
	"github.com/ucpify/ucpify/internal/payment"
)

func itemWithPrice(price int64) catalog.Item {
	return catalog.Item{ID: "test_item", Title: "Test Item", Price: price}
}

// fakeRepo stores records as JSON so reads hand out copies, like the real
// repositories do.
type fakeRepo struct {
	sessions map[string][]byte
	orders   []*order.Order
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{sessions: make(map[string][]byte)}
}

func (r *fakeRepo) Get(_ context.Context, id string) (*Session, error) {
	raw, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *fakeRepo) Save(_ context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	r.sessions[s.ID] = raw
	return nil
}

func (r *fakeRepo) Complete(ctx context.Context, s *Session, o *order.Order) error {
	if err := r.Save(ctx, s); err != nil {
		return err
	}
	r.orders = append(r.orders, o)
	return nil
}

func (r *fakeRepo) SetPaymentStatus(ctx context.Context, id, status string) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	s.PaymentStatus = status
	return r.Save(ctx, s)
}

func newTestService(t *testing.T, cfg *merchant.Config, payments payment.Processor) (*Service, *fakeRepo) {
	t.Helper()
	if cfg == nil {
		cfg = merchant.Sample()
	}
	repo := newFakeRepo()
	svc := NewService(cfg, catalog.NewIndex(cfg.Items), repo, payments)

	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	seq := 0
	svc.newID = func(prefix string) string {
		seq++
		return fmt.Sprintf("%s%06d", prefix, seq)
	}
	return svc, repo
}

func TestCreatePricesAndValidates(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)

	sess, err := svc.Create(context.Background(), CreateRequest{
		Items: []LineItemRequest{{ItemID: "item_001", Quantity: 2}},
	})
	require.NoError(t, err)

	require.Equal(t, StatusIncomplete, sess.Status)
	require.Equal(t, "USD", sess.Currency)
	require.Equal(t, "http://localhost:3000/checkout/"+sess.ID, sess.ContinueURL)

	require.Len(t, sess.LineItems, 1)
	li := sess.LineItems[0]
	require.Equal(t, "li_1", li.ID)
	require.Equal(t, "Classic T-Shirt", li.Item.Title)
	require.EqualValues(t, 5000, li.Subtotal)

	require.Equal(t, []Total{
		{Type: TotalSubtotal, DisplayText: "Subtotal", Amount: 5000},
		{Type: TotalTax, DisplayText: "Tax", Amount: 400},
		{Type: TotalTotal, DisplayText: "Total", Amount: 5400},
	}, sess.Totals)

	require.Len(t, sess.Messages, 2)
	require.Equal(t, "$.buyer.email", sess.Messages[0].Path)
	require.Equal(t, "$.fulfillment.methods[0].selected_destination_id", sess.Messages[1].Path)
	for _, m := range sess.Messages {
		require.Equal(t, "missing", m.Code)
		require.Equal(t, "recoverable", m.Severity)
	}

	require.Equal(t, sess.CreatedAt.Add(time.Hour), sess.ExpiresAt)
}

func TestCreateSynthesizesUnknownItems(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)

	sess, err := svc.Create(context.Background(), CreateRequest{
		Items: []LineItemRequest{
			{ItemID: "custom_mug", Title: "Custom Mug", Price: 1250, Quantity: 2},
			{ItemID: "mystery", Quantity: 1},
		},
	})
	require.NoError(t, err)

	require.Equal(t, "Custom Mug", sess.LineItems[0].Item.Title)
	require.EqualValues(t, 2500, sess.LineItems[0].Subtotal)

	// Unknown item with no price defaults to zero, never a rejection.
	require.EqualValues(t, 0, sess.LineItems[1].Item.Price)
	require.EqualValues(t, 0, sess.LineItems[1].Subtotal)
}

func TestCreateRequestBounds(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	many := make([]LineItemRequest, maxLineItems+1)
	for i := range many {
		many[i] = LineItemRequest{ItemID: "item_001", Quantity: 1}
	}
	_, err = svc.Create(ctx, CreateRequest{Items: many})
	require.ErrorAs(t, err, &verr)

	_, err = svc.Create(ctx, CreateRequest{Items: []LineItemRequest{{ItemID: "item_001", Quantity: 0}}})
	require.ErrorAs(t, err, &verr)

	_, err = svc.Create(ctx, CreateRequest{Items: []LineItemRequest{{ItemID: "item_001", Quantity: 101}}})
	require.ErrorAs(t, err, &verr)

	_, err = svc.Create(ctx, CreateRequest{Items: []LineItemRequest{{ItemID: "item_001", Quantity: 100}}})
	require.NoError(t, err)
}

func TestUpdateMergesBuyer(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	ctx := context.Background()

	sess, err := svc.Create(ctx, CreateRequest{
		Items: []LineItemRequest{{ItemID: "item_001", Quantity: 1}},
		Buyer: &Buyer{FirstName: "Ada"},
	})
	require.NoError(t, err)

	sess, err = svc.Update(ctx, sess.ID, UpdateRequest{
		Buyer: &Buyer{Email: "ada@example.com"},
	})
	require.NoError(t, err)

	require.Equal(t, "Ada", sess.Buyer.FirstName)
	require.Equal(t, "ada@example.com", sess.Buyer.Email)

	// Email satisfied; only the destination message remains.
	require.Len(t, sess.Messages, 1)
	require.Equal(t, "$.fulfillment.methods[0].selected_destination_id", sess.Messages[0].Path)
}

func TestUpdateReplacesLineItems(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	ctx := context.Background()

	sess, err := svc.Create(ctx, CreateRequest{
		Items: []LineItemRequest{{ItemID: "item_001", Quantity: 3}},
	})
	require.NoError(t, err)

	sess, err = svc.Update(ctx, sess.ID, UpdateRequest{
		Items: []LineItemRequest{{ItemID: "item_002", Quantity: 1}},
	})
	require.NoError(t, err)

	require.Len(t, sess.LineItems, 1)
	require.Equal(t, "item_002", sess.LineItems[0].Item.ID)
	require.EqualValues(t, 5999, sess.Totals[0].Amount)
}

func TestUpdateNormalizesFulfillment(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	ctx := context.Background()

	sess, err := svc.Create(ctx, CreateRequest{
		Items: []LineItemRequest{{ItemID: "item_001", Quantity: 1}},
	})
	require.NoError(t, err)

	sess, err = svc.Update(ctx, sess.ID, UpdateRequest{
		Fulfillment: &Fulfillment{Methods: []FulfillmentMethod{{
			Type: "shipping",
			Destinations: []Destination{
				{Name: "Ada Lovelace", Line1: "1 Infinite Loop", City: "Cupertino", Country: "US"},
			},
		}}},
	})
	require.NoError(t, err)

	m := sess.Fulfillment.Methods[0]
	require.NotEmpty(t, m.Destinations[0].ID)
	require.Contains(t, m.Destinations[0].ID, "dest_")

	// One synthesized group spanning the cart with every configured option,
	// the first pre-selected.
	require.Len(t, m.Groups, 1)
	g := m.Groups[0]
	require.Equal(t, []string{"li_1"}, g.LineItemIDs)
	require.Len(t, g.Options, 3)
	require.Equal(t, "standard", g.Options[0].ID)
	require.True(t, g.Options[0].Selected)
	require.False(t, g.Options[1].Selected)
	require.Equal(t, []Total{
		{Type: TotalSubtotal, Amount: 500},
		{Type: TotalTotal, Amount: 500},
	}, g.Options[0].Totals)

	// Shipping shows up in the totals breakdown once fulfillment exists.
	require.Equal(t, Total{Type: TotalFulfillment, DisplayText: "Shipping", Amount: 500}, sess.Totals[2])
	require.EqualValues(t, 2500+200+500, sess.TotalAmount())
}

func TestUpdateKeepsOneSelectedOptionPerGroup(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	ctx := context.Background()

	sess, err := svc.Create(ctx, CreateRequest{
		Items: []LineItemRequest{{ItemID: "item_001", Quantity: 1}},
	})
	require.NoError(t, err)

	// Caller supplies an explicit group with two options both marked selected.
	sess, err = svc.Update(ctx, sess.ID, UpdateRequest{
		Fulfillment: &Fulfillment{Methods: []FulfillmentMethod{{
			Type: "shipping",
			Groups: []FulfillmentGroup{{
				LineItemIDs: []string{"li_1"},
				Options: []FulfillmentOption{
					{ID: "standard", Selected: true, Totals: []Total{{Type: TotalTotal, Amount: 500}}},
					{ID: "express", Selected: true, Totals: []Total{{Type: TotalTotal, Amount: 1500}}},
				},
			}},
		}}},
	})
	require.NoError(t, err)

	opts := sess.Fulfillment.Methods[0].Groups[0].Options
	require.True(t, opts[0].Selected)
	require.False(t, opts[1].Selected)

	// Only the surviving selection contributes to the shipping total.
	require.Equal(t, Total{Type: TotalFulfillment, DisplayText: "Shipping", Amount: 500}, sess.Totals[2])
}

func readySession(t *testing.T, svc *Service) *Session {
	t.Helper()
	ctx := context.Background()

	sess, err := svc.Create(ctx, CreateRequest{
		Items: []LineItemRequest{{ItemID: "item_001", Quantity: 1}},
		Buyer: &Buyer{Email: "ada@example.com"},
	})
	require.NoError(t, err)

	sess, err = svc.Update(ctx, sess.ID, UpdateRequest{
		Fulfillment: &Fulfillment{Methods: []FulfillmentMethod{{
			Type:         "shipping",
			Destinations: []Destination{{Name: "Ada", Line1: "1 Infinite Loop"}},
		}}},
	})
	require.NoError(t, err)

	sess, err = svc.Update(ctx, sess.ID, UpdateRequest{
		Fulfillment: &Fulfillment{Methods: []FulfillmentMethod{{
			Type:                  "shipping",
			SelectedDestinationID: sess.Fulfillment.Methods[0].Destinations[0].ID,
			Destinations:          sess.Fulfillment.Methods[0].Destinations,
			Groups:                sess.Fulfillment.Methods[0].Groups,
		}}},
	})
	require.NoError(t, err)

	require.Empty(t, sess.Messages)
	require.Equal(t, StatusReadyForComplete, sess.Status)
	return sess
}

func TestCompleteProjectsOrder(t *testing.T) {
	proc := &payment.Mock{Provider: payment.ProviderStripe}
	svc, repo := newTestService(t, nil, proc)
	sess := readySession(t, svc)

	done, o, err := svc.Complete(context.Background(), sess.ID)
	require.NoError(t, err)

	require.Equal(t, StatusCompleted, done.Status)
	require.Equal(t, o.ID, done.OrderID)
	require.Empty(t, done.ContinueURL)
	require.Empty(t, done.Messages)
	require.Equal(t, PaymentPending, done.PaymentStatus)

	require.Equal(t, sess.ID, o.CheckoutID)
	require.Equal(t, "USD", o.Currency)
	require.Len(t, o.LineItems, 1)
	require.EqualValues(t, 2500, o.LineItems[0].Subtotal)
	require.Equal(t, "ada@example.com", o.Buyer.Email)
	require.Equal(t, PaymentPending, o.PaymentStatus)
	require.Equal(t, payment.ProviderStripe, o.PaymentProvider)
	require.NotEmpty(t, o.ProviderRef)

	require.Len(t, o.Fulfillment, 1)
	exp := o.Fulfillment[0]
	require.Equal(t, "shipping", exp.Type)
	require.Equal(t, "standard", exp.OptionID)
	require.EqualValues(t, 500, exp.FulfillmentCost)
	require.Equal(t, []string{"li_1"}, exp.LineItemIDs)

	// Session and order landed through the atomic path.
	require.Len(t, repo.orders, 1)
	require.Len(t, proc.Created, 1)
	require.EqualValues(t, 3200, proc.Created[0].Amount)
}

func TestCompleteNotReady(t *testing.T) {
	svc, repo := newTestService(t, nil, nil)

	sess, err := svc.Create(context.Background(), CreateRequest{
		Items: []LineItemRequest{{ItemID: "item_001", Quantity: 1}},
	})
	require.NoError(t, err)

	_, _, err = svc.Complete(context.Background(), sess.ID)
	var nre *NotReadyError
	require.ErrorAs(t, err, &nre)
	require.Equal(t, StatusIncomplete, nre.Status)
	require.Len(t, nre.Messages, 2)

	// No order, session untouched.
	require.Empty(t, repo.orders)
	stored, err := svc.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Equal(t, StatusIncomplete, stored.Status)
}

func TestCompletePaymentFailure(t *testing.T) {
	proc := &payment.Mock{Provider: payment.ProviderStripe, Err: payment.ErrProcessor}
	svc, repo := newTestService(t, nil, proc)
	sess := readySession(t, svc)

	_, _, err := svc.Complete(context.Background(), sess.ID)
	require.ErrorIs(t, err, ErrPaymentFailed)

	require.Empty(t, repo.orders)
	stored, err := svc.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReadyForComplete, stored.Status)
}

func TestCompleteZeroTotalSkipsPayment(t *testing.T) {
	cfg := merchant.Sample()
	cfg.TaxRate = decimal.Zero
	cfg.ShippingOptions = nil

	// A processor that would fail proves it is never called.
	proc := &payment.Mock{Provider: payment.ProviderStripe, Err: payment.ErrProcessor}
	svc, _ := newTestService(t, cfg, proc)
	ctx := context.Background()

	sess, err := svc.Create(ctx, CreateRequest{
		Items: []LineItemRequest{{ItemID: "freebie", Quantity: 1}},
		Buyer: &Buyer{Email: "ada@example.com"},
	})
	require.NoError(t, err)

	sess, err = svc.Update(ctx, sess.ID, UpdateRequest{
		Fulfillment: &Fulfillment{Methods: []FulfillmentMethod{{
			Type:                  "digital",
			SelectedDestinationID: "dest_inline",
		}}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusReadyForComplete, sess.Status)
	require.EqualValues(t, 0, sess.TotalAmount())

	done, o, err := svc.Complete(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, done.Status)
	require.Empty(t, done.PaymentStatus)
	require.Empty(t, o.PaymentProvider)
	require.Empty(t, proc.Created)
}

func TestCancelIsUnconditionalAndIdempotent(t *testing.T) {
	proc := &payment.Mock{Provider: payment.ProviderStripe}
	svc, _ := newTestService(t, nil, proc)
	ctx := context.Background()
	sess := readySession(t, svc)

	done, _, err := svc.Complete(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, done.Status)

	// Cancel applies even after completion.
	canceled, err := svc.Cancel(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, canceled.Status)
	require.Empty(t, canceled.ContinueURL)

	// And again, without error.
	canceled, err = svc.Cancel(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, canceled.Status)
}

func TestUpdateRejectedAfterCancel(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	ctx := context.Background()
	sess := readySession(t, svc)

	_, err := svc.Cancel(ctx, sess.ID)
	require.NoError(t, err)

	// Even an empty update must not revalidate a canceled session back to
	// ready_for_complete.
	_, err = svc.Update(ctx, sess.ID, UpdateRequest{})
	var tse *TerminalStateError
	require.ErrorAs(t, err, &tse)
	require.Equal(t, StatusCanceled, tse.Status)

	stored, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, stored.Status)
	require.Empty(t, stored.ContinueURL)
}

func TestUpdateRejectedAfterComplete(t *testing.T) {
	proc := &payment.Mock{Provider: payment.ProviderStripe}
	svc, repo := newTestService(t, nil, proc)
	ctx := context.Background()
	sess := readySession(t, svc)

	done, _, err := svc.Complete(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, done.Status)

	_, err = svc.Update(ctx, sess.ID, UpdateRequest{
		Buyer: &Buyer{Email: "new@example.com"},
	})
	var tse *TerminalStateError
	require.ErrorAs(t, err, &tse)
	require.Equal(t, StatusCompleted, tse.Status)

	// The session keeps its order reference and a replayed complete cannot
	// mint a second order.
	stored, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)
	require.Equal(t, done.OrderID, stored.OrderID)

	_, _, err = svc.Complete(ctx, sess.ID)
	var nre *NotReadyError
	require.ErrorAs(t, err, &nre)
	require.Len(t, repo.orders, 1)
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	ctx := context.Background()

	_, err := svc.Get(ctx, "checkout_missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Update(ctx, "checkout_missing", UpdateRequest{})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Cancel(ctx, "checkout_missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, _, err = svc.Complete(ctx, "checkout_missing")
	require.ErrorIs(t, err, ErrNotFound)
}
