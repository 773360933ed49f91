package checkout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTaxOn(t *testing.T) {
	rate := decimal.RequireFromString("0.08")

	require.EqualValues(t, 160, taxOn(2000, rate))
	require.EqualValues(t, 160, taxOn(1999, rate)) // 159.92 rounds up
	require.EqualValues(t, 0, taxOn(0, rate))

	// Half rounds away from zero.
	half := decimal.RequireFromString("0.075")
	require.EqualValues(t, 4, taxOn(50, half)) // 3.75 -> 4
	require.EqualValues(t, 2, taxOn(20, half)) // 1.50 -> 2
}

func TestComputeTotalsWithoutFulfillment(t *testing.T) {
	items := priceLineItems([]LineItem{
		{ID: "li_1", Item: itemWithPrice(1000), Quantity: 2},
	})

	totals := computeTotals(items, nil, decimal.RequireFromString("0.08"))

	require.Equal(t, []Total{
		{Type: TotalSubtotal, DisplayText: "Subtotal", Amount: 2000},
		{Type: TotalTax, DisplayText: "Tax", Amount: 160},
		{Type: TotalTotal, DisplayText: "Total", Amount: 2160},
	}, totals)
}

func TestComputeTotalsWithFulfillment(t *testing.T) {
	items := priceLineItems([]LineItem{
		{ID: "li_1", Item: itemWithPrice(2500), Quantity: 1},
	})
	f := &Fulfillment{Methods: []FulfillmentMethod{{
		Type: "shipping",
		Groups: []FulfillmentGroup{{
			LineItemIDs: []string{"li_1"},
			Options: []FulfillmentOption{
				{ID: "standard", Selected: true, Totals: []Total{
					{Type: TotalSubtotal, Amount: 500},
					{Type: TotalTotal, Amount: 500},
				}},
				{ID: "express", Totals: []Total{
					{Type: TotalSubtotal, Amount: 1500},
					{Type: TotalTotal, Amount: 1500},
				}},
			},
		}},
	}}}

	totals := computeTotals(items, f, decimal.RequireFromString("0.08"))

	require.Equal(t, []Total{
		{Type: TotalSubtotal, DisplayText: "Subtotal", Amount: 2500},
		{Type: TotalTax, DisplayText: "Tax", Amount: 200},
		{Type: TotalFulfillment, DisplayText: "Shipping", Amount: 500},
		{Type: TotalTotal, DisplayText: "Total", Amount: 3200},
	}, totals)
}

func TestFulfillmentTotalSumsOnlySelected(t *testing.T) {
	f := &Fulfillment{Methods: []FulfillmentMethod{{
		Groups: []FulfillmentGroup{
			{Options: []FulfillmentOption{
				{ID: "a", Selected: true, Totals: []Total{{Type: TotalTotal, Amount: 500}}},
				{ID: "b", Totals: []Total{{Type: TotalTotal, Amount: 9999}}},
			}},
			{Options: []FulfillmentOption{
				{ID: "c", Selected: true, Totals: []Total{{Type: TotalTotal, Amount: 1500}}},
			}},
		},
	}}}

	require.EqualValues(t, 2000, fulfillmentTotal(f))
	require.EqualValues(t, 0, fulfillmentTotal(nil))
}
