package checkout

import "github.com/shopspring/decimal"

// priceLineItems computes per-line totals. Amounts are minor units, so
// subtotal arithmetic stays in int64.
func priceLineItems(items []LineItem) []LineItem {
	for i := range items {
		items[i].Subtotal = items[i].Item.Price * int64(items[i].Quantity)
		items[i].Total = items[i].Subtotal
	}
	return items
}

// subtotalOf sums line item subtotals.
func subtotalOf(items []LineItem) int64 {
	var sum int64
	for _, li := range items {
		sum += li.Subtotal
	}
	return sum
}

// taxOn computes round(subtotal * rate) on cents. decimal.Round rounds half
// away from zero, which is the rounding rule the protocol requires.
func taxOn(subtotal int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(subtotal).Mul(rate).Round(0).IntPart()
}

// fulfillmentTotal sums, across all methods and groups, the "total" entry of
// each group's currently selected option.
func fulfillmentTotal(f *Fulfillment) int64 {
	if f == nil {
		return 0
	}
	var sum int64
	for _, m := range f.Methods {
		for _, g := range m.Groups {
			for _, opt := range g.Options {
				if !opt.Selected {
					continue
				}
				for _, t := range opt.Totals {
					if t.Type == TotalTotal {
						sum += t.Amount
					}
				}
			}
		}
	}
	return sum
}

// computeTotals builds the session totals breakdown from current line items
// and fulfillment. The fulfillment entry appears only once fulfillment is set.
func computeTotals(items []LineItem, f *Fulfillment, taxRate decimal.Decimal) []Total {
	subtotal := subtotalOf(items)
	tax := taxOn(subtotal, taxRate)
	shipping := fulfillmentTotal(f)

	totals := []Total{
		{Type: TotalSubtotal, DisplayText: "Subtotal", Amount: subtotal},
		{Type: TotalTax, DisplayText: "Tax", Amount: tax},
	}
	if f != nil {
		totals = append(totals, Total{Type: TotalFulfillment, DisplayText: "Shipping", Amount: shipping})
	}
	totals = append(totals, Total{Type: TotalTotal, DisplayText: "Total", Amount: subtotal + tax + shipping})
	return totals
}
