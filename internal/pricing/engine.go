package pricing

import "math"

// Money represents a monetary value stored in whole currency units.
type Money = int64

// Summary aggregates computed cart-level pricing components.
type Summary struct {
	ItemCount          int
	Subtotal           Money
	DiscountPercentage int
	Discount           Money
	Total              Money
}

// LineSubtotal prices a single line: tier price times quantity plus every add-on price.
// A line that does not fit in Money prices at 0; callers guard with CheckedLineSubtotal.
func LineSubtotal(tierPrice Money, qty int, addOnPrices ...Money) Money {
	subtotal, ok := CheckedLineSubtotal(tierPrice, qty, addOnPrices...)
	if !ok {
		return 0
	}
	return subtotal
}

// CheckedLineSubtotal is LineSubtotal reporting false when the result overflows Money.
func CheckedLineSubtotal(tierPrice Money, qty int, addOnPrices ...Money) (Money, bool) {
	if qty <= 0 {
		return 0, true
	}
	if tierPrice < 0 || (tierPrice > 0 && Money(qty) > math.MaxInt64/tierPrice) {
		return 0, false
	}
	subtotal := tierPrice * Money(qty)
	for _, p := range addOnPrices {
		var ok bool
		if subtotal, ok = AddChecked(subtotal, p); !ok {
			return 0, false
		}
	}
	return subtotal, true
}

// AddChecked adds two non-negative amounts, reporting false on overflow.
func AddChecked(a, b Money) (Money, bool) {
	if a < 0 || b < 0 || a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

// Compute calculates cart totals from line subtotals using the bundle schedule.
// The discount tier is picked from the number of lines, not their value.
func Compute(subtotals []Money, schedule BundleSchedule) Summary {
	var subtotal Money
	for _, s := range subtotals {
		subtotal += s
	}
	pct := schedule.Percentage(len(subtotals))
	discount := RoundPercent(subtotal, pct)
	if discount > subtotal {
		discount = subtotal
	}
	return Summary{
		ItemCount:          len(subtotals),
		Subtotal:           subtotal,
		DiscountPercentage: pct,
		Discount:           discount,
		Total:              subtotal - discount,
	}
}

// RoundPercent returns amount*pct/100 rounded half up to a whole unit.
func RoundPercent(amount Money, pct int) Money {
	if amount <= 0 || pct <= 0 {
		return 0
	}
	q, r := amount/100, amount%100
	return q*Money(pct) + (r*Money(pct)+50)/100
}
