// Package finance computes invoice figures from the ledger subtotal and the
// invoice-level discount/tax settings. Everything here is pure.
package finance

import (
	"math"

	"github.com/medicore/medicore/internal/billing/domain"
)

// Totals carries the unrounded results of the discount cascade. Rounding to
// two decimals happens only at the point of display, via Rounded.
type Totals struct {
	Subtotal       float64
	DiscountAmount float64
	TaxAmount      float64
	Payable        float64
	Paid           float64
	Balance        float64
}

// Compute applies the fixed cascade: discount first, then tax on the
// discounted amount, then payable and balance. The order is a business rule
// and must not change.
func Compute(subtotal float64, discountType domain.DiscountType, discountValue float64, includeTax bool, taxRate, paid float64) Totals {
	discount := discountAmount(subtotal, discountType, discountValue)
	discounted := subtotal - discount

	var tax float64
	if includeTax {
		tax = discounted * taxRate
	}

	payable := discounted + tax

	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		TaxAmount:      tax,
		Payable:        payable,
		Paid:           paid,
		Balance:        payable - paid,
	}
}

// ComputeForInvoice derives Totals from a persisted invoice.
func ComputeForInvoice(inv domain.Invoice) Totals {
	return Compute(inv.TotalAmount, inv.DiscountType, inv.DiscountValue, inv.IncludeTax, inv.TaxRate, inv.PaidAmount)
}

func discountAmount(subtotal float64, discountType domain.DiscountType, value float64) float64 {
	switch discountType {
	case domain.DiscountPercentage:
		return subtotal * value / 100
	case domain.DiscountFixed:
		// A fixed discount never exceeds the subtotal.
		return math.Min(value, subtotal)
	default:
		return 0
	}
}

// Rounded returns display-ready figures, each rounded to two decimals.
func (t Totals) Rounded() domain.InvoiceFigures {
	return domain.InvoiceFigures{
		Subtotal:       Round2(t.Subtotal),
		DiscountAmount: Round2(t.DiscountAmount),
		TaxAmount:      Round2(t.TaxAmount),
		Payable:        Round2(t.Payable),
		Paid:           Round2(t.Paid),
		Balance:        Round2(t.Balance),
	}
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// StatusFor derives the invoice payment status from paid vs payable.
// Overpayment counts as paid; the negative balance is carried as credit.
func StatusFor(paid, payable float64) domain.InvoiceStatus {
	switch {
	case paid <= 0:
		return domain.InvoiceStatusPending
	case paid < payable:
		return domain.InvoiceStatusPartial
	default:
		return domain.InvoiceStatusPaid
	}
}
