package finance

import (
	"testing"

	"github.com/medicore/medicore/internal/billing/domain"
	"github.com/stretchr/testify/assert"
)

func TestCompute_TaxOnDiscountedAmount(t *testing.T) {
	// 1000 subtotal, 10% discount, 18% tax: tax applies to the discounted
	// 900, not the raw subtotal.
	totals := Compute(1000, domain.DiscountPercentage, 10, true, 0.18, 0)

	assert.Equal(t, 100.0, totals.DiscountAmount)
	assert.InDelta(t, 162.0, totals.TaxAmount, 1e-9)
	assert.InDelta(t, 1062.0, totals.Payable, 1e-9)
	assert.Equal(t, 162.0, Round2(totals.TaxAmount))
	assert.Equal(t, 1062.0, Round2(totals.Balance))
}

func TestCompute_FixedDiscountClamp(t *testing.T) {
	totals := Compute(500, domain.DiscountFixed, 800, false, 0.18, 0)

	assert.Equal(t, 500.0, totals.DiscountAmount)
	assert.Equal(t, 0.0, totals.Payable)
}

func TestCompute_NoDiscountNoTax(t *testing.T) {
	totals := Compute(250.50, domain.DiscountNone, 0, false, 0.18, 0)

	assert.Equal(t, 0.0, totals.DiscountAmount)
	assert.Equal(t, 0.0, totals.TaxAmount)
	assert.Equal(t, 250.50, totals.Payable)
}

func TestCompute_BalanceAfterPartialPayment(t *testing.T) {
	totals := Compute(1000, domain.DiscountNone, 0, false, 0, 400)

	assert.Equal(t, 600.0, totals.Balance)
}

func TestCompute_OverpaymentYieldsNegativeBalance(t *testing.T) {
	totals := Compute(100, domain.DiscountNone, 0, false, 0, 150)

	assert.Equal(t, -50.0, totals.Balance)
	assert.Equal(t, domain.InvoiceStatusPaid, StatusFor(totals.Paid, totals.Payable))
}

func TestRounded_OnlyAtDisplay(t *testing.T) {
	// Intermediate values stay unrounded; only the display figures get the
	// 2-decimal treatment, and payable is derived from the unrounded parts.
	totals := Compute(123.456, domain.DiscountPercentage, 12.5, true, 0.18, 0)

	discounted := 123.456 - 123.456*12.5/100
	assert.InDelta(t, discounted*0.18, totals.TaxAmount, 1e-9)
	assert.InDelta(t, discounted*1.18, totals.Payable, 1e-9)

	figures := totals.Rounded()
	assert.Equal(t, 123.46, figures.Subtotal)
	assert.Equal(t, Round2(totals.Payable), figures.Payable)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		name    string
		paid    float64
		payable float64
		want    domain.InvoiceStatus
	}{
		{"nothing paid", 0, 100, domain.InvoiceStatusPending},
		{"partial", 40, 100, domain.InvoiceStatusPartial},
		{"exact", 100, 100, domain.InvoiceStatusPaid},
		{"overpaid", 120, 100, domain.InvoiceStatusPaid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusFor(tc.paid, tc.payable))
		})
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.23, Round2(1.234))
	assert.Equal(t, 1.24, Round2(1.236))
	assert.Equal(t, -1.24, Round2(-1.236))
	assert.Equal(t, 0.0, Round2(0))
}
