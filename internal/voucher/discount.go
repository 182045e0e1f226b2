package voucher

import (
	"github.com/shopspring/decimal"

	"github.com/Lixing-Zhang/service-marketplace/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Discount computes the discount a voucher grants on orderAmount.
// The result is never negative and never exceeds orderAmount.
func Discount(kind models.DiscountType, value, orderAmount float64) float64 {
	amount := decimal.NewFromFloat(orderAmount)
	v := decimal.NewFromFloat(value)

	var d decimal.Decimal
	switch kind {
	case models.DiscountPercentage:
		d = amount.Mul(v).Div(hundred)
	case models.DiscountFixedAmount:
		d = decimal.Min(v, amount)
	default:
		return 0
	}

	if d.GreaterThan(amount) {
		d = amount
	}
	if d.IsNegative() {
		d = decimal.Zero
	}
	return d.InexactFloat64()
}

// FinalPrice is max(0, estimated - discount).
func FinalPrice(estimated, discount float64) float64 {
	p := decimal.NewFromFloat(estimated).Sub(decimal.NewFromFloat(discount))
	if p.IsNegative() {
		return 0
	}
	return p.InexactFloat64()
}
