package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DiscountType is closed: every switch over it must handle both kinds.
type DiscountType int

const (
	DiscountPercentage DiscountType = iota + 1
	DiscountFixedAmount
)

func (t DiscountType) String() string {
	switch t {
	case DiscountPercentage:
		return "PERCENTAGE"
	case DiscountFixedAmount:
		return "FIXED_AMOUNT"
	default:
		return fmt.Sprintf("DiscountType(%d)", int(t))
	}
}

// ParseDiscountType accepts the wire names used by the HTTP API.
func ParseDiscountType(s string) (DiscountType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PERCENTAGE":
		return DiscountPercentage, nil
	case "FIXED_AMOUNT":
		return DiscountFixedAmount, nil
	default:
		return 0, Invalid("discount.parse", "unknown discount type %q", s)
	}
}

func (t DiscountType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *DiscountType) UnmarshalText(b []byte) error {
	v, err := ParseDiscountType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

var hundred = decimal.NewFromInt(100)

// MoneyScale is the number of decimal places money is stored with.
const MoneyScale = 2

// IsMoney reports whether v has no digits below the money scale.
func IsMoney(v decimal.Decimal) bool {
	return v.Equal(v.Round(MoneyScale))
}

// Discount is one discount rule. A line carries at most one.
type Discount struct {
	Type  DiscountType    `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// Validate rejects values the calculator must never see.
func (d Discount) Validate() error {
	const op = "discount.validate"
	switch d.Type {
	case DiscountPercentage:
		if !d.Value.IsPositive() {
			return Invalid(op, "invalid discount: percentage must be greater than 0, got %s", d.Value)
		}
		if d.Value.GreaterThan(hundred) {
			return Invalid(op, "invalid discount: percentage cannot exceed 100, got %s", d.Value)
		}
	case DiscountFixedAmount:
		if !d.Value.IsPositive() {
			return Invalid(op, "invalid discount: amount must be greater than 0, got %s", d.Value)
		}
		if !IsMoney(d.Value) {
			return Invalid(op, "invalid discount: amount %s has more than %d decimals", d.Value, MoneyScale)
		}
	default:
		return Invalid(op, "invalid discount: unknown type %s", d.Type)
	}
	return nil
}

// CalculateDiscount converts a validated discount and a subtotal into the
// discount amount and the discounted total. A fixed amount is capped at the
// subtotal so the total never goes negative. The amount is rounded to
// MoneyScale before the total is derived, so amount + total == subtotal
// holds for the stored columns too.
func CalculateDiscount(subtotal decimal.Decimal, d Discount) (amount, total decimal.Decimal) {
	switch d.Type {
	case DiscountPercentage:
		amount = subtotal.Mul(d.Value).Div(hundred).Round(MoneyScale)
	case DiscountFixedAmount:
		amount = decimal.Min(d.Value, subtotal)
	default:
		amount = decimal.Zero
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount, subtotal.Sub(amount)
}
