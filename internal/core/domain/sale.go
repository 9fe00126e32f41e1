package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod int

const (
	PaymentCash PaymentMethod = iota + 1
	PaymentCard
	PaymentTransfer
)

func (m PaymentMethod) String() string {
	switch m {
	case PaymentCash:
		return "CASH"
	case PaymentCard:
		return "CARD"
	case PaymentTransfer:
		return "TRANSFER"
	default:
		return fmt.Sprintf("PaymentMethod(%d)", int(m))
	}
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return true
	default:
		return false
	}
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CASH":
		return PaymentCash, nil
	case "CARD":
		return PaymentCard, nil
	case "TRANSFER":
		return PaymentTransfer, nil
	default:
		return 0, Invalid("payment.parse", "unknown payment method %q", s)
	}
}

func (m PaymentMethod) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *PaymentMethod) UnmarshalText(b []byte) error {
	v, err := ParsePaymentMethod(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// SaleRequest is what the checkout submits for one cart line.
type SaleRequest struct {
	// RequestID is the cart line ID. Storage uses it to reject a line
	// that was already committed.
	RequestID      string
	ProductID      string
	Size           string
	Quantity       int
	UnitPrice      decimal.Decimal
	Subtotal       decimal.Decimal
	Discount       *Discount
	DiscountAmount decimal.Decimal
	TotalPrice     decimal.Decimal
	PaymentMethod  PaymentMethod
}

// NewSaleRequest snapshots a cart line.
func NewSaleRequest(line CartLine, method PaymentMethod) SaleRequest {
	return SaleRequest{
		RequestID:      line.LineID,
		ProductID:      line.Product.ID,
		Size:           line.Size,
		Quantity:       line.Quantity,
		UnitPrice:      line.UnitPrice,
		Subtotal:       line.Subtotal(),
		Discount:       line.Discount,
		DiscountAmount: line.DiscountAmount(),
		TotalPrice:     line.TotalPrice(),
		PaymentMethod:  method,
	}
}

// Sale is the persisted record of one committed cart line.
type Sale struct {
	ID             string          `json:"id"`
	RequestID      string          `json:"request_id"`
	ProductID      string          `json:"product_id"`
	Size           string          `json:"size,omitempty"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       *Discount       `json:"discount,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	CreatedAt      time.Time       `json:"created_at"`
}
