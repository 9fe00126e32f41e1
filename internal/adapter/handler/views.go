package handler

import (
	"github.com/shopspring/decimal"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

type lineView struct {
	LineID         string           `json:"line_id"`
	ProductID      string           `json:"product_id"`
	Name           string           `json:"name"`
	Size           string           `json:"size,omitempty"`
	Quantity       int              `json:"quantity"`
	UnitPrice      decimal.Decimal  `json:"unit_price"`
	Subtotal       decimal.Decimal  `json:"subtotal"`
	Discount       *domain.Discount `json:"discount,omitempty"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
	TotalPrice     decimal.Decimal  `json:"total_price"`
}

type cartView struct {
	SessionID     string          `json:"session_id"`
	Lines         []lineView      `json:"lines"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	Total         decimal.Decimal `json:"total"`
	ItemCount     int             `json:"item_count"`
	// Error is the reason the last cart mutation was rejected.
	Error string `json:"error,omitempty"`
}

func newCartView(sess *session) cartView {
	cart := sess.terminal.Cart()
	v := cartView{
		SessionID:     sess.terminal.ID,
		Lines:         make([]lineView, 0, cart.Len()),
		Subtotal:      cart.Subtotal(),
		DiscountTotal: cart.DiscountTotal(),
		Total:         cart.Total(),
		ItemCount:     cart.ItemCount(),
	}
	if err := cart.Err(); err != nil {
		v.Error = domain.ErrorMessage(err)
	}
	for _, l := range cart.Lines() {
		v.Lines = append(v.Lines, lineView{
			LineID:         l.LineID,
			ProductID:      l.Product.ID,
			Name:           l.Product.Name,
			Size:           l.Size,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			Subtotal:       l.Subtotal(),
			Discount:       l.Discount,
			DiscountAmount: l.DiscountAmount(),
			TotalPrice:     l.TotalPrice(),
		})
	}
	return v
}
