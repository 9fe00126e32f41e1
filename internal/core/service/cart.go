package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = &domain.Error{Code: domain.EINVALID, Message: "quantity must be at least 1"}
	ErrSizeRequired      = &domain.Error{Code: domain.EINVALID, Message: "select a size"}
	ErrLineNotFound      = &domain.Error{Code: domain.ENOTFOUND, Message: "item is not in the cart"}
)

// RequantityPolicy decides what happens to a line discount when the line's
// quantity changes after the discount was applied.
type RequantityPolicy int

const (
	// KeepDiscount keeps the discount type and value; its amount follows the
	// new subtotal because it is derived on every read.
	KeepDiscount RequantityPolicy = iota
	// DropDiscount removes the discount, the operator has to apply it again.
	DropDiscount
)

type CartOption func(*Cart)

func WithRequantityPolicy(p RequantityPolicy) CartOption {
	return func(c *Cart) { c.requantity = p }
}

// WithLineIDs replaces the uuid generator for line IDs.
func WithLineIDs(next func() string) CartOption {
	return func(c *Cart) { c.nextID = next }
}

// Cart is an ordered set of lines keyed by (product, size). Every mutation
// is checked against the stock ceiling at the time of the call. A rejected
// mutation leaves the lines untouched, records the reason in Err and
// returns it.
//
// Cart is not safe for concurrent use; a session owns one cart.
type Cart struct {
	stock      StockView
	requantity RequantityPolicy
	nextID     func() string

	lines []domain.CartLine
	err   error
}

func NewCart(stock StockView, opts ...CartOption) *Cart {
	c := &Cart{
		stock:  stock,
		nextID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Err returns the reason the last mutation was rejected, nil after a
// successful one.
func (c *Cart) Err() error {
	return c.err
}

func (c *Cart) reject(err error) error {
	c.err = err
	return err
}

func (c *Cart) accept() {
	c.err = nil
}

// AddLine adds quantity units of product/size. When the line exists the
// combined quantity must fit under the ceiling, otherwise the whole add is
// rejected and the existing quantity stays.
func (c *Cart) AddLine(product domain.Product, quantity int, size string) error {
	const op = "cart.add"

	if quantity < 1 {
		return c.reject(wrapOp(ErrInvalidQuantity, op))
	}
	size, err := normalizeSize(op, product, size)
	if err != nil {
		return c.reject(err)
	}

	ceiling := c.stock.Ceiling(product, size)
	if ceiling <= 0 {
		return c.reject(unavailable(op, product, size))
	}

	key := domain.LineKey{ProductID: product.ID, Size: size}
	if i := c.index(key); i >= 0 {
		existing := c.lines[i].Quantity
		if existing+quantity > ceiling {
			return c.reject(&domain.Error{
				Code: domain.EINVALID,
				Op:   op,
				Message: fmt.Sprintf("cannot add %d more of %s: %d already in cart, only %d available",
					quantity, label(product, size), existing, ceiling),
				Err: ErrInsufficientStock,
			})
		}
		c.setQuantity(i, existing+quantity)
		c.accept()
		return nil
	}

	if quantity > ceiling {
		return c.reject(&domain.Error{
			Code:    domain.EINVALID,
			Op:      op,
			Message: fmt.Sprintf("cannot add %d of %s: only %d available", quantity, label(product, size), ceiling),
			Err:     ErrInsufficientStock,
		})
	}

	c.lines = append(c.lines, domain.CartLine{
		LineID:    c.nextID(),
		Product:   product.Clone(),
		Size:      size,
		Quantity:  quantity,
		UnitPrice: product.Price,
	})
	c.accept()
	return nil
}

// UpdateQuantity sets the quantity of an existing line. A quantity of zero
// or less removes the line.
func (c *Cart) UpdateQuantity(productID string, quantity int, size string) error {
	const op = "cart.update"

	if quantity <= 0 {
		c.RemoveLine(productID, size)
		return nil
	}

	i := c.find(productID, size)
	if i < 0 {
		return c.reject(lineNotFound(op, productID, size))
	}

	line := c.lines[i]
	ceiling := c.stock.Ceiling(line.Product, line.Size)
	if quantity > ceiling {
		return c.reject(&domain.Error{
			Code:    domain.EINVALID,
			Op:      op,
			Message: fmt.Sprintf("cannot set %s to %d: only %d available", line.Label(), quantity, ceiling),
			Err:     ErrInsufficientStock,
		})
	}

	c.setQuantity(i, quantity)
	c.accept()
	return nil
}

// RemoveLine drops the matching line. Removing an absent line changes
// nothing, not even the error state.
func (c *Cart) RemoveLine(productID, size string) {
	i := c.find(productID, size)
	if i < 0 {
		return
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	c.accept()
}

// Clear empties the cart and the error state.
func (c *Cart) Clear() {
	c.lines = nil
	c.err = nil
}

// ApplyDiscount puts a discount on one line, replacing any earlier one.
func (c *Cart) ApplyDiscount(productID, size string, discount domain.Discount) error {
	const op = "cart.discount"

	i := c.find(productID, size)
	if i < 0 {
		return c.reject(lineNotFound(op, productID, size))
	}
	if err := discount.Validate(); err != nil {
		return c.reject(err)
	}
	d := discount
	c.lines[i].Discount = &d
	c.accept()
	return nil
}

// RemoveDiscount returns a line to the no discount state.
func (c *Cart) RemoveDiscount(productID, size string) error {
	i := c.find(productID, size)
	if i < 0 {
		return c.reject(lineNotFound("cart.discount", productID, size))
	}
	c.lines[i].Discount = nil
	c.accept()
	return nil
}

// Lines returns a copy of the lines in display order.
func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Line(productID, size string) (domain.CartLine, bool) {
	i := c.find(productID, size)
	if i < 0 {
		return domain.CartLine{}, false
	}
	return c.lines[i], true
}

func (c *Cart) Len() int {
	return len(c.lines)
}

// Subtotal is the sum of unit price times quantity, before discounts.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

// Total is the sum of line totals after line discounts. Computed on every
// call.
func (c *Cart) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.lines {
		sum = sum.Add(l.TotalPrice())
	}
	return sum
}

func (c *Cart) DiscountTotal() decimal.Decimal {
	return c.Subtotal().Sub(c.Total())
}

func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// removeKeys drops committed lines after a checkout pass, keeping the
// order of what remains.
func (c *Cart) removeKeys(keys map[domain.LineKey]struct{}) {
	if len(keys) == 0 {
		return
	}
	kept := c.lines[:0]
	for _, l := range c.lines {
		if _, done := keys[l.Key()]; !done {
			kept = append(kept, l)
		}
	}
	c.lines = kept
}

func (c *Cart) setQuantity(i, quantity int) {
	c.lines[i].Quantity = quantity
	if c.requantity == DropDiscount {
		c.lines[i].Discount = nil
	}
}

// find resolves a caller's (product, size) to a line the way AddLine keys
// it: a size given for a product without variants was dropped on add.
func (c *Cart) find(productID, size string) int {
	if i := c.index(domain.LineKey{ProductID: productID, Size: size}); i >= 0 {
		return i
	}
	if size == "" {
		return -1
	}
	i := c.index(domain.LineKey{ProductID: productID})
	if i >= 0 && !c.lines[i].Product.HasVariants() {
		return i
	}
	return -1
}

func (c *Cart) index(key domain.LineKey) int {
	for i, l := range c.lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}

// normalizeSize enforces that products with variants get a size and drops
// sizes given for products without them.
func normalizeSize(op string, product domain.Product, size string) (string, error) {
	if !product.HasVariants() {
		return "", nil
	}
	if size == "" {
		return "", &domain.Error{
			Code:    domain.EINVALID,
			Op:      op,
			Message: fmt.Sprintf("select a size for %q", product.Name),
			Err:     ErrSizeRequired,
		}
	}
	return size, nil
}

func unavailable(op string, product domain.Product, size string) error {
	if size != "" {
		if _, ok := product.Variant(size); !ok {
			return &domain.Error{
				Code:    domain.EINVALID,
				Op:      op,
				Message: fmt.Sprintf("%q has no size %s", product.Name, size),
			}
		}
	}
	return &domain.Error{
		Code:    domain.EINVALID,
		Op:      op,
		Message: fmt.Sprintf("%s is out of stock: 0 available", label(product, size)),
		Err:     ErrInsufficientStock,
	}
}

func label(product domain.Product, size string) string {
	return domain.CartLine{Product: product, Size: size}.Label()
}

func lineNotFound(op, productID, size string) error {
	item := "product " + productID
	if size != "" {
		item += " size " + size
	}
	return &domain.Error{
		Code:    domain.ENOTFOUND,
		Op:      op,
		Message: item + " is not in the cart",
		Err:     ErrLineNotFound,
	}
}

func wrapOp(sentinel *domain.Error, op string) error {
	return &domain.Error{Code: sentinel.Code, Op: op, Message: sentinel.Message}
}
