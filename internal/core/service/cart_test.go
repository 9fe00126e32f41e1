package service

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

func newTestCart(opts ...CartOption) *Cart {
	return NewCart(ProductStock, append([]CartOption{WithLineIDs(sequentialIDs())}, opts...)...)
}

func TestAddLine_ExceedsVariantStock(t *testing.T) {
	tee := sizedProduct("p1", "Tee", 100, domain.Variant{Size: "M", Stock: 3})
	cart := newTestCart()

	err := cart.AddLine(tee, 5, "M")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Equal(t, 0, cart.Len())
	assert.Equal(t, err, cart.Err())
	assert.Contains(t, cart.Err().Error(), "3")
	assert.Contains(t, cart.Err().Error(), "M")
}

func TestAddLine_CombinedQuantityOverCeiling(t *testing.T) {
	tee := sizedProduct("p1", "Tee", 100, domain.Variant{Size: "M", Stock: 3})
	cart := newTestCart()

	require.NoError(t, cart.AddLine(tee, 2, "M"))
	err := cart.AddLine(tee, 2, "M")

	require.Error(t, err)
	line, ok := cart.Line("p1", "M")
	require.True(t, ok)
	assert.Equal(t, 2, line.Quantity)
	assert.Contains(t, domain.ErrorMessage(err), "2 already in cart")
	assert.Contains(t, domain.ErrorMessage(err), "only 3 available")
}

func TestAddLine_MergesIntoExistingLine(t *testing.T) {
	mug := flatProduct("p2", "Mug", 50, 10)
	cart := newTestCart()

	require.NoError(t, cart.AddLine(mug, 2, ""))
	require.NoError(t, cart.AddLine(mug, 3, ""))

	require.Equal(t, 1, cart.Len())
	line, _ := cart.Line("p2", "")
	assert.Equal(t, 5, line.Quantity)
	assert.Equal(t, "line-1", line.LineID)
}

func TestAddLine_SuccessClearsError(t *testing.T) {
	mug := flatProduct("p2", "Mug", 50, 2)
	cart := newTestCart()

	require.Error(t, cart.AddLine(mug, 3, ""))
	require.Error(t, cart.Err())

	require.NoError(t, cart.AddLine(mug, 1, ""))
	assert.NoError(t, cart.Err())
}

func TestAddLine_Validation(t *testing.T) {
	tee := sizedProduct("p1", "Tee", 100, domain.Variant{Size: "M", Stock: 3})
	soldOut := flatProduct("p4", "Cap", 80, 0)

	t.Run("unknown size", func(t *testing.T) {
		cart := newTestCart()
		err := cart.AddLine(tee, 1, "XL")
		require.Error(t, err)
		assert.Contains(t, domain.ErrorMessage(err), "no size XL")
		assert.Equal(t, 0, cart.Len())
	})

	t.Run("size required", func(t *testing.T) {
		cart := newTestCart()
		err := cart.AddLine(tee, 1, "")
		assert.True(t, errors.Is(err, ErrSizeRequired))
		assert.Equal(t, 0, cart.Len())
	})

	t.Run("out of stock", func(t *testing.T) {
		cart := newTestCart()
		err := cart.AddLine(soldOut, 1, "")
		assert.True(t, errors.Is(err, ErrInsufficientStock))
		assert.Contains(t, domain.ErrorMessage(err), "out of stock")
	})

	t.Run("zero quantity", func(t *testing.T) {
		cart := newTestCart()
		err := cart.AddLine(tee, 0, "M")
		assert.True(t, errors.Is(err, ErrInvalidQuantity))
	})

	t.Run("size dropped for flat stock product", func(t *testing.T) {
		cart := newTestCart()
		require.NoError(t, cart.AddLine(soldOut.WithStockIncrement("", 4), 1, "M"))
		_, ok := cart.Line("p4", "")
		assert.True(t, ok)
	})
}

func TestUpdateQuantity(t *testing.T) {
	tee := sizedProduct("p1", "Tee", 100, domain.Variant{Size: "M", Stock: 3})

	t.Run("within ceiling", func(t *testing.T) {
		cart := newTestCart()
		require.NoError(t, cart.AddLine(tee, 1, "M"))
		require.NoError(t, cart.UpdateQuantity("p1", 3, "M"))
		line, _ := cart.Line("p1", "M")
		assert.Equal(t, 3, line.Quantity)
	})

	t.Run("over ceiling keeps previous quantity", func(t *testing.T) {
		cart := newTestCart()
		require.NoError(t, cart.AddLine(tee, 2, "M"))
		err := cart.UpdateQuantity("p1", 4, "M")
		require.Error(t, err)
		assert.Contains(t, domain.ErrorMessage(err), "only 3 available")
		line, _ := cart.Line("p1", "M")
		assert.Equal(t, 2, line.Quantity)
	})

	t.Run("zero removes", func(t *testing.T) {
		cart := newTestCart()
		require.NoError(t, cart.AddLine(tee, 2, "M"))
		require.NoError(t, cart.UpdateQuantity("p1", 0, "M"))
		assert.Equal(t, 0, cart.Len())
	})

	t.Run("negative removes", func(t *testing.T) {
		cart := newTestCart()
		require.NoError(t, cart.AddLine(tee, 2, "M"))
		require.NoError(t, cart.UpdateQuantity("p1", -1, "M"))
		assert.Equal(t, 0, cart.Len())
	})

	t.Run("absent line", func(t *testing.T) {
		cart := newTestCart()
		err := cart.UpdateQuantity("p1", 1, "M")
		assert.True(t, errors.Is(err, ErrLineNotFound))
	})
}

func TestSizeIgnoredForFlatProduct(t *testing.T) {
	mug := flatProduct("p2", "Mug", 50, 10)
	cart := newTestCart()
	require.NoError(t, cart.AddLine(mug, 1, "L"))

	line, ok := cart.Line("p2", "L")
	require.True(t, ok)
	assert.Equal(t, "", line.Size)

	require.NoError(t, cart.UpdateQuantity("p2", 3, "L"))
	line, _ = cart.Line("p2", "")
	assert.Equal(t, 3, line.Quantity)

	require.NoError(t, cart.ApplyDiscount("p2", "L", domain.Discount{Type: domain.DiscountFixedAmount, Value: decimal.NewFromInt(10)}))
	assert.True(t, cart.Total().Equal(decimal.NewFromInt(140)))
	require.NoError(t, cart.RemoveDiscount("p2", "L"))

	cart.RemoveLine("p2", "L")
	assert.Equal(t, 0, cart.Len())
}

func TestSizeStillSelectsVariant(t *testing.T) {
	tee := sizedProduct("p1", "Tee", 100, domain.Variant{Size: "M", Stock: 3}, domain.Variant{Size: "L", Stock: 3})
	cart := newTestCart()
	require.NoError(t, cart.AddLine(tee, 1, "M"))

	err := cart.UpdateQuantity("p1", 2, "L")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLineNotFound))
	assert.Equal(t, "product p1 size L is not in the cart", domain.ErrorMessage(err))
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	cart.RemoveLine("p1", "L")
	assert.Equal(t, 1, cart.Len())
}

func TestRemoveLine_AbsentIsNoop(t *testing.T) {
	mug := flatProduct("p2", "Mug", 50, 10)
	cart := newTestCart()
	require.NoError(t, cart.AddLine(mug, 2, ""))
	require.Error(t, cart.AddLine(mug, 20, ""))
	before := cart.Lines()
	beforeErr := cart.Err()

	cart.RemoveLine("nope", "")
	cart.RemoveLine("p2", "XL")

	assert.Equal(t, before, cart.Lines())
	assert.Equal(t, beforeErr, cart.Err())
}

func TestClear(t *testing.T) {
	mug := flatProduct("p2", "Mug", 50, 10)
	cart := newTestCart()
	require.NoError(t, cart.AddLine(mug, 2, ""))
	require.Error(t, cart.AddLine(mug, 20, ""))

	cart.Clear()

	assert.Equal(t, 0, cart.Len())
	assert.Equal(t, 0, cart.ItemCount())
	assert.NoError(t, cart.Err())
	assert.True(t, cart.Total().IsZero())
}

func TestTotals(t *testing.T) {
	tee := sizedProduct("p1", "Tee", 100, domain.Variant{Size: "M", Stock: 3}, domain.Variant{Size: "L", Stock: 3})
	mug := flatProduct("p2", "Mug", 50, 10)
	cart := newTestCart()

	require.NoError(t, cart.AddLine(tee, 2, "M"))
	require.NoError(t, cart.AddLine(tee, 1, "L"))
	require.NoError(t, cart.AddLine(mug, 4, ""))

	assert.Equal(t, 7, cart.ItemCount())
	assert.True(t, cart.Subtotal().Equal(decimal.NewFromInt(500)), cart.Subtotal().String())
	assert.True(t, cart.Total().Equal(decimal.NewFromInt(500)))

	require.NoError(t, cart.UpdateQuantity("p2", 2, ""))
	assert.True(t, cart.Total().Equal(decimal.NewFromInt(400)), "total must follow quantity changes")

	lines := cart.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "M", lines[0].Size)
	assert.Equal(t, "L", lines[1].Size)
	assert.Equal(t, "p2", lines[2].Product.ID)
}

func TestLineDiscount(t *testing.T) {
	mug := flatProduct("p2", "Mug", 100, 20)

	t.Run("percentage", func(t *testing.T) {
		cart := newTestCart()
		require.NoError(t, cart.AddLine(mug, 10, ""))
		require.NoError(t, cart.ApplyDiscount("p2", "", domain.Discount{Type: domain.DiscountPercentage, Value: decimal.NewFromInt(10)}))

		line, _ := cart.Line("p2", "")
		assert.True(t, line.DiscountAmount().Equal(decimal.NewFromInt(100)))
		assert.True(t, cart.Total().Equal(decimal.NewFromInt(900)))
		assert.True(t, cart.DiscountTotal().Equal(decimal.NewFromInt(100)))
	})

	t.Run("round trip restores subtotal", func(t *testing.T) {
		cart := newTestCart()
		require.NoError(t, cart.AddLine(mug, 3, ""))
		require.NoError(t, cart.ApplyDiscount("p2", "", domain.Discount{Type: domain.DiscountPercentage, Value: decimal.RequireFromString("33.3")}))
		require.NoError(t, cart.RemoveDiscount("p2", ""))

		line, _ := cart.Line("p2", "")
		assert.Nil(t, line.Discount)
		assert.True(t, line.DiscountAmount().IsZero())
		assert.True(t, cart.Total().Equal(cart.Subtotal()))
	})

	t.Run("fixed amount capped", func(t *testing.T) {
		cart := newTestCart()
		require.NoError(t, cart.AddLine(mug, 2, ""))
		require.NoError(t, cart.ApplyDiscount("p2", "", domain.Discount{Type: domain.DiscountFixedAmount, Value: decimal.NewFromInt(5000)}))

		assert.True(t, cart.Total().IsZero())
		line, _ := cart.Line("p2", "")
		assert.True(t, line.DiscountAmount().Equal(decimal.NewFromInt(200)))
	})

	t.Run("invalid discount rejected", func(t *testing.T) {
		cart := newTestCart()
		require.NoError(t, cart.AddLine(mug, 2, ""))
		err := cart.ApplyDiscount("p2", "", domain.Discount{Type: domain.DiscountPercentage, Value: decimal.NewFromInt(150)})
		require.Error(t, err)
		assert.Contains(t, domain.ErrorMessage(err), "invalid discount")
		line, _ := cart.Line("p2", "")
		assert.Nil(t, line.Discount)
	})

	t.Run("sub cent amounts round to cents", func(t *testing.T) {
		gum := flatProduct("p3", "Gum", 0, 10)
		gum.Price = decimal.RequireFromString("0.05")
		cart := newTestCart()
		require.NoError(t, cart.AddLine(gum, 1, ""))
		require.NoError(t, cart.ApplyDiscount("p3", "", domain.Discount{Type: domain.DiscountPercentage, Value: decimal.NewFromInt(50)}))

		line, _ := cart.Line("p3", "")
		assert.Equal(t, "0.03", line.DiscountAmount().StringFixed(2))
		assert.Equal(t, "0.02", line.TotalPrice().StringFixed(2))
		assert.True(t, line.DiscountAmount().Add(line.TotalPrice()).Equal(line.Subtotal()))
	})

	t.Run("replaces earlier discount", func(t *testing.T) {
		cart := newTestCart()
		require.NoError(t, cart.AddLine(mug, 1, ""))
		require.NoError(t, cart.ApplyDiscount("p2", "", domain.Discount{Type: domain.DiscountFixedAmount, Value: decimal.NewFromInt(10)}))
		require.NoError(t, cart.ApplyDiscount("p2", "", domain.Discount{Type: domain.DiscountFixedAmount, Value: decimal.NewFromInt(30)}))
		assert.True(t, cart.Total().Equal(decimal.NewFromInt(70)))
	})
}

func TestRequantityPolicy(t *testing.T) {
	mug := flatProduct("p2", "Mug", 100, 20)
	tenPct := domain.Discount{Type: domain.DiscountPercentage, Value: decimal.NewFromInt(10)}

	t.Run("keep recomputes amount", func(t *testing.T) {
		cart := newTestCart()
		require.NoError(t, cart.AddLine(mug, 1, ""))
		require.NoError(t, cart.ApplyDiscount("p2", "", tenPct))
		require.NoError(t, cart.UpdateQuantity("p2", 5, ""))

		line, _ := cart.Line("p2", "")
		require.NotNil(t, line.Discount)
		assert.True(t, line.DiscountAmount().Equal(decimal.NewFromInt(50)))
	})

	t.Run("drop clears discount", func(t *testing.T) {
		cart := newTestCart(WithRequantityPolicy(DropDiscount))
		require.NoError(t, cart.AddLine(mug, 1, ""))
		require.NoError(t, cart.ApplyDiscount("p2", "", tenPct))
		require.NoError(t, cart.AddLine(mug, 1, ""))

		line, _ := cart.Line("p2", "")
		assert.Nil(t, line.Discount)
		assert.True(t, cart.Total().Equal(decimal.NewFromInt(200)))
	})
}

// Random add/update sequences against a stock figure that keeps moving
// must never leave a line above the ceiling in force at that call.
func TestCeilingInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	stock := map[domain.LineKey]int{
		{ProductID: "p1", Size: "S"}: 2,
		{ProductID: "p1", Size: "M"}: 5,
		{ProductID: "p2", Size: ""}:  4,
	}
	view := StockViewFunc(func(p domain.Product, size string) int {
		return stock[domain.LineKey{ProductID: p.ID, Size: size}]
	})
	tee := sizedProduct("p1", "Tee", 10, domain.Variant{Size: "S"}, domain.Variant{Size: "M"})
	mug := flatProduct("p2", "Mug", 5, 0)
	cart := NewCart(view)

	keys := []domain.LineKey{{ProductID: "p1", Size: "S"}, {ProductID: "p1", Size: "M"}, {ProductID: "p2"}}

	for i := 0; i < 2000; i++ {
		key := keys[rng.Intn(len(keys))]
		product := tee
		if key.ProductID == "p2" {
			product = mug
		}
		if rng.Intn(5) == 0 {
			stock[key] = rng.Intn(7)
		}
		before, _ := cart.Line(key.ProductID, key.Size)

		var err error
		if rng.Intn(2) == 0 {
			err = cart.AddLine(product, rng.Intn(4)+1, key.Size)
		} else {
			err = cart.UpdateQuantity(key.ProductID, rng.Intn(8)-1, key.Size)
		}

		after, ok := cart.Line(key.ProductID, key.Size)
		if err != nil {
			assert.Equal(t, before.Quantity, after.Quantity, "rejected mutation changed the line")
			continue
		}
		if ok {
			require.LessOrEqual(t, after.Quantity, stock[key], "step %d", i)
			require.GreaterOrEqual(t, after.Quantity, 1)
		}
	}
}
