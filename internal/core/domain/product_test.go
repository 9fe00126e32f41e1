package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductValidate(t *testing.T) {
	tests := []struct {
		name    string
		give    Product
		wantErr bool
	}{
		{"flat", Product{Name: "Mug", TotalStock: IntPtr(3)}, false},
		{"variants", Product{Name: "Tee", Variants: []Variant{{"S", 1}, {"M", 0}}}, false},
		{"no name", Product{TotalStock: IntPtr(1)}, true},
		{"negative flat", Product{Name: "Mug", TotalStock: IntPtr(-1)}, true},
		{"duplicate size", Product{Name: "Tee", Variants: []Variant{{"M", 1}, {"M", 2}}}, true},
		{"empty size", Product{Name: "Tee", Variants: []Variant{{"", 1}}}, true},
		{"negative variant", Product{Name: "Tee", Variants: []Variant{{"M", -2}}}, true},
		{"cents price", Product{Name: "Mug", Price: d("4.99"), TotalStock: IntPtr(1)}, false},
		{"sub cent price", Product{Name: "Mug", Price: d("4.995"), TotalStock: IntPtr(1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.give.Validate()
			if tt.wantErr {
				assert.Equal(t, EINVALID, ErrorCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProductStockCopies(t *testing.T) {
	tee := Product{ID: "t", Name: "Tee", Variants: []Variant{{"S", 2}, {"M", 3}}, TotalStock: IntPtr(5)}

	less := tee.WithStockDecrement("M", 2)
	assert.Equal(t, 3, tee.Variants[1].Stock)
	assert.Equal(t, 5, *tee.TotalStock)
	assert.Equal(t, 1, less.Variants[1].Stock)
	assert.Equal(t, 3, *less.TotalStock)

	empty := less.WithStockDecrement("M", 10)
	assert.Equal(t, 0, empty.Variants[1].Stock)

	more := empty.WithStockIncrement("M", 1)
	assert.Equal(t, 1, more.Variants[1].Stock)

	mug := Product{ID: "m", Name: "Mug", TotalStock: IntPtr(4)}
	assert.Equal(t, 3, *mug.WithStockDecrement("XL", 1).TotalStock)
	assert.Equal(t, 4, *mug.TotalStock)
}

func TestProductAvailableAndLowStock(t *testing.T) {
	tee := Product{Name: "Tee", MinStock: 3, Variants: []Variant{{"S", 1}, {"M", 1}}}
	assert.Equal(t, 2, tee.Available())
	assert.True(t, tee.LowStock())

	mug := Product{Name: "Mug", MinStock: 1, TotalStock: IntPtr(10)}
	assert.False(t, mug.LowStock())
}

func TestErrorHelpers(t *testing.T) {
	sentinel := &Error{Code: ENOTFOUND, Message: "gone"}
	wrapped := &Error{Code: ENOTFOUND, Op: "x", Message: "gone"}
	assert.True(t, errors.Is(wrapped, sentinel))

	internal := Internal(errors.New("dsn refused"), "db", "database unavailable")
	assert.Equal(t, EINTERNAL, ErrorCode(internal))
	assert.NotContains(t, ErrorMessage(internal), "dsn")
	assert.Equal(t, EINTERNAL, ErrorCode(errors.New("plain")))
	assert.Equal(t, "", ErrorCode(nil))
	assert.True(t, IsCode(Conflict("op", "dup"), ECONFLICT))
}
