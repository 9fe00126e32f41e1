package validation

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

// New returns a validator that reports json field names and checks the
// cross-field rules of product payloads.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterStructValidation(productStructValidation, ProductRequest{})
	v.RegisterStructValidation(discountStructValidation, DiscountRequest{})

	return v
}

func productStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(ProductRequest)

	if req.Price.IsNegative() {
		sl.ReportError(req.Price, "price", "Price", "gte_zero", "")
	}
	if req.Cost.IsNegative() {
		sl.ReportError(req.Cost, "cost", "Cost", "gte_zero", "")
	}
	if !domain.IsMoney(req.Price) {
		sl.ReportError(req.Price, "price", "Price", "money", "")
	}
	if !domain.IsMoney(req.Cost) {
		sl.ReportError(req.Cost, "cost", "Cost", "money", "")
	}

	seen := make(map[string]struct{}, len(req.Variants))
	for _, v := range req.Variants {
		if _, dup := seen[v.Size]; dup {
			sl.ReportError(req.Variants, "variants", "Variants", "unique_size", v.Size)
			return
		}
		seen[v.Size] = struct{}{}
	}
}

// Percentages may carry any precision; a fixed amount is money.
func discountStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(DiscountRequest)

	if req.Type == domain.DiscountFixedAmount && !domain.IsMoney(req.Value) {
		sl.ReportError(req.Value, "value", "Value", "money", "")
	}
}
