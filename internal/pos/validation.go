package pos

import (
	"github.com/go-playground/validator/v10"

	"github.com/stockline/stockline/internal/platform/validate"
	"github.com/stockline/stockline/internal/shared"
)

// priceScale is the number of decimal places stored for prices and totals.
const priceScale = validate.MoneyScale

// ValidateCart checks every line before any storage access. The first violation
// fails the whole cart. Prices go through the money rule; the total must fit the
// invoice column too.
func ValidateCart(v *validator.Validate, input CheckoutInput) error {
	if err := validate.Struct(v, input); err != nil {
		return err
	}
	if CartTotal(input.Items).GreaterThan(validate.MaxMoney) {
		return shared.NewValidationError("items", "total must be at most "+validate.MaxMoney.StringFixed(priceScale))
	}
	return nil
}
