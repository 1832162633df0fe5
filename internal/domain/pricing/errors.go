package pricing

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Input validation failures.
var (
	ErrEmptyCart   = errors.New("cart items cannot be empty")
	ErrNilCustomer = errors.New("customer profile is required")
)

// ValidationError reports a caller input that violates a precondition of
// the pricing API.
type ValidationError struct {
	Err error
	// Item is the offending cart line, or -1 when the error is not
	// line-specific.
	Item int
}

func (e *ValidationError) Error() string {
	if e.Item >= 0 {
		return fmt.Sprintf("invalid cart item %d: %s", e.Item, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// CalculationError wraps an unexpected failure raised while computing a
// price, typically from the rule store.
type CalculationError struct {
	Err error
}

func (e *CalculationError) Error() string {
	return "failed to calculate discounts: " + e.Err.Error()
}

func (e *CalculationError) Unwrap() error { return e.Err }

// CodeValidationError wraps an unexpected failure raised while validating a
// discount code. An invalid code is not an error.
type CodeValidationError struct {
	Code string
	Err  error
}

func (e *CodeValidationError) Error() string {
	return fmt.Sprintf("failed to validate discount code %q: %s", e.Code, e.Err)
}

func (e *CodeValidationError) Unwrap() error { return e.Err }
