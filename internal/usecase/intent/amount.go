package intent

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/textpay-hq/textpay-backend/internal/domain"
)

// ParseAmount coerces a caller-supplied amount into integer minor units.
// Numeric strings may carry thousands separators ("1,000"). Fractional and
// non-positive values are rejected, not rounded.
func ParseAmount(raw string) (int64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return 0, domain.NewValidationError("Invalid number format")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, domain.NewValidationError("Invalid number format")
	}

	if !d.IsInteger() {
		return 0, domain.NewValidationError("Amount should be an integer")
	}
	if d.Sign() <= 0 {
		return 0, domain.NewValidationError("Amount should be a positive number")
	}

	return d.IntPart(), nil
}
