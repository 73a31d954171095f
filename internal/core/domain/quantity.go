package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var ErrInvalidQuantity = errors.New("invalid quantity")

// weightStep is the smallest increment for weight-based lines, in kilograms.
const weightStep = 0.25

const stepTolerance = 1e-9

type QuantityOp string

const (
	OpAdd      QuantityOp = "add"
	OpSubtract QuantityOp = "subtract"
)

// Step returns the increment applied by a single +/- tap.
func Step(unit MeasurementUnit) float64 {
	if unit == UnitByWeight {
		return weightStep
	}
	return 1
}

// ValidateQuantity checks a quantity against the unit rules. Weight lines
// require at least one whole kilogram; above that, quarter-kilogram steps.
// A 0.75 kg line is rejected even though it is a quarter multiple.
func ValidateQuantity(quantity float64, unit MeasurementUnit) error {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return fmt.Errorf("%w: not a finite number", ErrInvalidQuantity)
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidQuantity)
	}

	switch unit {
	case UnitByWeight:
		if quantity < 1 {
			return fmt.Errorf("%w: weight must be at least 1 kg", ErrInvalidQuantity)
		}
		if quantity > 1 {
			steps := quantity / weightStep
			if math.Abs(steps-math.Round(steps)) > stepTolerance {
				return fmt.Errorf("%w: weight must be a multiple of %.2f kg", ErrInvalidQuantity, weightStep)
			}
		}
	default:
		if quantity != math.Trunc(quantity) {
			return fmt.Errorf("%w: count must be a whole number", ErrInvalidQuantity)
		}
	}

	return nil
}

// FormatQuantity renders a quantity for display: two decimals for weight,
// plain integer for counted pieces.
func FormatQuantity(quantity float64, unit MeasurementUnit) string {
	if unit == UnitByWeight {
		return fmt.Sprintf("%.2f", quantity)
	}
	return fmt.Sprintf("%d", int64(math.Round(quantity)))
}

// ClampArithmetic applies a step to the current quantity, rounding through
// decimal to avoid float drift and flooring the result at zero.
func ClampArithmetic(current, step float64, op QuantityOp) float64 {
	cur := decimal.NewFromFloat(current)
	st := decimal.NewFromFloat(step)

	var next decimal.Decimal
	if op == OpSubtract {
		next = cur.Sub(st)
	} else {
		next = cur.Add(st)
	}

	next = next.Round(2)
	if next.IsNegative() {
		return 0
	}
	result, _ := next.Float64()
	return result
}
