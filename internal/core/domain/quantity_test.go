package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateQuantity_Weight(t *testing.T) {
	cases := []struct {
		name     string
		quantity float64
		wantErr  bool
	}{
		{"quarter below minimum", 0.25, true},
		{"three quarters below minimum", 0.75, true},
		{"exactly one kilogram", 1, false},
		{"quarter step above minimum", 1.25, false},
		{"off-step above minimum", 1.1, true},
		{"large quarter step", 12.75, false},
		{"zero", 0, true},
		{"negative", -1, true},
		{"not finite", math.NaN(), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateQuantity(tc.quantity, UnitByWeight)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidQuantity)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateQuantity_Count(t *testing.T) {
	assert.NoError(t, ValidateQuantity(2, UnitByCount))
	assert.ErrorIs(t, ValidateQuantity(2.5, UnitByCount), ErrInvalidQuantity)
	assert.ErrorIs(t, ValidateQuantity(0, UnitByCount), ErrInvalidQuantity)
	assert.ErrorIs(t, ValidateQuantity(math.Inf(1), UnitByCount), ErrInvalidQuantity)
}

func TestStep(t *testing.T) {
	assert.Equal(t, 0.25, Step(UnitByWeight))
	assert.Equal(t, 1.0, Step(UnitByCount))
}

func TestFormatQuantity(t *testing.T) {
	assert.Equal(t, "1.25", FormatQuantity(1.25, UnitByWeight))
	assert.Equal(t, "3.00", FormatQuantity(3, UnitByWeight))
	assert.Equal(t, "3", FormatQuantity(3, UnitByCount))
}

func TestClampArithmetic(t *testing.T) {
	assert.Equal(t, 1.25, ClampArithmetic(1, 0.25, OpAdd))
	assert.Equal(t, 0.75, ClampArithmetic(1, 0.25, OpSubtract))
	assert.Equal(t, 0.0, ClampArithmetic(0.25, 1, OpSubtract))

	// repeated quarter steps must not accumulate float drift
	q := 1.0
	for i := 0; i < 40; i++ {
		q = ClampArithmetic(q, 0.25, OpAdd)
	}
	assert.Equal(t, 11.0, q)
}

func TestGuessUnit(t *testing.T) {
	assert.Equal(t, UnitByWeight, GuessUnit("Scrap Metal"))
	assert.Equal(t, UnitByWeight, GuessUnit("paper-waste"))
	assert.Equal(t, UnitByCount, GuessUnit("Bottles"))
	assert.Equal(t, UnitByCount, GuessUnit(""))
}
