package market

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrSymbolNotFound is returned when no constraints are known for a symbol.
var ErrSymbolNotFound = errors.New("market not found")

// Constraints are the exchange-imposed trading limits for one symbol.
// A zero MaxAmount means the exchange publishes no upper bound.
type Constraints struct {
	Symbol          string
	MinAmount       float64
	MaxAmount       float64
	MinNotional     float64
	AmountPrecision int
	PricePrecision  int
	FetchedAt       time.Time
}

// HasMaxAmount reports whether an upper amount bound is set.
func (c Constraints) HasMaxAmount() bool {
	return c.MaxAmount > 0
}

// RoundAmount rounds x to the amount precision, half away from zero.
func (c Constraints) RoundAmount(x float64) float64 {
	return roundTo(x, c.AmountPrecision)
}

// FloorAmount truncates a non-negative x toward zero at the amount precision.
func (c Constraints) FloorAmount(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return decimal.NewFromFloat(x).Truncate(int32(c.AmountPrecision)).InexactFloat64()
}

// RoundPrice rounds x to the price precision, half away from zero.
func (c Constraints) RoundPrice(x float64) float64 {
	return roundTo(x, c.PricePrecision)
}

// Validate checks the snapshot is usable for order validation.
func (c Constraints) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("constraints: empty symbol")
	}
	if c.MinAmount < 0 || c.MaxAmount < 0 || c.MinNotional < 0 {
		return fmt.Errorf("constraints %s: negative limit", c.Symbol)
	}
	if c.HasMaxAmount() && c.MaxAmount < c.MinAmount {
		return fmt.Errorf("constraints %s: max amount %.8f below min amount %.8f", c.Symbol, c.MaxAmount, c.MinAmount)
	}
	if c.AmountPrecision < 0 || c.PricePrecision < 0 {
		return fmt.Errorf("constraints %s: negative precision", c.Symbol)
	}
	return nil
}

func roundTo(x float64, digits int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	// NewFromFloat uses the shortest decimal form, so 2.675 rounds to 2.68.
	return decimal.NewFromFloat(x).Round(int32(digits)).InexactFloat64()
}

// PrecisionFromStep converts an exchange step or tick size such as "0.001"
// into the number of decimal digits it allows.
func PrecisionFromStep(step string) (int, error) {
	step = strings.TrimSpace(step)
	if step == "" {
		return 0, fmt.Errorf("empty step")
	}
	d, err := decimal.NewFromString(step)
	if err != nil {
		return 0, fmt.Errorf("invalid step %q: %w", step, err)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("step must be positive, got %s", step)
	}
	exp := d.Exponent()
	if exp >= 0 {
		return 0, nil
	}
	// Trailing zeros ("0.0010") do not add precision.
	digits := int(-exp)
	for digits > 0 && d.Shift(int32(digits-1)).Equal(d.Shift(int32(digits-1)).Truncate(0)) {
		digits--
	}
	return digits, nil
}
