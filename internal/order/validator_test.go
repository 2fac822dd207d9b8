package order

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-trade-engine/internal/market"
)

func btcConstraints() market.Constraints {
	return market.Constraints{
		Symbol:          "BTC/USDT",
		MinAmount:       0.001,
		MaxAmount:       100,
		MinNotional:     5,
		AmountPrecision: 3,
		PricePrecision:  2,
	}
}

func ptr(f float64) *float64 { return &f }

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	var rej *Rejection
	require.True(t, errors.As(err, &rej), "expected *Rejection, got %T", err)
	return rej.Reason
}

// TestValidate tests each rejection path and the happy path
func TestValidate(t *testing.T) {
	c := btcConstraints()

	tests := []struct {
		name       string
		side       string
		amount     float64
		price      *float64
		wantReason string
		wantAmount float64
		wantPrice  float64
	}{
		{name: "below minimum", side: "buy", amount: 0.0004, price: ptr(30000), wantReason: ReasonAmountBelowMin},
		{name: "rounds to zero", side: "buy", amount: 0.0001, wantReason: ReasonAmountBelowMin},
		{name: "above maximum", side: "sell", amount: 150, wantReason: ReasonAmountAboveMax},
		{name: "invalid side", side: "hold", amount: 1, wantReason: ReasonInvalidSide},
		{name: "empty side", side: "", amount: 1, wantReason: ReasonInvalidSide},
		{name: "invalid side before zero amount", side: "hold", amount: 0, wantReason: ReasonInvalidSide},
		{name: "invalid side before zero price", side: "hold", amount: 1, price: ptr(0), wantReason: ReasonInvalidSide},
		{name: "notional too small", side: "buy", amount: 0.001, price: ptr(1000), wantReason: ReasonNotionalBelowMin},
		{name: "negative amount", side: "buy", amount: -1, wantReason: ReasonInvalidAmount},
		{name: "nan amount", side: "buy", amount: math.NaN(), wantReason: ReasonInvalidAmount},
		{name: "zero price", side: "buy", amount: 1, price: ptr(0), wantReason: ReasonInvalidPrice},
		{name: "ok market", side: "BUY", amount: 0.0125, wantAmount: 0.013},
		{name: "ok limit", side: "sell", amount: 0.5, price: ptr(30000.126), wantAmount: 0.5, wantPrice: 30000.13},
		{name: "notional exactly minimum", side: "buy", amount: 0.005, price: ptr(1000), wantAmount: 0.005, wantPrice: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(c, tt.side, tt.amount, tt.price)
			if tt.wantReason != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantReason, reasonOf(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAmount, got.Amount)
			if tt.price == nil {
				assert.Nil(t, got.Price)
			} else {
				require.NotNil(t, got.Price)
				assert.Equal(t, tt.wantPrice, *got.Price)
			}
		})
	}
}

func TestValidateBelowMinimumExample(t *testing.T) {
	_, err := Validate(btcConstraints(), "buy", 0.0004, ptr(30000))
	require.Error(t, err)
	assert.Equal(t, "amount below minimum", reasonOf(t, err))
}

func TestValidateNoMaximum(t *testing.T) {
	c := btcConstraints()
	c.MaxAmount = 0

	got, err := Validate(c, "buy", 1e6, nil)
	require.NoError(t, err)
	assert.Equal(t, 1e6, got.Amount)
}

// TestValidateIdempotent tests that validating a normalized order returns it unchanged
func TestValidateIdempotent(t *testing.T) {
	c := btcConstraints()
	inputs := []struct {
		side   string
		amount float64
		price  *float64
	}{
		{"buy", 0.0125, nil},
		{"sell", 1.23456, ptr(27123.456)},
		{"buy", 99.9994, ptr(0.055)},
		{"sell", 0.0015, ptr(30000.005)},
	}

	for _, in := range inputs {
		first, err := Validate(c, in.side, in.amount, in.price)
		require.NoError(t, err)

		second, err := Validate(c, string(first.Side), first.Amount, first.Price)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestValidateSpec(t *testing.T) {
	c := btcConstraints()

	t.Run("market", func(t *testing.T) {
		got, err := ValidateSpec(c, Spec{Symbol: c.Symbol, Side: SideBuy, Kind: Market{}, Amount: 0.0125})
		require.NoError(t, err)
		assert.Equal(t, Market{}, got.Kind)
		assert.Equal(t, 0.013, got.Amount)
	})

	t.Run("stop loss limit rounds trigger", func(t *testing.T) {
		got, err := ValidateSpec(c, Spec{
			Symbol: c.Symbol,
			Side:   SideSell,
			Kind:   StopLossLimit{Price: 97.015, Trigger: 98.004},
			Amount: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, StopLossLimit{Price: 97.02, Trigger: 98.0}, got.Kind)
	})

	t.Run("missing kind", func(t *testing.T) {
		_, err := ValidateSpec(c, Spec{Symbol: c.Symbol, Side: SideBuy, Amount: 1})
		require.Error(t, err)
		assert.Equal(t, ReasonInvalidKind, reasonOf(t, err))
	})

	t.Run("non-positive trigger", func(t *testing.T) {
		_, err := ValidateSpec(c, Spec{Symbol: c.Symbol, Side: SideSell, Kind: StopLossLimit{Price: 97, Trigger: 0}, Amount: 1})
		require.Error(t, err)
		assert.Equal(t, ReasonInvalidPrice, reasonOf(t, err))
	})

	t.Run("limit below notional", func(t *testing.T) {
		_, err := ValidateSpec(c, Spec{Symbol: c.Symbol, Side: SideBuy, Kind: Limit{Price: 1}, Amount: 1})
		require.Error(t, err)
		assert.Equal(t, ReasonNotionalBelowMin, reasonOf(t, err))
	})
}

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
}

func TestKindAccessors(t *testing.T) {
	_, ok := PriceOf(Market{})
	assert.False(t, ok)

	p, ok := PriceOf(Limit{Price: 10})
	assert.True(t, ok)
	assert.Equal(t, 10.0, p)

	tr, ok := TriggerOf(StopLossLimit{Price: 9, Trigger: 9.5})
	assert.True(t, ok)
	assert.Equal(t, 9.5, tr)

	_, ok = TriggerOf(Limit{Price: 10})
	assert.False(t, ok)
}
