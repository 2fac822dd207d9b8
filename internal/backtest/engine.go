package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/ducminhle1904/crypto-trade-engine/internal/market"
	"github.com/ducminhle1904/crypto-trade-engine/internal/monitoring"
	"github.com/ducminhle1904/crypto-trade-engine/internal/order"
	"github.com/ducminhle1904/crypto-trade-engine/internal/risk"
	"github.com/ducminhle1904/crypto-trade-engine/pkg/types"
)

// DefaultAllocation is the fraction of available cash committed per entry.
const DefaultAllocation = 0.95

// ExitReason tells what closed a position.
type ExitReason string

const (
	ExitSignal     ExitReason = "signal"
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
)

// Engine replays a signal series over historical bars with a single long
// position. It holds no state between runs.
type Engine struct {
	symbol      string
	allocation  float64
	constraints *market.Constraints
	policy      *risk.Policy
}

// Option configures an Engine.
type Option func(*Engine)

// WithAllocation sets the fraction of cash spent on each entry. Values outside
// (0, 1] are ignored.
func WithAllocation(fraction float64) Option {
	return func(e *Engine) {
		if fraction > 0 && fraction <= 1 {
			e.allocation = fraction
		}
	}
}

// WithSymbol labels the run.
func WithSymbol(symbol string) Option {
	return func(e *Engine) { e.symbol = symbol }
}

// WithConstraints sends every entry through the order validator so sizes are
// rounded and minimums are enforced the way a live order would be.
func WithConstraints(c market.Constraints) Option {
	return func(e *Engine) { e.constraints = &c }
}

// WithRiskPolicy adds protective exits: the buffered stop-loss and, when the
// policy has one, the take-profit are checked against each bar's range.
func WithRiskPolicy(p risk.Policy) Option {
	return func(e *Engine) { e.policy = &p }
}

// NewEngine creates an engine with the default allocation.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{allocation: DefaultAllocation}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fill is one synthetic execution.
type Fill struct {
	Bar        int
	Time       time.Time
	Side       order.Side
	Price      float64
	Amount     float64
	Commission float64
	Reason     ExitReason
}

// Trade is a closed round trip. PnL is net of both commissions.
type Trade struct {
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Quantity   float64
	PnL        float64
	Commission float64
	ExitReason ExitReason
}

// Won reports whether the trade exited above its entry.
func (t Trade) Won() bool {
	return t.ExitPrice > t.EntryPrice
}

// EquityPoint is the account value marked at one bar's close.
type EquityPoint struct {
	Bar       int
	Timestamp time.Time
	Equity    float64
	Cash      float64
	Position  float64
}

// Summary holds the derived performance figures of a run.
type Summary struct {
	TotalReturn   float64
	MaxDrawdown   float64
	SharpeRatio   float64
	TradeCount    int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	ProfitFactor  float64
}

// BacktestRun is the immutable result of one replay. Invalid is set, and
// nothing else happened, when the inputs could not be replayed.
type BacktestRun struct {
	Symbol         string
	Start          time.Time
	End            time.Time
	InitialCapital float64
	CommissionRate float64
	Fills          []Fill
	Trades         []Trade
	EquityCurve    []EquityPoint
	FinalEquity    float64
	SkippedEntries int
	Summary        Summary
	Invalid        string
}

// Run replays bars with the default engine.
func Run(bars []types.OHLCV, signals []types.Action, initialCapital, commissionRate float64) *BacktestRun {
	return NewEngine().Run(bars, signals, initialCapital, commissionRate)
}

type openTrade struct {
	entryTime  time.Time
	entryPrice float64
	quantity   float64
	commission float64
}

type account struct {
	cash   float64
	open   *openTrade
	run    *BacktestRun
	rate   float64
	engine *Engine
}

// Run replays signals over bars. signals[i] is acted upon at bars[i].Close;
// the first bar only seeds the reference mark. Equity is marked at each close
// with the holdings carried into the bar, before that bar's signal is applied.
func (e *Engine) Run(bars []types.OHLCV, signals []types.Action, initialCapital, commissionRate float64) *BacktestRun {
	monitoring.RecordBacktestRun()

	run := &BacktestRun{
		Symbol:         e.symbol,
		InitialCapital: initialCapital,
		CommissionRate: commissionRate,
		FinalEquity:    initialCapital,
	}
	if reason := checkInputs(bars, signals, initialCapital, commissionRate); reason != "" {
		run.Invalid = reason
		if !(initialCapital > 0) || math.IsInf(initialCapital, 0) {
			run.FinalEquity = 0
		}
		return run
	}

	run.Start = bars[0].Timestamp
	run.End = bars[len(bars)-1].Timestamp

	acct := &account{cash: initialCapital, run: run, rate: commissionRate, engine: e}
	for i := 1; i < len(bars); i++ {
		bar := bars[i]
		run.EquityCurve = append(run.EquityCurve, EquityPoint{
			Bar:       i,
			Timestamp: bar.Timestamp,
			Equity:    acct.equity(bar.Close),
			Cash:      acct.cash,
			Position:  acct.position(),
		})

		if acct.open != nil && e.policy != nil {
			if price, reason, hit := e.protectiveExit(acct.open, bar); hit {
				acct.sell(i, bar.Timestamp, price, reason)
				continue
			}
		}

		switch signals[i] {
		case types.ActionBuy:
			if acct.open == nil {
				acct.buy(i, bar.Timestamp, bar.Close)
			}
		case types.ActionSell:
			if acct.open != nil {
				acct.sell(i, bar.Timestamp, bar.Close, ExitSignal)
			}
		}
	}

	run.FinalEquity = acct.equity(bars[len(bars)-1].Close)
	run.Summary = summarize(run)
	return run
}

func (a *account) position() float64 {
	if a.open == nil {
		return 0
	}
	return a.open.quantity
}

func (a *account) equity(price float64) float64 {
	return a.cash + a.position()*price
}

func (a *account) buy(bar int, at time.Time, price float64) {
	size := a.cash / price * a.engine.allocation
	if c := a.engine.constraints; c != nil {
		n, err := order.Validate(*c, string(order.SideBuy), size, &price)
		if err != nil {
			a.run.SkippedEntries++
			return
		}
		size = n.Amount
	}

	cost := size * price
	commission := cost * a.rate
	if !(size > 0) || cost+commission > a.cash {
		a.run.SkippedEntries++
		return
	}

	a.cash -= cost + commission
	a.open = &openTrade{entryTime: at, entryPrice: price, quantity: size, commission: commission}
	a.run.Fills = append(a.run.Fills, Fill{
		Bar:        bar,
		Time:       at,
		Side:       order.SideBuy,
		Price:      price,
		Amount:     size,
		Commission: commission,
		Reason:     ExitSignal,
	})
}

func (a *account) sell(bar int, at time.Time, price float64, reason ExitReason) {
	t := a.open
	proceeds := t.quantity * price
	commission := proceeds * a.rate
	a.cash += proceeds - commission
	a.open = nil

	a.run.Fills = append(a.run.Fills, Fill{
		Bar:        bar,
		Time:       at,
		Side:       order.SideSell,
		Price:      price,
		Amount:     t.quantity,
		Commission: commission,
		Reason:     reason,
	})
	a.run.Trades = append(a.run.Trades, Trade{
		EntryTime:  t.entryTime,
		ExitTime:   at,
		EntryPrice: t.entryPrice,
		ExitPrice:  price,
		Quantity:   t.quantity,
		PnL:        (price-t.entryPrice)*t.quantity - t.commission - commission,
		Commission: t.commission + commission,
		ExitReason: reason,
	})
}

// protectiveExit checks the stop first so a bar touching both levels is
// booked as a loss. A bar opening beyond a level fills at the open.
func (e *Engine) protectiveExit(t *openTrade, bar types.OHLCV) (float64, ExitReason, bool) {
	_, stop := risk.StopLossPrices(t.entryPrice, risk.SideBuy, e.policy.StopLossPct, e.policy.BufferPct)
	if bar.Low <= stop {
		return math.Min(stop, bar.Open), ExitStopLoss, true
	}
	if e.policy.TakeProfitPct > 0 {
		tp := risk.TakeProfitPrice(t.entryPrice, risk.SideBuy, e.policy.TakeProfitPct)
		if bar.High >= tp {
			return math.Max(tp, bar.Open), ExitTakeProfit, true
		}
	}
	return 0, "", false
}

func checkInputs(bars []types.OHLCV, signals []types.Action, initialCapital, commissionRate float64) string {
	switch {
	case len(bars) == 0:
		return "no bars"
	case len(signals) != len(bars):
		return fmt.Sprintf("signal count %d does not match bar count %d", len(signals), len(bars))
	case !(initialCapital > 0) || math.IsInf(initialCapital, 0):
		return fmt.Sprintf("initial capital %v must be positive", initialCapital)
	case !(commissionRate >= 0) || commissionRate >= 1:
		return fmt.Sprintf("commission rate %v must be in [0, 1)", commissionRate)
	}
	for i, bar := range bars {
		if !bar.Valid() || math.IsInf(bar.Close, 0) || math.IsNaN(bar.Close) {
			return fmt.Sprintf("bar %d has invalid prices", i)
		}
	}
	return ""
}
