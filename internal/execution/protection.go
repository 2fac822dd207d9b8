package execution

import (
	"context"
	"strings"

	"github.com/ducminhle1904/crypto-trade-engine/internal/errors"
	"github.com/ducminhle1904/crypto-trade-engine/internal/monitoring"
	"github.com/ducminhle1904/crypto-trade-engine/internal/order"
	"github.com/ducminhle1904/crypto-trade-engine/internal/position"
	"github.com/ducminhle1904/crypto-trade-engine/internal/risk"
)

// StopLossParams describes a protective stop. LimitPrice defaults to StopPrice.
type StopLossParams struct {
	StopPrice  float64
	LimitPrice *float64
}

// ProtectedOrder is an entry order with optional protective exits
type ProtectedOrder struct {
	Order      order.Spec
	StopLoss   *StopLossParams
	TakeProfit *float64
}

// DependentOutcome is the result of one protective order. Exactly one of
// Result and Err is set.
type DependentOutcome struct {
	Result *OrderResult
	Err    error
}

// OK reports whether the protective order was accepted
func (d *DependentOutcome) OK() bool {
	return d != nil && d.Err == nil
}

// Placement reports the primary order and each requested dependent.
// Dependents are independent orders: a failed stop-loss or take-profit
// leaves the primary in place.
type Placement struct {
	Primary    *OrderResult
	Risk       *risk.Assessment
	StopLoss   *DependentOutcome
	TakeProfit *DependentOutcome
	Warnings   []string
}

// Protected reports whether every requested dependent was accepted
func (p *Placement) Protected() bool {
	return (p.StopLoss == nil || p.StopLoss.OK()) && (p.TakeProfit == nil || p.TakeProfit.OK())
}

// Failures lists the errors of failed dependents
func (p *Placement) Failures() []error {
	var out []error
	for _, d := range []*DependentOutcome{p.StopLoss, p.TakeProfit} {
		if d != nil && d.Err != nil {
			out = append(out, d.Err)
		}
	}
	return out
}

// PlaceWithProtection places the entry order and then its stop-loss and
// take-profit on the opposite side for the entry's normalized amount. An
// error is returned only when nothing was placed; dependent failures are
// reported in the Placement.
func (m *Manager) PlaceWithProtection(ctx context.Context, po ProtectedOrder) (*Placement, error) {
	placement := &Placement{}

	var known *position.Position
	if m.tracker != nil {
		if pos, ok := m.tracker.Cached(po.Order.Symbol); ok && pos != nil && pos.Open() {
			known = pos
		}
	}

	if m.assessor != nil {
		assessment, err := m.assess(ctx, po.Order)
		if err != nil {
			return nil, err
		}
		placement.Risk = assessment
	}

	primary, err := m.execute(ctx, po.Order, RolePrimary)
	if err != nil {
		return nil, err
	}
	placement.Primary = primary
	if m.tracker != nil {
		m.tracker.Invalidate(po.Order.Symbol)
	}

	entry := entryPrice(primary, known)

	if po.StopLoss != nil {
		result, warnings, err := m.placeStopLoss(ctx, primary.Symbol, primary.Side, primary.Amount, *po.StopLoss, known, entry)
		placement.StopLoss = m.outcome(RoleStopLoss, result, err)
		placement.Warnings = append(placement.Warnings, warnings...)
	}
	if po.TakeProfit != nil {
		result, err := m.placeTakeProfit(ctx, primary.Symbol, primary.Side, primary.Amount, *po.TakeProfit, known, entry)
		placement.TakeProfit = m.outcome(RoleTakeProfit, result, err)
	}

	if !placement.Protected() {
		m.log.Warning("Entry %s on %s is live without full protection: %d dependent order(s) failed",
			primary.OrderID, primary.Symbol, len(placement.Failures()))
	}
	return placement, nil
}

// PlaceStopLoss places a stop-loss-limit order that exits a position opened
// on entrySide.
func (m *Manager) PlaceStopLoss(ctx context.Context, symbol string, entrySide order.Side, amount float64, params StopLossParams) (*OrderResult, error) {
	known := m.knownPosition(symbol)
	result, warnings, err := m.placeStopLoss(ctx, symbol, entrySide, amount, params, known, entryPrice(nil, known))
	for _, w := range warnings {
		m.log.Warning("%s", w)
	}
	return result, err
}

// PlaceTakeProfit places a limit order that exits a position opened on entrySide.
func (m *Manager) PlaceTakeProfit(ctx context.Context, symbol string, entrySide order.Side, amount, price float64) (*OrderResult, error) {
	known := m.knownPosition(symbol)
	return m.placeTakeProfit(ctx, symbol, entrySide, amount, price, known, entryPrice(nil, known))
}

func (m *Manager) placeStopLoss(ctx context.Context, symbol string, entrySide order.Side, amount float64, params StopLossParams, known *position.Position, entry float64) (*OrderResult, []string, error) {
	stop := params.StopPrice
	var warnings []string
	if entry > 0 {
		v := position.ValidateStopTake(known, entry, &stop, nil, string(entrySide))
		if !v.Valid {
			return nil, nil, m.rejectDependent(symbol, RoleStopLoss, v.Errors)
		}
		warnings = v.Warnings
	}

	limit := stop
	if params.LimitPrice != nil {
		limit = *params.LimitPrice
	}

	spec := order.Spec{
		Symbol: symbol,
		Side:   entrySide.Opposite(),
		Kind:   order.StopLossLimit{Price: limit, Trigger: stop},
		Amount: amount,
	}
	result, err := m.execute(ctx, spec, RoleStopLoss)
	return result, warnings, err
}

func (m *Manager) placeTakeProfit(ctx context.Context, symbol string, entrySide order.Side, amount, price float64, known *position.Position, entry float64) (*OrderResult, error) {
	if entry > 0 {
		v := position.ValidateStopTake(known, entry, nil, &price, string(entrySide))
		if !v.Valid {
			return nil, m.rejectDependent(symbol, RoleTakeProfit, v.Errors)
		}
	}

	spec := order.Spec{
		Symbol: symbol,
		Side:   entrySide.Opposite(),
		Kind:   order.Limit{Price: price},
		Amount: amount,
	}
	return m.execute(ctx, spec, RoleTakeProfit)
}

func (m *Manager) rejectDependent(symbol string, role Role, reasons []string) error {
	err := errors.NewValidationError(component, "place_"+string(role), strings.Join(reasons, "; ")).
		WithContext("symbol", symbol)
	if m.stats != nil {
		m.stats.RecordError(err)
	}
	monitoring.RecordError(string(err.Category))
	m.log.Error("%s order on %s rejected: %v", role, symbol, err)
	return err
}

func (m *Manager) outcome(role Role, result *OrderResult, err error) *DependentOutcome {
	if err != nil {
		monitoring.RecordDependentFailure(string(role))
		return &DependentOutcome{Err: err}
	}
	return &DependentOutcome{Result: result}
}

// assess runs the risk sanity gate for an entry. Market orders are priced
// at the current ticker.
func (m *Manager) assess(ctx context.Context, spec order.Spec) (*risk.Assessment, error) {
	entry, ok := order.PriceOf(spec.Kind)
	if !ok {
		ticker, err := m.exchange.FetchTicker(ctx, spec.Symbol)
		if err != nil {
			return nil, m.classify(err, "assess_risk")
		}
		entry = ticker.Price()
	}

	portfolio := 0.0
	if m.portfolio != nil {
		v, err := m.portfolio(ctx)
		if err != nil {
			return nil, m.classify(err, "assess_risk")
		}
		portfolio = v
	}

	assessment := m.assessor.Assess(risk.Request{
		Entry:          entry,
		Side:           risk.Side(spec.Side),
		Amount:         spec.Amount,
		PortfolioValue: portfolio,
	})
	monitoring.RecordRiskAssessment(assessment.Passed)

	if !assessment.Passed {
		err := errors.NewRiskError(component, "assess_risk", assessment.Reasons).
			WithContext("symbol", spec.Symbol).
			WithContext("risk_pct", assessment.RiskPctOfPortfolio)
		if m.stats != nil {
			m.stats.RecordError(err)
		}
		monitoring.RecordError(string(err.Category))
		m.log.Warning("Entry on %s blocked by risk policy: %s", spec.Symbol, strings.Join(assessment.Reasons, " "))
		return nil, err
	}

	m.log.Info("Risk check passed for %s: stop %.8g, risk %.2f%% of portfolio",
		spec.Symbol, assessment.StopLossBuffered, assessment.RiskPctOfPortfolio)
	return &assessment, nil
}

func (m *Manager) classify(err error, operation string) *errors.TradeError {
	tradeErr := errors.Classify(err, component, operation)
	if m.stats != nil {
		m.stats.RecordError(tradeErr)
	}
	monitoring.RecordError(string(tradeErr.Category))
	m.log.Error("%s failed: %v", operation, tradeErr)
	return tradeErr
}

func (m *Manager) knownPosition(symbol string) *position.Position {
	if m.tracker == nil {
		return nil
	}
	if pos, ok := m.tracker.Cached(symbol); ok && pos != nil && pos.Open() {
		return pos
	}
	return nil
}

// entryPrice is the reference for dependent checks: the primary's average
// fill, else its limit price, else the known position's entry.
func entryPrice(primary *OrderResult, known *position.Position) float64 {
	if primary != nil {
		if primary.AvgPrice > 0 {
			return primary.AvgPrice
		}
		if p := primary.Price(); p > 0 {
			return p
		}
	}
	if known != nil {
		return known.Entry()
	}
	return 0
}
