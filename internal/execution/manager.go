package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-trade-engine/internal/errors"
	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-trade-engine/internal/logger"
	"github.com/ducminhle1904/crypto-trade-engine/internal/market"
	"github.com/ducminhle1904/crypto-trade-engine/internal/monitoring"
	"github.com/ducminhle1904/crypto-trade-engine/internal/order"
	"github.com/ducminhle1904/crypto-trade-engine/internal/position"
	"github.com/ducminhle1904/crypto-trade-engine/internal/risk"
)

const component = "execution"

// ConstraintResolver returns the trading constraints of a symbol
type ConstraintResolver interface {
	Resolve(symbol string) (market.Constraints, error)
}

// PortfolioValuer returns the current portfolio value in quote currency
type PortfolioValuer func(ctx context.Context) (float64, error)

// OrderResult is the record of an order accepted by the exchange
type OrderResult struct {
	OrderID      string
	Symbol       string
	Side         order.Side
	Kind         order.Kind
	Role         Role
	Amount       float64
	FilledAmount float64
	AvgPrice     float64
	Status       exchange.OrderStatus
	State        State
	Trail        []State
	SubmittedAt  time.Time
}

// Price returns the limit price, zero for market orders
func (r OrderResult) Price() float64 {
	p, _ := order.PriceOf(r.Kind)
	return p
}

func (r *OrderResult) advance(to State) bool {
	if !CanTransition(r.State, to) {
		return false
	}
	r.State = to
	r.Trail = append(r.Trail, to)
	return true
}

func (r OrderResult) clone() OrderResult {
	r.Trail = append([]State(nil), r.Trail...)
	return r
}

// Manager validates and places orders against an exchange and keeps the
// history of accepted orders. It is safe for concurrent use.
type Manager struct {
	exchange  exchange.Exchange
	resolver  ConstraintResolver
	tracker   *position.Tracker
	assessor  risk.Assessor
	portfolio PortfolioValuer
	log       *logger.Logger
	stats     *errors.ErrorStats
	now       func() time.Time

	mu      sync.Mutex
	history []OrderResult
}

// Option configures a Manager
type Option func(*Manager)

// WithTracker lets dependent orders be checked against the known position
func WithTracker(t *position.Tracker) Option {
	return func(m *Manager) { m.tracker = t }
}

// WithRiskGate blocks protected entries that fail the risk sanity gate
func WithRiskGate(a risk.Assessor, portfolio PortfolioValuer) Option {
	return func(m *Manager) {
		m.assessor = a
		m.portfolio = portfolio
	}
}

// WithLogger sets the logger; the default discards output
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithErrorStats records every classified failure
func WithErrorStats(s *errors.ErrorStats) Option {
	return func(m *Manager) { m.stats = s }
}

// NewManager creates an execution manager
func NewManager(ex exchange.Exchange, resolver ConstraintResolver, opts ...Option) *Manager {
	m := &Manager{
		exchange: ex,
		resolver: resolver,
		log:      logger.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Execute validates spec against the market constraints and submits it.
// Only orders the exchange accepts are added to the history.
func (m *Manager) Execute(ctx context.Context, spec order.Spec) (*OrderResult, error) {
	return m.execute(ctx, spec, RolePrimary)
}

func (m *Manager) execute(ctx context.Context, spec order.Spec, role Role) (*OrderResult, error) {
	result := &OrderResult{
		Symbol: spec.Symbol,
		Side:   spec.Side,
		Kind:   spec.Kind,
		Role:   role,
		Amount: spec.Amount,
		State:  StateRequested,
		Trail:  []State{StateRequested},
	}
	operation := "place_" + string(role)

	c, err := m.resolver.Resolve(spec.Symbol)
	if err != nil {
		return nil, m.fail(result, err, operation)
	}

	normalized, err := order.ValidateSpec(c, spec)
	if err != nil {
		return nil, m.fail(result, err, operation)
	}
	result.Side = normalized.Side
	result.Kind = normalized.Kind
	result.Amount = normalized.Amount
	result.advance(StateValidated)

	m.log.Info("Submitting %s order: %s", role, normalized)
	placed, err := m.exchange.SubmitOrder(ctx, normalized)
	if err != nil {
		return nil, m.fail(result, err, operation)
	}

	result.advance(StateSubmitted)
	result.OrderID = placed.OrderID
	result.Status = placed.Status
	result.FilledAmount = placed.FilledAmount
	result.AvgPrice = placed.AvgPrice
	result.SubmittedAt = placed.CreatedTime
	if result.SubmittedAt.IsZero() {
		result.SubmittedAt = m.now()
	}

	state := stateFor(placed.Status)
	if state == StateRejected {
		err := exchange.NewError(exchange.CodeInvalidOrder, "Order rejected by exchange", placed.OrderID)
		return nil, m.fail(result, err, operation)
	}
	result.advance(state)

	m.mu.Lock()
	m.history = append(m.history, result.clone())
	m.mu.Unlock()

	monitoring.RecordOrder(result.Symbol, string(role), string(result.State), result.Amount)
	if result.State == StateFilled {
		m.log.LogOrderFill(result.OrderID, result.Symbol, string(result.Side), result.FilledAmount, result.AvgPrice)
	} else {
		m.log.Trade("%s order %s accepted: %s (%s)", role, result.OrderID, normalized, result.Status)
	}

	out := result.clone()
	return &out, nil
}

// fail classifies err, marks the result rejected and logs the failure
func (m *Manager) fail(result *OrderResult, err error, operation string) error {
	result.advance(StateRejected)

	tradeErr := errors.Classify(err, component, operation).
		WithContext("symbol", result.Symbol).
		WithContext("side", string(result.Side)).
		WithContext("amount", result.Amount).
		WithContext("trail", append([]State(nil), result.Trail...))
	if result.Kind != nil {
		tradeErr.WithContext("kind", result.Kind.Name())
	}

	if reason, ok := tradeErr.Context["reason"].(string); ok {
		monitoring.RecordRejection(reason)
	}
	if m.stats != nil {
		m.stats.RecordError(tradeErr)
	}
	monitoring.RecordError(string(tradeErr.Category))
	monitoring.RecordOrder(result.Symbol, string(result.Role), string(StateRejected), 0)
	m.log.Error("%s order %s %s failed: %v", result.Role, result.Side, result.Symbol, tradeErr)
	return tradeErr
}

// Cancel cancels an open order. Unknown or already closed orders surface as
// ORDER_NOT_FOUND.
func (m *Manager) Cancel(ctx context.Context, orderID, symbol string) error {
	if err := m.exchange.CancelOrder(ctx, orderID, symbol); err != nil {
		tradeErr := errors.Classify(err, component, "cancel").
			WithContext("order_id", orderID).
			WithContext("symbol", symbol)
		if m.stats != nil {
			m.stats.RecordError(tradeErr)
		}
		monitoring.RecordError(string(tradeErr.Category))
		m.log.Error("Cancel %s failed: %v", orderID, tradeErr)
		return tradeErr
	}

	m.mu.Lock()
	m.history = append(m.history, m.cancellation(orderID, symbol))
	m.mu.Unlock()

	m.log.Trade("Order %s on %s cancelled", orderID, symbol)
	return nil
}

// cancellation builds the record appended for a cancelled order. Earlier
// records of the order are left as they were. Callers hold m.mu.
func (m *Manager) cancellation(orderID, symbol string) OrderResult {
	rec := OrderResult{OrderID: orderID, Symbol: symbol}
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].OrderID == orderID {
			rec = m.history[i].clone()
			break
		}
	}
	rec.Role = RoleCancel
	rec.Status = exchange.OrderStatusCancelled
	rec.State = StateCancelled
	rec.Trail = []State{StateCancelled}
	rec.SubmittedAt = m.now()
	return rec
}

// History returns a snapshot of every accepted order in submission order
func (m *Manager) History() []OrderResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]OrderResult, len(m.history))
	for i, r := range m.history {
		out[i] = r.clone()
	}
	return out
}

func (m *Manager) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("execution(%s, %d orders)", m.exchange.GetName(), len(m.history))
}
