package paper

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-trade-engine/internal/market"
	"github.com/ducminhle1904/crypto-trade-engine/internal/order"
	"github.com/ducminhle1904/crypto-trade-engine/internal/position"
	"github.com/ducminhle1904/crypto-trade-engine/pkg/types"
)

// Config holds paper account settings
type Config struct {
	QuoteAsset     string  `json:"quote_asset"`
	InitialBalance float64 `json:"initial_balance"`
	CommissionRate float64 `json:"commission_rate"`
}

// DefaultConfig returns a 10k USDT account with a 0.1% fee
func DefaultConfig() Config {
	return Config{QuoteAsset: "USDT", InitialBalance: 10000, CommissionRate: 0.001}
}

// Fill is a simulated execution.
type Fill struct {
	OrderID    string
	Symbol     string
	Side       order.Side
	Price      float64
	Amount     float64
	Commission float64
	Time       time.Time
}

type holding struct {
	size      float64
	costBasis float64
}

// Exchange simulates spot execution against virtual balances. Market orders
// fill at the last price; limit and stop orders rest until SetPrice crosses
// them.
type Exchange struct {
	mu sync.Mutex

	cfg      Config
	markets  map[string]market.Constraints
	tickers  map[string]types.Ticker
	bars     map[string][]types.OHLCV
	quote    float64
	holdings map[string]*holding
	orders   map[string]*exchange.Order
	resting  []string
	fills    []Fill

	failSubmit func(order.Spec) error
	now        func() time.Time
}

// New creates a paper exchange with the quote balance from cfg
func New(cfg Config) *Exchange {
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	return &Exchange{
		cfg:      cfg,
		markets:  make(map[string]market.Constraints),
		tickers:  make(map[string]types.Ticker),
		bars:     make(map[string][]types.OHLCV),
		quote:    cfg.InitialBalance,
		holdings: make(map[string]*holding),
		orders:   make(map[string]*exchange.Order),
		now:      time.Now,
	}
}

func (p *Exchange) GetName() string { return "Paper" }

// AddMarket registers trading constraints for a symbol
func (p *Exchange) AddMarket(c market.Constraints) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markets[c.Symbol] = c
}

// LoadBars stores candles served by FetchOHLCV; the last close becomes the price
func (p *Exchange) LoadBars(symbol string, bars []types.OHLCV) {
	p.mu.Lock()
	p.bars[p.symbolKey(symbol)] = append([]types.OHLCV(nil), bars...)
	p.mu.Unlock()

	if len(bars) > 0 {
		p.SetPrice(symbol, bars[len(bars)-1].Close)
	}
}

// FailSubmit installs a hook that can reject submissions before they reach the book
func (p *Exchange) FailSubmit(fn func(order.Spec) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failSubmit = fn
}

// Deposit credits an asset. The quote asset adds cash; anything else adds a
// holding valued at the current price.
func (p *Exchange) Deposit(asset string, amount float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if asset == p.cfg.QuoteAsset {
		p.quote += amount
		return
	}
	h := p.holding(asset)
	h.size += amount
	h.costBasis += amount * p.tickers[asset+p.cfg.QuoteAsset].Price()
}

// SetPrice moves the last price and matches resting orders against it
func (p *Exchange) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := p.symbolKey(symbol)
	p.tickers[key] = types.Ticker{
		Symbol:    symbol,
		Bid:       price,
		Ask:       price,
		Last:      price,
		MarkPrice: price,
		Timestamp: p.now(),
	}
	p.matchResting(key, price)
}

func (p *Exchange) FetchMarketConstraints(ctx context.Context, symbol string) (market.Constraints, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.markets[symbol]
	if !ok {
		return market.Constraints{}, exchange.NewError(exchange.CodeInvalidSymbol, "Invalid trading symbol", symbol)
	}
	c.FetchedAt = p.now()
	return c, nil
}

func (p *Exchange) FetchTicker(ctx context.Context, symbol string) (types.Ticker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.tickers[p.symbolKey(symbol)]
	if !ok {
		return types.Ticker{}, exchange.NewError(exchange.CodeInvalidSymbol, "No price available", symbol)
	}
	return t, nil
}

func (p *Exchange) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]types.OHLCV, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bars := p.bars[p.symbolKey(symbol)]
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return append([]types.OHLCV(nil), bars...), nil
}

func (p *Exchange) FetchBalance(ctx context.Context, asset string) (types.Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if asset == p.cfg.QuoteAsset {
		return types.Balance{Asset: asset, Free: p.quote}, nil
	}
	h := p.holdings[asset]
	if h == nil {
		return types.Balance{Asset: asset}, nil
	}
	return types.Balance{Asset: asset, Free: h.size}, nil
}

// Equity values cash plus holdings at the last price
func (p *Exchange) Equity() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := p.quote
	for base, h := range p.holdings {
		total += h.size * p.tickers[base+p.cfg.QuoteAsset].Price()
	}
	return total
}

func (p *Exchange) FetchPositions(ctx context.Context, symbol string) ([]position.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []position.Position
	for base, h := range p.holdings {
		sym := base + p.cfg.QuoteAsset
		if symbol != "" && p.symbolKey(symbol) != sym {
			continue
		}
		if h.size <= 0 {
			continue
		}
		mark := p.tickers[sym].Price()
		entry := h.costBasis / h.size
		out = append(out, position.Position{
			Symbol:        p.displaySymbol(symbol, sym),
			Side:          position.SideLong,
			Size:          h.size,
			EntryPrice:    entry,
			MarkPrice:     mark,
			UnrealizedPnl: (mark - entry) * h.size,
			FetchedAt:     p.now(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (p *Exchange) SubmitOrder(ctx context.Context, spec order.Spec) (*exchange.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, exchange.NewError(exchange.CodeConnectionFailed, "Request cancelled", err.Error())
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failSubmit != nil {
		if err := p.failSubmit(spec); err != nil {
			return nil, err
		}
	}
	if err := spec.Check(); err != nil {
		return nil, exchange.NewError(exchange.CodeInvalidOrder, "Order rejected by exchange", err.Error())
	}

	ticker, ok := p.tickers[p.symbolKey(spec.Symbol)]
	if !ok {
		return nil, exchange.NewError(exchange.CodeInvalidSymbol, "No price available", spec.Symbol)
	}

	checkPrice := ticker.Price()
	if limit, ok := order.PriceOf(spec.Kind); ok {
		checkPrice = limit
	}
	if err := p.checkFunds(spec, checkPrice); err != nil {
		return nil, err
	}

	now := p.now()
	o := &exchange.Order{
		OrderID:     uuid.NewString(),
		Symbol:      spec.Symbol,
		Side:        spec.Side,
		Kind:        spec.Kind,
		Amount:      spec.Amount,
		Status:      exchange.OrderStatusNew,
		CreatedTime: now,
		UpdatedTime: now,
	}
	p.orders[o.OrderID] = o

	switch spec.Kind.(type) {
	case order.Market:
		p.fill(o, ticker.Price())
	case order.StopLossLimit:
		o.Status = exchange.OrderStatusUntriggered
		p.resting = append(p.resting, o.OrderID)
	default:
		p.resting = append(p.resting, o.OrderID)
		p.matchResting(p.symbolKey(spec.Symbol), ticker.Price())
	}

	c := *o
	return &c, nil
}

func (p *Exchange) CancelOrder(ctx context.Context, orderID, symbol string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[orderID]
	if !ok || (symbol != "" && o.Symbol != symbol) || !isOpen(o.Status) {
		return exchange.NewError(exchange.CodeOrderNotFound, "Order not found", orderID)
	}
	o.Status = exchange.OrderStatusCancelled
	o.UpdatedTime = p.now()
	p.removeResting(orderID)
	return nil
}

// Order returns a copy of a known order
func (p *Exchange) Order(orderID string) (exchange.Order, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[orderID]
	if !ok {
		return exchange.Order{}, false
	}
	return *o, true
}

// Fills returns all simulated executions
func (p *Exchange) Fills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Fill(nil), p.fills...)
}

func (p *Exchange) checkFunds(spec order.Spec, price float64) error {
	if spec.Side == order.SideBuy {
		cost := spec.Amount * price * (1 + p.cfg.CommissionRate)
		if cost > p.quote {
			return exchange.NewError(exchange.CodeInsufficientFunds, "Insufficient balance for trade",
				fmt.Sprintf("need %.8f %s, have %.8f", cost, p.cfg.QuoteAsset, p.quote))
		}
		return nil
	}
	base := p.baseOf(spec.Symbol)
	held := 0.0
	if h := p.holdings[base]; h != nil {
		held = h.size
	}
	if spec.Amount > held+1e-12 {
		return exchange.NewError(exchange.CodeInsufficientFunds, "Insufficient position for trade",
			fmt.Sprintf("need %.8f %s, have %.8f", spec.Amount, base, held))
	}
	return nil
}

func (p *Exchange) fill(o *exchange.Order, price float64) {
	if err := p.checkFunds(order.Spec{Symbol: o.Symbol, Side: o.Side, Kind: o.Kind, Amount: o.Amount}, price); err != nil {
		o.Status = exchange.OrderStatusRejected
		o.UpdatedTime = p.now()
		return
	}

	notional := o.Amount * price
	commission := notional * p.cfg.CommissionRate
	h := p.holding(p.baseOf(o.Symbol))

	if o.Side == order.SideBuy {
		p.quote -= notional + commission
		h.size += o.Amount
		h.costBasis += notional
	} else {
		avg := 0.0
		if h.size > 0 {
			avg = h.costBasis / h.size
		}
		p.quote += notional - commission
		h.size -= o.Amount
		h.costBasis -= avg * o.Amount
		if h.size <= 1e-12 {
			h.size, h.costBasis = 0, 0
		}
	}

	now := p.now()
	o.FilledAmount = o.Amount
	o.AvgPrice = price
	o.Status = exchange.OrderStatusFilled
	o.UpdatedTime = now
	p.fills = append(p.fills, Fill{
		OrderID:    o.OrderID,
		Symbol:     o.Symbol,
		Side:       o.Side,
		Price:      price,
		Amount:     o.Amount,
		Commission: commission,
		Time:       now,
	})
}

// matchResting fills resting orders on key that price makes marketable
func (p *Exchange) matchResting(key string, price float64) {
	remaining := p.resting[:0]
	for _, id := range p.resting {
		o := p.orders[id]
		if p.symbolKey(o.Symbol) != key || !isOpen(o.Status) {
			if isOpen(o.Status) {
				remaining = append(remaining, id)
			}
			continue
		}

		switch k := o.Kind.(type) {
		case order.StopLossLimit:
			if o.Status == exchange.OrderStatusUntriggered && triggered(o.Side, k.Trigger, price) {
				o.Status = exchange.OrderStatusNew
				o.UpdatedTime = p.now()
			}
			if o.Status == exchange.OrderStatusNew && crosses(o.Side, k.Price, price) {
				p.fill(o, k.Price)
			}
		case order.Limit:
			if crosses(o.Side, k.Price, price) {
				p.fill(o, k.Price)
			}
		}

		if isOpen(o.Status) {
			remaining = append(remaining, id)
		}
	}
	p.resting = remaining
}

func (p *Exchange) removeResting(orderID string) {
	for i, id := range p.resting {
		if id == orderID {
			p.resting = append(p.resting[:i], p.resting[i+1:]...)
			return
		}
	}
}

func (p *Exchange) holding(base string) *holding {
	h := p.holdings[base]
	if h == nil {
		h = &holding{}
		p.holdings[base] = h
	}
	return h
}

// baseOf strips the quote asset from a symbol such as BTCUSDT or BTC/USDT
func (p *Exchange) baseOf(symbol string) string {
	if i := strings.Index(symbol, "/"); i >= 0 {
		return symbol[:i]
	}
	return strings.TrimSuffix(symbol, p.cfg.QuoteAsset)
}

func (p *Exchange) symbolKey(symbol string) string {
	return p.baseOf(symbol) + p.cfg.QuoteAsset
}

func (p *Exchange) displaySymbol(requested, key string) string {
	if requested != "" {
		return requested
	}
	return key
}

func isOpen(s exchange.OrderStatus) bool {
	return s == exchange.OrderStatusNew || s == exchange.OrderStatusUntriggered || s == exchange.OrderStatusPartiallyFilled
}

// crosses reports whether a limit at limitPrice is marketable at price
func crosses(side order.Side, limitPrice, price float64) bool {
	if side == order.SideBuy {
		return price <= limitPrice
	}
	return price >= limitPrice
}

// triggered reports whether a stop at trigger fires at price
func triggered(side order.Side, trigger, price float64) bool {
	if side == order.SideSell {
		return price <= trigger
	}
	return price >= trigger
}

var _ exchange.Exchange = (*Exchange)(nil)

func (p *Exchange) String() string {
	return fmt.Sprintf("paper(%s %.2f)", p.cfg.QuoteAsset, p.cfg.InitialBalance)
}
