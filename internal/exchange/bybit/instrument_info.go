package bybit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-trade-engine/internal/market"
)

// InstrumentInfo holds the trading filters of an instrument. Spot and
// derivatives publish the lot size under different field names.
type InstrumentInfo struct {
	Symbol      string `json:"symbol"`
	Status      string `json:"status"`
	BaseCoin    string `json:"baseCoin"`
	QuoteCoin   string `json:"quoteCoin"`
	PriceFilter struct {
		MinPrice string `json:"minPrice"`
		MaxPrice string `json:"maxPrice"`
		TickSize string `json:"tickSize"`
	} `json:"priceFilter"`
	LotSizeFilter struct {
		BasePrecision    string `json:"basePrecision"`
		QtyStep          string `json:"qtyStep"`
		MinOrderQty      string `json:"minOrderQty"`
		MaxOrderQty      string `json:"maxOrderQty"`
		MinOrderAmt      string `json:"minOrderAmt"`
		MinNotionalValue string `json:"minNotionalValue"`
	} `json:"lotSizeFilter"`
}

// Constraints converts the instrument filters into market constraints
func (ii *InstrumentInfo) Constraints() (market.Constraints, error) {
	step := ii.LotSizeFilter.QtyStep
	if step == "" {
		step = ii.LotSizeFilter.BasePrecision
	}
	amountPrecision, err := market.PrecisionFromStep(step)
	if err != nil {
		return market.Constraints{}, fmt.Errorf("instrument %s qty step: %w", ii.Symbol, err)
	}
	pricePrecision, err := market.PrecisionFromStep(ii.PriceFilter.TickSize)
	if err != nil {
		return market.Constraints{}, fmt.Errorf("instrument %s tick size: %w", ii.Symbol, err)
	}

	minNotional := ii.LotSizeFilter.MinNotionalValue
	if minNotional == "" {
		minNotional = ii.LotSizeFilter.MinOrderAmt
	}

	return market.Constraints{
		Symbol:          ii.Symbol,
		MinAmount:       parseFloat64(ii.LotSizeFilter.MinOrderQty),
		MaxAmount:       parseFloat64(ii.LotSizeFilter.MaxOrderQty),
		MinNotional:     parseFloat64(minNotional),
		AmountPrecision: amountPrecision,
		PricePrecision:  pricePrecision,
	}, nil
}

// InstrumentManager caches instrument information
type InstrumentManager struct {
	client         *Client
	instruments    map[string]*InstrumentInfo
	fetchedAt      map[string]time.Time
	mutex          sync.RWMutex
	updateInterval time.Duration
}

// NewInstrumentManager creates a new instrument manager
func NewInstrumentManager(client *Client) *InstrumentManager {
	return &InstrumentManager{
		client:         client,
		instruments:    make(map[string]*InstrumentInfo),
		fetchedAt:      make(map[string]time.Time),
		updateInterval: time.Hour,
	}
}

// GetInstrumentInfo retrieves and caches instrument information
func (im *InstrumentManager) GetInstrumentInfo(ctx context.Context, category, symbol string) (*InstrumentInfo, error) {
	im.mutex.RLock()
	instrument, exists := im.instruments[symbol]
	fresh := exists && time.Since(im.fetchedAt[symbol]) < im.updateInterval
	im.mutex.RUnlock()
	if fresh {
		return instrument, nil
	}

	instrument, err := im.fetchInstrumentInfo(ctx, im.client.categoryOr(category), symbol)
	if err != nil {
		return nil, err
	}

	im.mutex.Lock()
	im.instruments[symbol] = instrument
	im.fetchedAt[symbol] = time.Now()
	im.mutex.Unlock()

	return instrument, nil
}

// Invalidate drops the cached entry for symbol, or all entries when empty
func (im *InstrumentManager) Invalidate(symbol string) {
	im.mutex.Lock()
	defer im.mutex.Unlock()

	if symbol == "" {
		im.instruments = make(map[string]*InstrumentInfo)
		im.fetchedAt = make(map[string]time.Time)
		return
	}
	delete(im.instruments, symbol)
	delete(im.fetchedAt, symbol)
}

func (im *InstrumentManager) fetchInstrumentInfo(ctx context.Context, category, symbol string) (*InstrumentInfo, error) {
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	result, err := im.client.httpClient.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch instrument info: %w", err)
	}

	var body struct {
		Category string           `json:"category"`
		List     []InstrumentInfo `json:"list"`
	}
	if err := decodeResult(result, &body); err != nil {
		return nil, err
	}
	return findInstrument(body.List, symbol)
}

func findInstrument(list []InstrumentInfo, symbol string) (*InstrumentInfo, error) {
	for i := range list {
		if list[i].Symbol == symbol {
			info := list[i]
			return &info, nil
		}
	}
	return nil, NewBybitError(ErrCodeSymbolNotFound, "instrument not found", symbol)
}
