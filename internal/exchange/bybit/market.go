package bybit

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// KlineInterval represents the time interval for kline data
type KlineInterval string

const (
	Interval1m  KlineInterval = "1"
	Interval3m  KlineInterval = "3"
	Interval5m  KlineInterval = "5"
	Interval15m KlineInterval = "15"
	Interval30m KlineInterval = "30"
	Interval1h  KlineInterval = "60"
	Interval2h  KlineInterval = "120"
	Interval4h  KlineInterval = "240"
	Interval6h  KlineInterval = "360"
	Interval12h KlineInterval = "720"
	Interval1d  KlineInterval = "D"
	Interval1w  KlineInterval = "W"
	Interval1M  KlineInterval = "M"
)

var timeframes = map[string]KlineInterval{
	"1m": Interval1m, "3m": Interval3m, "5m": Interval5m, "15m": Interval15m, "30m": Interval30m,
	"1h": Interval1h, "2h": Interval2h, "4h": Interval4h, "6h": Interval6h, "12h": Interval12h,
	"1d": Interval1d, "1w": Interval1w, "1M": Interval1M,
}

// ParseInterval accepts "5m"-style timeframes as well as native Bybit values
func ParseInterval(timeframe string) (KlineInterval, error) {
	if iv, ok := timeframes[timeframe]; ok {
		return iv, nil
	}
	for _, iv := range timeframes {
		if string(iv) == timeframe {
			return iv, nil
		}
	}
	return "", fmt.Errorf("unsupported timeframe %q", timeframe)
}

// Kline represents a single kline/candlestick data point
type Kline struct {
	StartTime  time.Time
	OpenPrice  float64
	HighPrice  float64
	LowPrice   float64
	ClosePrice float64
	Volume     float64
	Turnover   float64
}

// KlineParams holds parameters for fetching kline data
type KlineParams struct {
	Category string        // "spot", "linear", "inverse"
	Symbol   string        // Trading pair symbol (e.g., "BTCUSDT")
	Interval KlineInterval // Time interval
	Start    *time.Time    // Start time (optional)
	End      *time.Time    // End time (optional)
	Limit    int           // Number of records to return (max 1000, default 200)
}

// Ticker is the best bid/ask and last trade for a symbol
type Ticker struct {
	Symbol    string
	Bid       float64
	Ask       float64
	Last      float64
	MarkPrice float64
	Volume    float64
}

// GetKlines fetches kline/candlestick data from Bybit, oldest first
func (c *Client) GetKlines(ctx context.Context, params KlineParams) ([]Kline, error) {
	if params.Limit == 0 {
		params.Limit = 200
	}
	if params.Limit > 1000 {
		params.Limit = 1000
	}

	reqParams := map[string]interface{}{
		"category": c.categoryOr(params.Category),
		"symbol":   params.Symbol,
		"interval": string(params.Interval),
		"limit":    params.Limit,
	}
	if params.Start != nil {
		reqParams["start"] = params.Start.UnixMilli()
	}
	if params.End != nil {
		reqParams["end"] = params.End.UnixMilli()
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(reqParams).GetMarketKline(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get klines: %w", err)
	}

	var body klineResult
	if err := decodeResult(result, &body); err != nil {
		return nil, err
	}
	return parseKlines(body), nil
}

// parseKlines converts rows to klines. Bybit returns newest first.
func parseKlines(body klineResult) []Kline {
	klines := make([]Kline, 0, len(body.List))
	for _, item := range body.List {
		if len(item) < 7 {
			continue
		}
		klines = append(klines, Kline{
			StartTime:  parseTimestamp(item[0]),
			OpenPrice:  parseFloat64(item[1]),
			HighPrice:  parseFloat64(item[2]),
			LowPrice:   parseFloat64(item[3]),
			ClosePrice: parseFloat64(item[4]),
			Volume:     parseFloat64(item[5]),
			Turnover:   parseFloat64(item[6]),
		})
	}
	sort.Slice(klines, func(i, j int) bool { return klines[i].StartTime.Before(klines[j].StartTime) })
	return klines
}

// GetTicker gets the best bid/ask and last price for a symbol
func (c *Client) GetTicker(ctx context.Context, category, symbol string) (*Ticker, error) {
	params := map[string]interface{}{
		"category": c.categoryOr(category),
		"symbol":   symbol,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticker: %w", err)
	}

	var body tickerResult
	if err := decodeResult(result, &body); err != nil {
		return nil, err
	}
	return parseTicker(body, symbol)
}

func parseTicker(body tickerResult, symbol string) (*Ticker, error) {
	for _, item := range body.List {
		if item.Symbol != symbol {
			continue
		}
		return &Ticker{
			Symbol:    item.Symbol,
			Bid:       parseFloat64(item.Bid1Price),
			Ask:       parseFloat64(item.Ask1Price),
			Last:      parseFloat64(item.LastPrice),
			MarkPrice: parseFloat64(item.MarkPrice),
			Volume:    parseFloat64(item.Volume24h),
		}, nil
	}
	return nil, NewBybitError(ErrCodeSymbolNotFound, "no ticker data found", symbol)
}

// GetLatestPrice gets the latest price for a symbol
func (c *Client) GetLatestPrice(ctx context.Context, category, symbol string) (float64, error) {
	t, err := c.GetTicker(ctx, category, symbol)
	if err != nil {
		return 0, err
	}
	return t.Last, nil
}
