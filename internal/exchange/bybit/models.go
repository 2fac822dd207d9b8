package bybit

import (
	"strconv"
	"time"
)

// klineResult is the result body of /v5/market/kline
type klineResult struct {
	Symbol   string     `json:"symbol"`
	Category string     `json:"category"`
	List     [][]string `json:"list"` // [startTime, open, high, low, close, volume, turnover]
}

// tickerResult is the result body of /v5/market/tickers
type tickerResult struct {
	Category string `json:"category"`
	List     []struct {
		Symbol    string `json:"symbol"`
		Bid1Price string `json:"bid1Price"`
		Ask1Price string `json:"ask1Price"`
		LastPrice string `json:"lastPrice"`
		MarkPrice string `json:"markPrice"`
		Volume24h string `json:"volume24h"`
	} `json:"list"`
}

// orderResult is the result body of order create and cancel
type orderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

// positionResult is the result body of /v5/position/list
type positionResult struct {
	List []struct {
		Symbol        string `json:"symbol"`
		Side          string `json:"side"`
		Size          string `json:"size"`
		AvgPrice      string `json:"avgPrice"`
		MarkPrice     string `json:"markPrice"`
		UnrealisedPnl string `json:"unrealisedPnl"`
		UpdatedTime   string `json:"updatedTime"`
	} `json:"list"`
	Category string `json:"category"`
}

// walletResult is the result body of /v5/account/wallet-balance
type walletResult struct {
	List []struct {
		AccountType string `json:"accountType"`
		Coin        []struct {
			Coin                string `json:"coin"`
			WalletBalance       string `json:"walletBalance"`
			AvailableToWithdraw string `json:"availableToWithdraw"`
			Locked              string `json:"locked"`
			TotalOrderIM        string `json:"totalOrderIM"`
			TotalPositionIM     string `json:"totalPositionIM"`
		} `json:"coin"`
	} `json:"list"`
}

// Helper functions for parsing string numbers
func parseFloat64(s string) float64 {
	if s == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	i, _ := strconv.ParseInt(s, 10, 64)
	return i
}

// parseTimestamp converts milliseconds timestamp to time.Time
func parseTimestamp(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	return time.UnixMilli(parseInt64(ts))
}

// formatFloat renders a number without exponent, as the API expects
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
