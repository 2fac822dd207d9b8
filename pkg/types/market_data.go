package types

import (
	"fmt"
	"strings"
	"time"
)

type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// Valid reports whether the bar has positive, internally consistent prices.
func (b OHLCV) Valid() bool {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return false
	}
	return b.High >= b.Low && b.Volume >= 0
}

type Ticker struct {
	Symbol    string
	Bid       float64
	Ask       float64
	Last      float64
	MarkPrice float64
	Volume    float64
	Timestamp time.Time
}

// Price returns the best single reference price available on the ticker.
func (t Ticker) Price() float64 {
	switch {
	case t.Last > 0:
		return t.Last
	case t.MarkPrice > 0:
		return t.MarkPrice
	case t.Bid > 0 && t.Ask > 0:
		return (t.Bid + t.Ask) / 2
	}
	return 0
}

type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

// Action is the trading decision emitted by a signal producer.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// ParseAction accepts buy, sell and hold in any case.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionBuy:
		return ActionBuy, nil
	case ActionSell:
		return ActionSell, nil
	case ActionHold, "":
		return ActionHold, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Signal is what a strategy hands to the engine. Only Action is acted upon.
type Signal struct {
	Action     Action
	Confidence float64
}
