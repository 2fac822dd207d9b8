package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	mainnetStream = "wss://stream.bybit.com/v5/public/"
	testnetStream = "wss://stream-testnet.bybit.com/v5/public/"
)

// StreamURL returns the public websocket endpoint for a category
func StreamURL(category string, testnet bool) string {
	if category == "" {
		category = "spot"
	}
	if testnet {
		return testnetStream + category
	}
	return mainnetStream + category
}

type streamMessage struct {
	Op      string          `json:"op"`
	Success *bool           `json:"success"`
	RetMsg  string          `json:"ret_msg"`
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Ts      int64           `json:"ts"`
	Data    json.RawMessage `json:"data"`
}

type streamTicker struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
	Bid1Price string `json:"bid1Price"`
	Ask1Price string `json:"ask1Price"`
	MarkPrice string `json:"markPrice"`
	Volume24h string `json:"volume24h"`
}

// StreamTicker is a ticker snapshot received over the websocket
type StreamTicker struct {
	Ticker
	UpdatedAt time.Time
}

// TickerStream keeps the latest public ticker for subscribed symbols
type TickerStream struct {
	url          string
	dialer       *websocket.Dialer
	pingInterval time.Duration

	mu     sync.RWMutex
	latest map[string]StreamTicker

	writeMu sync.Mutex
}

// NewTickerStream creates a stream for the websocket endpoint url
func NewTickerStream(url string) *TickerStream {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	return &TickerStream{
		url:          url,
		dialer:       &dialer,
		pingInterval: 20 * time.Second,
		latest:       make(map[string]StreamTicker),
	}
}

// Latest returns the last ticker received for symbol
func (s *TickerStream) Latest(symbol string) (StreamTicker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.latest[symbol]
	return t, ok
}

// Run connects, subscribes to symbols and reads until ctx is cancelled or the
// connection fails.
func (s *TickerStream) Run(ctx context.Context, symbols ...string) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}
	defer conn.Close()

	topics := make([]string, len(symbols))
	for i, symbol := range symbols {
		topics[i] = "tickers." + symbol
	}
	if err := s.write(conn, map[string]interface{}{"op": "subscribe", "args": topics}); err != nil {
		return fmt.Errorf("failed to send subscribe message: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go s.keepAlive(ctx, conn, done)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read message: %w", err)
		}
		if err := s.handleMessage(message); err != nil {
			return err
		}
	}
}

// RunWithReconnect keeps the stream alive, reconnecting after failures
func (s *TickerStream) RunWithReconnect(ctx context.Context, delay time.Duration, onError func(error), symbols ...string) {
	for {
		err := s.Run(ctx, symbols...)
		if ctx.Err() != nil {
			return
		}
		if onError != nil {
			onError(err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// keepAlive sends application pings and closes the connection on cancel
func (s *TickerStream) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			if err := s.write(conn, map[string]string{"op": "ping"}); err != nil {
				return
			}
		}
	}
}

func (s *TickerStream) write(conn *websocket.Conn, v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// handleMessage merges a ticker push into the latest snapshot. Delta pushes
// only carry changed fields.
func (s *TickerStream) handleMessage(message []byte) error {
	var msg streamMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return fmt.Errorf("invalid stream message: %w", err)
	}

	if msg.Op == "subscribe" && msg.Success != nil && !*msg.Success {
		return fmt.Errorf("subscription rejected: %s", msg.RetMsg)
	}
	if !strings.HasPrefix(msg.Topic, "tickers.") || len(msg.Data) == 0 {
		return nil
	}

	var data streamTicker
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return fmt.Errorf("invalid ticker payload: %w", err)
	}
	symbol := data.Symbol
	if symbol == "" {
		symbol = strings.TrimPrefix(msg.Topic, "tickers.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.latest[symbol]
	t.Symbol = symbol
	mergeFloat(&t.Last, data.LastPrice)
	mergeFloat(&t.Bid, data.Bid1Price)
	mergeFloat(&t.Ask, data.Ask1Price)
	mergeFloat(&t.MarkPrice, data.MarkPrice)
	mergeFloat(&t.Volume, data.Volume24h)
	if msg.Ts > 0 {
		t.UpdatedAt = time.UnixMilli(msg.Ts)
	} else {
		t.UpdatedAt = time.Now()
	}
	s.latest[symbol] = t
	return nil
}

func mergeFloat(dst *float64, s string) {
	if s != "" {
		*dst = parseFloat64(s)
	}
}
