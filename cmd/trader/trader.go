package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ducminhle1904/crypto-trade-engine/internal/config"
	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-trade-engine/internal/execution"
	"github.com/ducminhle1904/crypto-trade-engine/internal/logger"
	"github.com/ducminhle1904/crypto-trade-engine/internal/market"
	"github.com/ducminhle1904/crypto-trade-engine/internal/monitoring"
	"github.com/ducminhle1904/crypto-trade-engine/internal/notifications"
	"github.com/ducminhle1904/crypto-trade-engine/internal/position"
	"github.com/ducminhle1904/crypto-trade-engine/internal/risk"

	tradeerrors "github.com/ducminhle1904/crypto-trade-engine/internal/errors"
)

const maxRecentErrors = 50

// tickerStreamer is implemented by adapters with a public price stream
type tickerStreamer interface {
	StartTickerStream(ctx context.Context, onError func(error), symbols ...string)
}

// Trader wires one exchange session: constraints, positions, risk gate and
// the execution manager.
type Trader struct {
	config   *config.Config
	exchange exchange.Exchange
	resolver *market.Resolver
	tracker  *position.Tracker
	sizer    *risk.Sizer
	manager  *execution.Manager
	health   *monitoring.HealthChecker
	stats    *tradeerrors.ErrorStats
	notifier notifications.Notifier
	log      *logger.Logger
	quote    string
	servers  []*http.Server
}

// NewTrader builds the session components around ex
func NewTrader(cfg *config.Config, ex exchange.Exchange, log *logger.Logger, quote string) (*Trader, error) {
	sizer, err := risk.NewSizer(cfg.Risk)
	if err != nil {
		return nil, err
	}

	t := &Trader{
		config:   cfg,
		exchange: ex,
		resolver: market.NewResolver(ex, cfg.Trading.Symbols...),
		tracker:  position.NewTracker(ex),
		sizer:    sizer,
		health:   monitoring.NewHealthChecker(),
		stats:    tradeerrors.NewErrorStats(maxRecentErrors),
		notifier: notifications.New(cfg.Notifications.TelegramToken, cfg.Notifications.TelegramChatID),
		log:      log,
		quote:    quote,
	}
	t.manager = execution.NewManager(ex, t.resolver,
		execution.WithTracker(t.tracker),
		execution.WithRiskGate(sizer, t.portfolioValue),
		execution.WithLogger(log),
		execution.WithErrorStats(t.stats),
	)
	return t, nil
}

// Start connects and loads market constraints for the configured symbols
func (t *Trader) Start(ctx context.Context) error {
	t.log.Status("Starting trader on %s (%s)", t.exchange.GetName(), t.config.Environment)

	if c, ok := t.exchange.(exchange.Connector); ok {
		if err := c.Connect(ctx); err != nil {
			t.health.RecordError(err.Error())
			return fmt.Errorf("failed to connect to exchange: %w", err)
		}
	}
	t.health.SetConnected(true)

	err := exchange.Retry(ctx, exchange.DefaultRetryConfig(), t.resolver.Refresh)
	if err != nil {
		t.health.RecordError(err.Error())
		return fmt.Errorf("failed to load market constraints: %w", err)
	}
	t.log.Info("Loaded constraints for %v", t.resolver.Symbols())
	return nil
}

// portfolioValue is the quote balance plus open positions at their mark
func (t *Trader) portfolioValue(ctx context.Context) (float64, error) {
	var total float64
	err := exchange.Retry(ctx, exchange.DefaultRetryConfig(), func(ctx context.Context) error {
		bal, err := t.exchange.FetchBalance(ctx, t.quote)
		if err != nil {
			return err
		}
		positions, err := t.exchange.FetchPositions(ctx, "")
		if err != nil {
			return err
		}
		total = bal.Free + bal.Locked
		for _, p := range positions {
			total += p.Size * p.MarkPrice
		}
		return nil
	})
	return total, err
}

// StartMonitoring serves /health and /metrics on the configured ports
func (t *Trader) StartMonitoring() {
	healthMux := http.NewServeMux()
	healthMux.Handle("/health", t.health)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", monitoring.Handler())

	t.servers = []*http.Server{
		{Addr: fmt.Sprintf(":%d", t.config.Monitoring.HealthPort), Handler: healthMux, ReadHeaderTimeout: 5 * time.Second},
		{Addr: fmt.Sprintf(":%d", t.config.Monitoring.PrometheusPort), Handler: metricsMux, ReadHeaderTimeout: 5 * time.Second},
	}
	for _, srv := range t.servers {
		go func(srv *http.Server) {
			t.log.Info("Starting monitoring server on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				t.log.LogError("monitoring server", err)
			}
		}(srv)
	}
}

// Watch streams tickers when the adapter supports it and refreshes
// positions and prices every poll interval until ctx is done.
func (t *Trader) Watch(ctx context.Context) {
	symbols := t.resolver.Symbols()
	if s, ok := t.exchange.(tickerStreamer); ok && t.config.Trading.Stream {
		s.StartTickerStream(ctx, func(err error) {
			t.health.RecordError(err.Error())
			t.log.LogError("ticker stream", err)
		}, symbols...)
	}

	ticker := time.NewTicker(t.config.Trading.PollInterval)
	defer ticker.Stop()

	for {
		t.poll(ctx, symbols)
		select {
		case <-ctx.Done():
			t.log.Status("Watch loop stopped")
			return
		case <-ticker.C:
		}
	}
}

func (t *Trader) poll(ctx context.Context, symbols []string) {
	for _, symbol := range symbols {
		tk, err := t.exchange.FetchTicker(ctx, symbol)
		if err != nil {
			t.health.RecordError(err.Error())
			continue
		}
		monitoring.UpdatePrice(symbol, tk.Price())

		pos, err := t.tracker.Refresh(ctx, symbol)
		if err != nil {
			t.health.RecordError(err.Error())
			continue
		}
		if pos != nil {
			t.log.Status("%s %s %.8g @ %.8g (mark %.8g, uPnL %.2f)", symbol, pos.Side, pos.Size, pos.EntryPrice, pos.MarkPrice, pos.UnrealizedPnl)
		}
	}
}

// alert sends an operator notification; delivery failures are only logged
func (t *Trader) alert(ctx context.Context, level notifications.Level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if err := t.notifier.SendAlert(ctx, level, msg); err != nil {
		t.log.Warning("Failed to send %s alert: %v", level, err)
	}
}

// Shutdown stops the monitoring servers and disconnects
func (t *Trader) Shutdown(ctx context.Context) error {
	var errs []error
	for _, srv := range t.servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if c, ok := t.exchange.(exchange.Connector); ok {
		if err := c.Disconnect(); err != nil {
			errs = append(errs, err)
		}
	}
	t.health.SetConnected(false)

	if counts := t.stats.Counts(); len(counts) > 0 {
		t.log.Status("Session errors by category: %v", counts)
	}
	t.log.Status("Trader stopped")
	return errors.Join(errs...)
}
