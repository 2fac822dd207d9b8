package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/ducminhle1904/crypto-trade-engine/cmd/common"
	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange/adapters"
	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange/paper"
	"github.com/ducminhle1904/crypto-trade-engine/internal/execution"
	"github.com/ducminhle1904/crypto-trade-engine/internal/logger"
	"github.com/ducminhle1904/crypto-trade-engine/internal/market"
	"github.com/ducminhle1904/crypto-trade-engine/internal/order"
	"github.com/ducminhle1904/crypto-trade-engine/pkg/data"
	"github.com/ducminhle1904/crypto-trade-engine/pkg/reporting"
)

const (
	appName         = "trader"
	shutdownTimeout = 30 * time.Second
)

type options struct {
	common *common.CommonFlags
	req    orderRequest

	side      string
	cancel    string
	watch     bool
	quote     string
	mark      float64
	barsFile  string
	ordersCSV string
}

func newFlagSet(name string, out io.Writer) (*flag.FlagSet, *options) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)

	o := &options{common: common.RegisterCommonFlags(fs)}
	fs.StringVar(&o.req.Symbol, "symbol", "", "Trading symbol (default: first configured symbol)")
	fs.StringVar(&o.side, "side", "", "Entry side: buy or sell (no order is placed when empty)")
	fs.StringVar(&o.req.Kind, "kind", "market", "Order kind: market, limit or stop_loss_limit")
	fs.Float64Var(&o.req.Amount, "amount", 0, "Order amount in base units (0 sizes by the risk policy)")
	fs.Float64Var(&o.req.Price, "price", 0, "Limit price")
	fs.Float64Var(&o.req.Trigger, "trigger", 0, "Stop trigger price for stop_loss_limit")
	fs.Float64Var(&o.req.StopLoss, "sl", 0, "Protective stop price")
	fs.Float64Var(&o.req.StopLimit, "sl-limit", 0, "Protective stop limit price (default: the stop price)")
	fs.Float64Var(&o.req.TakeProfit, "tp", 0, "Take-profit limit price")
	fs.BoolVar(&o.req.Protect, "protect", false, "Derive missing stop-loss and take-profit from the risk policy")

	fs.StringVar(&o.cancel, "cancel", "", "Order ID to cancel")
	fs.BoolVar(&o.watch, "watch", false, "Serve health and metrics and poll positions until interrupted")
	fs.StringVar(&o.quote, "quote", "USDT", "Quote asset used to value the portfolio")
	fs.Float64Var(&o.mark, "mark", 0, "Paper exchange: last price for the symbol")
	fs.StringVar(&o.barsFile, "bars", "", "Paper exchange: CSV of bars; the last close becomes the price")
	fs.StringVar(&o.ordersCSV, "orders-csv", "", "Write the session's order history to this CSV file")

	common.NewUsageFormatter(appName, "Place protected orders and watch positions").
		AddExample(appName+" -side buy -amount 0.01 -protect", "Market buy with policy stop-loss and take-profit").
		AddExample(appName+" -symbol ETHUSDT -side buy -kind limit -price 2500 -sl 2400 -tp 2700", "Limit entry with explicit exits").
		AddExample(appName+" -watch", "Monitor positions and serve /health and /metrics").
		Install(fs)
	return fs, o
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs, o := newFlagSet(appName, stdout)
	err := common.ParseAndValidate(fs, args, func(v *common.FlagValidator) {
		if o.side != "" {
			if _, err := order.ParseSide(o.side); err != nil {
				v.AddError(err.Error())
			}
			v.ValidateChoice("kind", strings.ToLower(o.req.Kind), []string{"market", "limit", "stop_loss_limit", "stop"})
		}
		v.ValidateFile("bars", o.barsFile, false)
		if o.side == "" && o.cancel == "" && !o.watch && !*o.common.Version {
			v.AddError("nothing to do: pass -side, -cancel or -watch")
		}
	})
	if err != nil {
		return err
	}
	if common.CheckVersion(stdout, appName, o.common) {
		return nil
	}
	out := common.SetupLogger(stdout, o.common)

	cfg, err := o.common.LoadConfig()
	if err != nil {
		return err
	}
	if o.req.Symbol == "" {
		o.req.Symbol = cfg.Trading.Symbols[0]
	}
	o.req.Symbol = strings.ToUpper(o.req.Symbol)
	if !slices.Contains(cfg.Trading.Symbols, o.req.Symbol) {
		cfg.Trading.Symbols = append(cfg.Trading.Symbols, o.req.Symbol)
	}

	log, err := logger.NewFileLogger(cfg.LogDir, appName)
	if err != nil {
		return err
	}
	defer log.Close()
	out.Debug("Session log: %s", log.GetLogPath())

	ex, err := adapters.NewFactory().CreateExchange(cfg.Exchange)
	if err != nil {
		return err
	}
	if p, ok := ex.(*paper.Exchange); ok {
		if err := o.seedPaper(p, cfg.Trading.Symbols); err != nil {
			return err
		}
	}

	trader, err := NewTrader(cfg, ex, log, o.quote)
	if err != nil {
		return err
	}
	if err := trader.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := trader.Shutdown(shutdownCtx); err != nil {
			out.Warn("Shutdown: %v", err)
		}
	}()
	out.Info("Connected to %s", ex.GetName())

	if o.cancel != "" {
		if err := trader.Cancel(ctx, o.cancel, o.req.Symbol); err != nil {
			return err
		}
		out.Success("Cancelled %s", o.cancel)
	}

	if o.side != "" {
		o.req.Side, _ = order.ParseSide(o.side)
		placement, err := trader.Place(ctx, o.req)
		if err != nil {
			return err
		}
		reportPlacement(out, placement)
	}

	if history := trader.History(); len(history) > 0 {
		reporting.NewDefaultConsoleReporter().OutputOrders(stdout, history)
		if o.ordersCSV != "" {
			if err := reporting.NewDefaultCSVReporter().WriteOrdersCSV(history, o.ordersCSV); err != nil {
				return err
			}
			out.Success("Wrote %s", o.ordersCSV)
		}
	}

	if o.watch {
		trader.StartMonitoring()
		out.Info("Watching %v every %s (health :%d, metrics :%d)", cfg.Trading.Symbols,
			cfg.Trading.PollInterval, cfg.Monitoring.HealthPort, cfg.Monitoring.PrometheusPort)
		trader.Watch(ctx)
	}
	return nil
}

// seedPaper registers permissive markets and prices for the paper exchange
func (o *options) seedPaper(p *paper.Exchange, symbols []string) error {
	for _, symbol := range symbols {
		p.AddMarket(paperConstraints(symbol))
	}

	if o.barsFile != "" {
		series, err := data.NewDataManager().Load(o.barsFile)
		if err != nil {
			return err
		}
		p.LoadBars(o.req.Symbol, series.Bars)
	}
	if o.mark > 0 {
		p.SetPrice(o.req.Symbol, o.mark)
	}
	return nil
}

func paperConstraints(symbol string) market.Constraints {
	return market.Constraints{
		Symbol:          symbol,
		MinAmount:       0.000001,
		MinNotional:     1,
		AmountPrecision: 6,
		PricePrecision:  2,
	}
}

func reportPlacement(out *common.Logger, p *execution.Placement) {
	out.Success("Entry %s %s", p.Primary.OrderID, p.Primary.State)
	if p.Risk != nil {
		out.Info("Risk %.2f%% of portfolio, stop %.8g", p.Risk.RiskPctOfPortfolio, p.Risk.StopLossBuffered)
	}
	for _, w := range p.Warnings {
		out.Warn("%s", w)
	}
	for _, err := range p.Failures() {
		out.Error("Protective order failed: %v", err)
	}
	if !p.Protected() {
		out.Warn("Position is open without full protection")
	}
}
