package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ducminhle1904/crypto-trade-engine/cmd/common"
	"github.com/ducminhle1904/crypto-trade-engine/internal/backtest"
	"github.com/ducminhle1904/crypto-trade-engine/internal/config"
	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange/adapters"
	"github.com/ducminhle1904/crypto-trade-engine/internal/market"
	"github.com/ducminhle1904/crypto-trade-engine/pkg/data"
	"github.com/ducminhle1904/crypto-trade-engine/pkg/reporting"
)

const appName = "backtest"

type options struct {
	common *common.CommonFlags

	dataFile    string
	signalsFile string
	symbol      string
	interval    string
	exchange    string
	fetch       bool
	limit       int

	period string
	start  string
	end    string

	capital    float64
	commission float64
	allocation float64

	useRisk    bool
	riskFile   string
	useMarket  bool
	sweep      string
	workers    int
	outDir     string
	showTrades bool
	console    bool
}

func newFlagSet(name string, out io.Writer) (*flag.FlagSet, *options) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)

	o := &options{common: common.RegisterCommonFlags(fs)}
	fs.StringVar(&o.dataFile, "data", "", "CSV file with bars and an optional signal column (overrides -data-root lookup)")
	fs.StringVar(&o.signalsFile, "signals", "", "Signal file with one BUY/SELL/HOLD per bar")
	fs.StringVar(&o.symbol, "symbol", "BTCUSDT", "Trading symbol")
	fs.StringVar(&o.interval, "interval", "1h", "Bar interval (e.g. 5m, 1h, 1d)")
	fs.StringVar(&o.exchange, "exchange", exchange.NameBybit, "Exchange directory under -data-root")
	fs.BoolVar(&o.fetch, "fetch", false, "Fetch recent bars from the configured exchange instead of a file")
	fs.IntVar(&o.limit, "limit", 1000, "Bars to fetch with -fetch")

	fs.StringVar(&o.period, "period", "", "Trailing window to keep (e.g. 7d, 30d, 168h)")
	fs.StringVar(&o.start, "start", "", "First bar date (YYYY-MM-DD or RFC3339)")
	fs.StringVar(&o.end, "end", "", "Last bar date (YYYY-MM-DD or RFC3339)")

	fs.Float64Var(&o.capital, "capital", 0, "Initial capital (default from config)")
	fs.Float64Var(&o.commission, "commission", -1, "Commission rate per fill, 0.001 = 0.1% (default from config)")
	fs.Float64Var(&o.allocation, "allocation", 0, "Fraction of cash per entry (default from config)")

	fs.BoolVar(&o.useRisk, "risk", false, "Apply the configured stop-loss and take-profit as protective exits")
	fs.StringVar(&o.riskFile, "risk-policy", "", "YAML risk policy file (implies -risk)")
	fs.BoolVar(&o.useMarket, "constraints", false, "Round and check entries against the exchange's market constraints")
	fs.StringVar(&o.sweep, "sweep", "", "Comma separated allocations to compare in parallel (e.g. 0.25,0.5,0.95)")
	fs.IntVar(&o.workers, "workers", 4, "Parallel runs for -sweep")
	fs.StringVar(&o.outDir, "out", "", "Output directory (default results/<SYMBOL>_<interval>)")
	fs.BoolVar(&o.showTrades, "trades", false, "Print the trade list")
	fs.BoolVar(&o.console, "console-only", false, "Print results only, write no files")

	common.NewUsageFormatter(appName, "Replay a signal series over historical bars").
		AddExample(appName+" -data data/btc_1h.csv", "Bars and signals in one file").
		AddExample(appName+" -symbol ETHUSDT -interval 4h -signals signals.txt -period 90d", "Signals from a separate file").
		AddExample(appName+" -data data/btc_1h.csv -risk -sweep 0.25,0.5,0.95", "Compare allocations with protective exits").
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
		if !o.fetch {
			v.ValidateFile("data", o.dataFile, false)
		}
		v.ValidateFile("signals", o.signalsFile, false)
		v.ValidateFile("risk-policy", o.riskFile, false)
		v.ValidateInt("workers", o.workers, 1, 64)
		if o.fetch {
			v.ValidateInt("limit", o.limit, 2, 1000)
		}
		if o.period != "" {
			if _, ok := data.ParseTrailingPeriod(o.period); !ok {
				v.AddError(fmt.Sprintf("invalid period %q", o.period))
			}
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
	o.applyDefaults(cfg)

	out.Header("Backtest")
	dm := data.NewDataManager()

	var src exchange.Exchange
	if o.fetch || o.useMarket {
		src, err = connect(ctx, cfg)
		if err != nil {
			return err
		}
	}

	series, source, err := o.loadSeries(ctx, dm, src)
	if err != nil {
		return err
	}
	out.Info("Loaded %d bars from %s", series.Len(), source)
	if series.Skipped > 0 {
		out.Warn("Skipped %d malformed rows", series.Skipped)
	}

	series, err = o.filter(dm, series)
	if err != nil {
		return err
	}
	out.Debug("Replaying %d bars", series.Len())

	engineOpts, err := o.engineOptions(ctx, cfg, src)
	if err != nil {
		return err
	}

	reporter := reporting.NewDefaultReporter()
	if o.sweep != "" {
		return o.runSweep(ctx, out, stdout, series, engineOpts)
	}

	started := time.Now()
	result := backtest.NewEngine(engineOpts...).Run(series.Bars, series.Signals, o.capital, o.commission)
	out.Debug("Backtest finished in %s", common.FormatDuration(time.Since(started)))

	reporter.OutputRun(stdout, result)
	if o.showTrades && len(result.Trades) > 0 {
		reporter.OutputTrades(stdout, result)
	}
	if result.Invalid != "" {
		out.Warn("Run skipped: %s", result.Invalid)
	}
	if o.console {
		return nil
	}

	dir := o.outDir
	if dir == "" {
		dir = reporter.GetDefaultOutputDir(o.symbol, o.interval)
	}
	written, err := reporter.WriteAll(result, reporting.DefaultReportingConfig(dir))
	for _, path := range written {
		out.Success("Wrote %s", path)
	}
	return err
}

// applyDefaults fills unset numeric flags from the config
func (o *options) applyDefaults(cfg *config.Config) {
	if o.capital <= 0 {
		o.capital = cfg.Backtest.InitialCapital
	}
	if o.commission < 0 {
		o.commission = cfg.Backtest.Commission
	}
	if o.allocation <= 0 {
		o.allocation = cfg.Backtest.Allocation
	}
	if o.riskFile != "" {
		o.useRisk = true
	}
}

func connect(ctx context.Context, cfg *config.Config) (exchange.Exchange, error) {
	ex, err := adapters.NewFactory().CreateExchange(cfg.Exchange)
	if err != nil {
		return nil, err
	}
	if c, ok := ex.(exchange.Connector); ok {
		if err := c.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", ex.GetName(), err)
		}
	}
	return ex, nil
}

func (o *options) loadSeries(ctx context.Context, dm *data.DataManager, src exchange.Exchange) (data.Series, string, error) {
	var (
		series data.Series
		source string
		err    error
	)
	if o.fetch {
		source = fmt.Sprintf("%s %s %s", src.GetName(), o.symbol, o.interval)
		series, err = dm.FetchSeries(ctx, src, o.symbol, o.interval, o.limit)
	} else {
		source = o.dataFile
		if source == "" {
			source, err = dm.FindDataFile(*o.common.DataRoot, o.exchange, o.symbol, o.interval)
			if err != nil {
				return data.Series{}, "", err
			}
		}
		series, err = dm.Load(source)
	}
	if err != nil {
		return data.Series{}, "", err
	}

	if o.signalsFile != "" {
		signals, err := data.LoadSignals(o.signalsFile)
		if err != nil {
			return data.Series{}, "", err
		}
		if len(signals) != series.Len() {
			return data.Series{}, "", fmt.Errorf("%s has %d signals for %d bars", o.signalsFile, len(signals), series.Len())
		}
		series.Signals = signals
	}
	if !series.HasSignals() {
		return data.Series{}, "", fmt.Errorf("%s has no signal column; pass -signals", source)
	}
	return series, source, nil
}

func (o *options) filter(dm *data.DataManager, s data.Series) (data.Series, error) {
	if d, ok := data.ParseTrailingPeriod(o.period); ok {
		s = dm.FilterByPeriod(s, d)
	}

	start, err := common.ParseDate(o.start)
	if err != nil {
		return data.Series{}, err
	}
	end, err := common.ParseDate(o.end)
	if err != nil {
		return data.Series{}, err
	}
	if !start.IsZero() || !end.IsZero() {
		s = dm.FilterByDateRange(s, start, end)
	}
	return s, nil
}

func (o *options) engineOptions(ctx context.Context, cfg *config.Config, src exchange.Exchange) ([]backtest.Option, error) {
	opts := []backtest.Option{
		backtest.WithSymbol(o.symbol),
		backtest.WithAllocation(o.allocation),
	}

	if o.useRisk {
		policy := cfg.Risk
		if o.riskFile != "" {
			p, err := config.LoadRiskPolicyFile(o.riskFile)
			if err != nil {
				return nil, err
			}
			policy = p
		}
		if err := policy.Validate(); err != nil {
			return nil, fmt.Errorf("invalid risk policy: %w", err)
		}
		opts = append(opts, backtest.WithRiskPolicy(policy))
	}

	if o.useMarket {
		resolver := market.NewResolver(src, o.symbol)
		if err := resolver.Refresh(ctx); err != nil {
			return nil, err
		}
		c, err := resolver.Resolve(o.symbol)
		if err != nil {
			return nil, err
		}
		opts = append(opts, backtest.WithConstraints(c))
	}
	return opts, nil
}

func (o *options) runSweep(ctx context.Context, out *common.Logger, w io.Writer, series data.Series, base []backtest.Option) error {
	variants, err := sweepVariants(o.sweep, base)
	if err != nil {
		return err
	}

	out.Progress("Running %d variants on %d workers", len(variants), o.workers)
	runs, err := backtest.Sweep(ctx, series.Bars, series.Signals, o.capital, o.commission, variants, o.workers)
	if err != nil {
		return err
	}
	outputSweep(w, variants, runs)
	return nil
}

// sweepVariants builds one variant per allocation on top of base
func sweepVariants(spec string, base []backtest.Option) ([]backtest.Variant, error) {
	var variants []backtest.Variant
	for _, field := range strings.Split(spec, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		alloc, err := strconv.ParseFloat(field, 64)
		if err != nil || alloc <= 0 || alloc > 1 {
			return nil, fmt.Errorf("invalid sweep allocation %q: must be in (0, 1]", field)
		}
		opts := append(append([]backtest.Option(nil), base...), backtest.WithAllocation(alloc))
		variants = append(variants, backtest.Variant{
			Name:    fmt.Sprintf("alloc=%s", field),
			Options: opts,
		})
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("sweep needs at least one allocation")
	}
	return variants, nil
}
