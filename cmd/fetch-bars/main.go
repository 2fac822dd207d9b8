package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ducminhle1904/crypto-trade-engine/cmd/common"
	"github.com/ducminhle1904/crypto-trade-engine/internal/config"
	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange/adapters"
	"github.com/ducminhle1904/crypto-trade-engine/pkg/data"
)

const (
	appName  = "fetch-bars"
	maxLimit = 1000
)

// newExchange builds the configured adapter
var newExchange = adapters.NewFactory().CreateExchange

type options struct {
	common *common.CommonFlags

	symbols   string
	intervals string
	category  string
	limit     int
	output    string
}

func newFlagSet(name string, out io.Writer) (*flag.FlagSet, *options) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)

	o := &options{common: common.RegisterCommonFlags(fs)}
	fs.StringVar(&o.symbols, "symbols", "", "Comma-separated symbols (default: configured trading symbols)")
	fs.StringVar(&o.intervals, "intervals", "", "Comma-separated intervals such as 15m,1h,1d (default: configured interval)")
	fs.StringVar(&o.category, "category", "", "Market category directory (default: the exchange category, else spot)")
	fs.IntVar(&o.limit, "limit", maxLimit, "Bars per symbol and interval")
	fs.StringVar(&o.output, "output", "", "Explicit output file (single symbol and interval only)")

	common.NewUsageFormatter(appName, "Download recent bars into the backtest data layout").
		AddExample(appName+" -symbols BTCUSDT,ETHUSDT -intervals 1h,4h", "Fetch two symbols at two intervals").
		AddExample(appName+" -symbols SOLUSDT -intervals 15m -output sol.csv", "Fetch one series to a file").
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
		v.ValidateInt("limit", o.limit, 1, maxLimit)
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

	symbols := splitList(o.symbols, strings.ToUpper)
	if len(symbols) == 0 {
		symbols = cfg.Trading.Symbols
	}
	intervals := splitList(o.intervals, strings.ToLower)
	if len(intervals) == 0 {
		intervals = []string{cfg.Trading.Interval}
	}
	if o.output != "" && (len(symbols) != 1 || len(intervals) != 1) {
		return fmt.Errorf("-output needs exactly one symbol and one interval, got %d and %d", len(symbols), len(intervals))
	}

	ex, err := newExchange(cfg.Exchange)
	if err != nil {
		return err
	}
	if c, ok := ex.(exchange.Connector); ok {
		if err := c.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to %s: %w", ex.GetName(), err)
		}
		defer c.Disconnect()
	}

	out.Header(fmt.Sprintf("Fetching bars from %s", ex.GetName()))
	dm := data.NewDataManager()
	locator := data.NewDefaultFileLocator()
	category := o.categoryFor(cfg)

	var (
		results []download
		errs    []error
	)
	for _, symbol := range symbols {
		for _, interval := range intervals {
			path := o.output
			if path == "" {
				path = locator.DataFilePath(*o.common.DataRoot, cfg.Exchange.Name, category, symbol, interval)
			}

			d, err := fetchOne(ctx, dm, ex, symbol, interval, o.limit, path)
			if err != nil {
				out.Error("%s %s: %v", symbol, interval, err)
				errs = append(errs, err)
				continue
			}
			out.Success("%s %s: %d bars -> %s", symbol, interval, d.series.Len(), path)
			results = append(results, d)
		}
	}

	if len(results) > 0 {
		outputDownloads(stdout, results)
	}
	return errors.Join(errs...)
}

func (o *options) categoryFor(cfg *config.Config) string {
	if o.category != "" {
		return o.category
	}
	if cfg.Exchange.Bybit != nil && cfg.Exchange.Bybit.Category != "" {
		return cfg.Exchange.Bybit.Category
	}
	return "spot"
}

// fetchOne downloads one series with retries and saves it to path
func fetchOne(ctx context.Context, dm *data.DataManager, src data.KlineSource, symbol, interval string, limit int, path string) (download, error) {
	var series data.Series
	err := exchange.Retry(ctx, exchange.DefaultRetryConfig(), func(ctx context.Context) error {
		var err error
		series, err = dm.FetchSeries(ctx, src, symbol, interval, limit)
		return err
	})
	if err != nil {
		return download{}, err
	}
	if err := data.SaveSeries(path, series); err != nil {
		return download{}, err
	}
	return download{symbol: symbol, interval: interval, path: path, series: series}, nil
}

func splitList(s string, normalize func(string) string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, normalize(p))
		}
	}
	return out
}
