// quotestream connects to the trading API and prints quotes for one symbol.
// Usage: go run ./cmd/quotestream --symbol R_100 --granularity 60
//
// With --config the API endpoint is taken from a gateway config file;
// otherwise the public endpoint and app id are used.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/botcharts/internal/category"
	"github.com/rickgao/botcharts/internal/chart"
	"github.com/rickgao/botcharts/internal/config"
	"github.com/rickgao/botcharts/internal/model"
	"github.com/rickgao/botcharts/internal/services"
	"github.com/rickgao/botcharts/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "optional gateway config file")
	symbol := flag.String("symbol", "R_100", "symbol to stream")
	granularity := flag.Int("granularity", 0, "candle length in seconds (0 = ticks)")
	count := flag.Int("count", 10, "history quotes to print before streaming")
	verbose := flag.Bool("verbose", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	wsURL, appID, lang := config.DefaultWSURL, config.DefaultAppID, config.DefaultLanguage
	if *configPath != "" {
		cfg, err := config.LoadWithDefaults(*configPath)
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		wsURL, appID, lang = cfg.API.WSURL, cfg.API.AppID, cfg.API.Language
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	url, err := transport.BuildURL(wsURL, appID, lang)
	if err != nil {
		logger.Error("invalid api url", "error", err)
		os.Exit(1)
	}
	tcfg := transport.DefaultConfig()
	tcfg.URL = url

	tr := transport.New(tcfg, logger)
	if err := tr.Start(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		tr.Stop(stopCtx)
	}()

	svcCfg := services.DefaultConfig()
	svcCfg.RefreshInterval = 0
	symbols := services.NewActiveSymbols(svcCfg, tr, nil, logger)
	times := services.NewTradingTimes(svcCfg, tr, nil, logger)
	adapter := chart.New(tr, symbols, times, nil, logger)

	places := decimalPlaces(ctx, symbols, *symbol)
	fmt.Printf("%s (%s), %s\n", category.SymbolDisplayName(*symbol), *symbol, marketState(ctx, times, *symbol))

	req := chart.QuotesRequest{Symbol: *symbol, Granularity: *granularity, Count: *count}
	history := adapter.GetQuotes(ctx, req)
	for _, q := range history.Quotes {
		printQuote(q, places)
	}

	listener, err := adapter.SubscribeQuotes(ctx, req, func(q model.Quote) {
		printQuote(q, places)
	})
	if err != nil {
		logger.Error("subscribe failed", "symbol", *symbol, "error", err)
		os.Exit(1)
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	adapter.UnsubscribeQuotes(stopCtx, req, listener)
}

func decimalPlaces(ctx context.Context, symbols *services.ActiveSymbols, symbol string) int {
	list, err := symbols.Get(ctx)
	if err != nil {
		return 2
	}
	for _, s := range list {
		if s.Symbol == symbol {
			return category.DecimalPlaces(s.Pip)
		}
	}
	return 2
}

func marketState(ctx context.Context, times *services.TradingTimes, symbol string) string {
	m, err := times.Get(ctx)
	if err != nil {
		return "trading times unavailable"
	}
	tt, ok := m[symbol]
	switch {
	case !ok:
		return "no trading times"
	case tt.IsOpen:
		return "open"
	}
	return "closed"
}

func printQuote(q model.Quote, places int) {
	ts := q.DT.Format("2006-01-02 15:04:05")
	if q.IsCandle() {
		fmt.Printf("%s  O %s  H %s  L %s  C %s\n", ts,
			category.FormatPrice(*q.Open, places),
			category.FormatPrice(*q.High, places),
			category.FormatPrice(*q.Low, places),
			category.FormatPrice(q.Close, places),
		)
		return
	}
	fmt.Printf("%s  %s\n", ts, category.FormatPrice(q.Close, places))
}
