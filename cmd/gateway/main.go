package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rickgao/botcharts/internal/auth"
	"github.com/rickgao/botcharts/internal/category"
	"github.com/rickgao/botcharts/internal/chart"
	"github.com/rickgao/botcharts/internal/config"
	"github.com/rickgao/botcharts/internal/database"
	"github.com/rickgao/botcharts/internal/metrics"
	"github.com/rickgao/botcharts/internal/server"
	"github.com/rickgao/botcharts/internal/services"
	"github.com/rickgao/botcharts/internal/session"
	"github.com/rickgao/botcharts/internal/transactions"
	"github.com/rickgao/botcharts/internal/transport"
	"github.com/rickgao/botcharts/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/gateway.local.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting gateway",
		"version", version.Version,
		"commit", version.Commit,
		"instance_id", cfg.Instance.ID,
		"config", *configPath,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Transport
	wsURL, err := transport.BuildURL(cfg.API.WSURL, cfg.API.AppID, cfg.API.Language)
	if err != nil {
		logger.Error("invalid api url", "error", err)
		os.Exit(1)
	}

	tcfg := transport.DefaultConfig()
	tcfg.URL = wsURL
	tcfg.Origin = cfg.API.Origin
	tcfg.RequestTimeout = cfg.API.RequestTimeout
	tcfg.KeepaliveInterval = cfg.Transport.PingInterval
	tcfg.ReconnectBaseWait = cfg.Transport.ReconnectBaseDelay
	tcfg.ReconnectMaxWait = cfg.Transport.ReconnectMaxDelay
	tcfg.Client.PingInterval = cfg.Transport.PingInterval
	tcfg.Client.PingTimeout = cfg.Transport.PingTimeout
	tcfg.Client.WriteTimeout = cfg.Transport.WriteTimeout
	tcfg.Client.BufferSize = cfg.Transport.BufferSize

	tr := transport.New(tcfg, logger.With("component", "transport"))
	if err := tr.Start(ctx); err != nil {
		logger.Error("failed to start transport", "error", err)
		os.Exit(1)
	}
	m.RegisterTransport(tr.Stats)

	// Services
	mgr := services.NewManager(services.Config{
		RefreshInterval:   cfg.Services.RefreshInterval,
		CacheTTL:          cfg.Services.CacheTTL,
		FetchTimeout:      cfg.Services.FetchTimeout,
		ActiveSymbolsKind: cfg.Services.ActiveSymbolsKind,
		ProductType:       cfg.Services.ProductType,
	}, tr, m, logger.With("component", "services"))
	if err := mgr.Start(ctx); err != nil {
		logger.Error("failed to start services", "error", err)
		os.Exit(1)
	}

	adapter := chart.New(tr, mgr.ActiveSymbols(), mgr.TradingTimes(), m, logger.With("component", "chart"))

	// Sessions
	oauth := auth.NewOAuth(auth.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		AuthURL:      cfg.OAuth.AuthURL,
		TokenURL:     cfg.OAuth.TokenURL,
		RedirectURL:  cfg.OAuth.RedirectURL,
		Scopes:       cfg.OAuth.Scopes,
		Timeout:      cfg.OAuth.Timeout,
	})
	accounts := auth.NewAccountsClient(cfg.OAuth.AccountsURL, cfg.OAuth.Timeout)
	store := session.NewStore(cfg.Sessions.LoginTTL, m)

	poller := session.NewPoller(session.PollerConfig{
		Interval:    cfg.Sessions.WhoamiInterval,
		Concurrency: cfg.Sessions.WhoamiConcurrency,
		Timeout:     cfg.OAuth.Timeout,
	}, store, accounts, m, logger.With("component", "whoami"))
	if oauth.Enabled() {
		poller.Start(ctx)
	} else {
		logger.Warn("oauth client id not set, login disabled")
	}

	// Transaction journal
	var (
		txStore transactions.Store
		dbPing  func(context.Context) error
	)
	if cfg.Database.Enabled() {
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)

		pool, err := database.Connect(ctx, cfg.Database.Postgres, "botcharts-gateway")
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := database.Migrate(ctx, pool); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		logger.Info("database connected")

		txStore = transactions.NewPGStore(pool, m, logger.With("component", "transactions"))
		dbPing = pool.Ping
	} else {
		logger.Warn("no database configured, transaction journal disabled")
	}

	// HTTP server
	srv := server.New(server.Config{
		Port:         cfg.Server.Port,
		CORSOrigins:  cfg.Server.CORSOrigins,
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
		SecureCookie: cfg.Server.SecureCookie,
		MetricsPath:  cfg.Metrics.Path,
	}, server.Deps{
		Chart:        adapter,
		Symbols:      mgr.ActiveSymbols(),
		Localizer:    category.Default(),
		Sessions:     store,
		OAuth:        oauth,
		Accounts:     accounts,
		Transactions: txStore,
		Metrics:      m,
		TransportUp:  tr.IsConnected,
		DBPing:       dbPing,
	}, logger.With("component", "http"))

	if err := srv.Start(ctx); err != nil {
		logger.Error("failed to start http server", "error", err)
		os.Exit(1)
	}

	logger.Info("gateway running", "port", cfg.Server.Port)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("http server stop", "error", err)
	}
	if oauth.Enabled() {
		poller.Stop(shutdownCtx)
	}
	if err := adapter.UnsubscribeAll(shutdownCtx); err != nil {
		logger.Debug("forget_all on shutdown", "error", err)
	}
	mgr.Stop(shutdownCtx)
	if err := tr.Stop(shutdownCtx); err != nil {
		logger.Warn("transport stop", "error", err)
	}

	logger.Info("gateway stopped")
}

// newLogger builds the slog handler selected by the logging config.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
