package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/botcharts/internal/metrics"
	"github.com/rickgao/botcharts/internal/model"
)

// Manager owns the services and keeps them fresh in the background.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	symbols *ActiveSymbols
	times   *TradingTimes

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates both services over sender. m may be nil.
func NewManager(cfg Config, sender Sender, m *metrics.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:     cfg,
		logger:  logger,
		symbols: NewActiveSymbols(cfg, sender, m, logger.With("service", "active_symbols")),
		times:   NewTradingTimes(cfg, sender, m, logger.With("service", "trading_times")),
	}
}

// ActiveSymbols returns the active symbols service.
func (m *Manager) ActiveSymbols() *ActiveSymbols {
	return m.symbols
}

// TradingTimes returns the trading times service.
func (m *Manager) TradingTimes() *TradingTimes {
	return m.times
}

// Start warms both caches and begins the refresh loop. A failed warm-up is
// logged, not returned; the next Get or refresh retries.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.refresh(m.ctx)

	if m.cfg.RefreshInterval > 0 {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.refreshLoop(m.ctx)
		}()
	}

	m.logger.Info("services started", "refresh_interval", m.cfg.RefreshInterval)
	return nil
}

// Stop gracefully shuts down.
func (m *Manager) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("services stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refreshLoop periodically re-fetches both services.
func (m *Manager) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refresh(ctx)
		}
	}
}

// refresh re-fetches both services and logs what changed.
func (m *Manager) refresh(ctx context.Context) {
	start := time.Now()

	prevSymbols, symbols, err := m.symbols.Refresh(ctx)
	if err != nil {
		m.logger.Error("active symbols refresh failed", "error", err)
	} else if prevSymbols != nil {
		opened, closed := diffSymbols(prevSymbols, symbols)
		if opened > 0 || closed > 0 || len(prevSymbols) != len(symbols) {
			m.logger.Info("active symbols changed",
				"opened", opened,
				"closed", closed,
				"count", len(symbols),
				"previous_count", len(prevSymbols),
			)
		}
	}

	prevTimes, times, err := m.times.Refresh(ctx)
	if err != nil {
		m.logger.Error("trading times refresh failed", "error", err)
	} else if prevTimes != nil {
		opened, closed := diffTimes(prevTimes, times)
		if opened > 0 || closed > 0 {
			m.logger.Info("trading sessions changed", "opened", opened, "closed", closed)
		}
	}

	m.logger.Debug("services refreshed", "duration", time.Since(start))
}

// diffSymbols counts symbols whose exchange opened or closed.
func diffSymbols(prev, next []model.ActiveSymbol) (opened, closed int) {
	was := make(map[string]bool, len(prev))
	for _, s := range prev {
		was[s.Symbol] = s.ExchangeIsOpen
	}
	for _, s := range next {
		old, ok := was[s.Symbol]
		if !ok {
			continue
		}
		switch {
		case s.ExchangeIsOpen && !old:
			opened++
		case !s.ExchangeIsOpen && old:
			closed++
		}
	}
	return opened, closed
}

// diffTimes counts symbols whose IsOpen flipped.
func diffTimes(prev, next model.TradingTimesMap) (opened, closed int) {
	for sym, tt := range next {
		old, ok := prev[sym]
		if !ok {
			continue
		}
		switch {
		case tt.IsOpen && !old.IsOpen:
			opened++
		case !tt.IsOpen && old.IsOpen:
			closed++
		}
	}
	return opened, closed
}
