package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/rickgao/botcharts/internal/api"
	"github.com/rickgao/botcharts/internal/category"
	"github.com/rickgao/botcharts/internal/metrics"
	"github.com/rickgao/botcharts/internal/model"
)

const activeSymbolsKey = "active_symbols"

// ActiveSymbols serves the processed active_symbols list.
type ActiveSymbols struct {
	cfg     Config
	sender  Sender
	logger  *slog.Logger
	metrics *metrics.Metrics

	cache *cache.Cache
	group singleflight.Group
}

// NewActiveSymbols creates the service. m may be nil.
func NewActiveSymbols(cfg Config, sender Sender, m *metrics.Metrics, logger *slog.Logger) *ActiveSymbols {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActiveSymbols{
		cfg:     cfg,
		sender:  sender,
		logger:  logger,
		metrics: m,
		cache:   cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}
}

// Get returns the cached list, fetching it on a miss.
func (s *ActiveSymbols) Get(ctx context.Context) ([]model.ActiveSymbol, error) {
	if v, ok := s.cache.Get(activeSymbolsKey); ok {
		s.metrics.ObserveCache(activeSymbolsKey, true)
		return v.([]model.ActiveSymbol), nil
	}
	s.metrics.ObserveCache(activeSymbolsKey, false)

	return shared(ctx, &s.group, activeSymbolsKey, s.cfg.FetchTimeout, s.fetch)
}

// Refresh fetches a fresh list and replaces the cached one. It returns
// the previous list, which is nil if nothing was cached.
func (s *ActiveSymbols) Refresh(ctx context.Context) (prev, next []model.ActiveSymbol, err error) {
	if v, ok := s.cache.Get(activeSymbolsKey); ok {
		prev = v.([]model.ActiveSymbol)
	}

	next, err = shared(ctx, &s.group, activeSymbolsKey, s.cfg.FetchTimeout, s.fetch)
	if err != nil {
		return prev, nil, err
	}
	return prev, next, nil
}

func (s *ActiveSymbols) fetch(ctx context.Context) ([]model.ActiveSymbol, error) {
	resp, err := s.sender.Send(ctx, api.ActiveSymbols(s.cfg.ActiveSymbolsKind, s.cfg.ProductType))
	if err != nil {
		return nil, fmt.Errorf("active_symbols: %w", err)
	}

	payload, err := api.Decode[api.ActiveSymbolsResponse](resp)
	if err != nil {
		return nil, err
	}

	symbols, err := ProcessActiveSymbols(payload.ActiveSymbols)
	if err != nil {
		s.logger.Warn("active symbols processing failed, using raw list",
			"error", err,
			"count", len(payload.ActiveSymbols),
		)
		symbols = RawActiveSymbols(payload.ActiveSymbols)
	}

	s.cache.SetDefault(activeSymbolsKey, symbols)
	s.logger.Debug("active symbols loaded", "count", len(symbols))
	return symbols, nil
}

// ProcessActiveSymbols converts server symbols and fills in display names
// and decimal places. Known codes get the category display names; others
// keep what the server sent.
func ProcessActiveSymbols(raw []api.RawActiveSymbol) ([]model.ActiveSymbol, error) {
	out := make([]model.ActiveSymbol, 0, len(raw))
	for i, r := range raw {
		if r.Symbol == "" {
			return nil, fmt.Errorf("active symbol %d: %w", i, ErrMissingSymbol)
		}

		s := rawSymbol(r)
		if name := category.SymbolDisplayName(r.Symbol); name != r.Symbol || s.DisplayName == "" {
			s.DisplayName = name
		}
		if name := category.MarketDisplayName(r.Market); name != r.Market || s.MarketDisplayName == "" {
			s.MarketDisplayName = name
		}
		if name := category.SubmarketDisplayName(r.Submarket); name != r.Submarket || s.SubmarketDisplayName == "" {
			s.SubmarketDisplayName = name
		}
		s.DecimalPlaces = category.DecimalPlaces(r.Pip)
		out = append(out, s)
	}
	return out, nil
}

// RawActiveSymbols converts server symbols without any enrichment.
func RawActiveSymbols(raw []api.RawActiveSymbol) []model.ActiveSymbol {
	out := make([]model.ActiveSymbol, len(raw))
	for i, r := range raw {
		out[i] = rawSymbol(r)
	}
	return out
}

func rawSymbol(r api.RawActiveSymbol) model.ActiveSymbol {
	return model.ActiveSymbol{
		Symbol:               r.Symbol,
		DisplayName:          r.DisplayName,
		Market:               r.Market,
		MarketDisplayName:    r.MarketDisplayName,
		Submarket:            r.Submarket,
		SubmarketDisplayName: r.SubmarketDisplayName,
		Subgroup:             r.Subgroup,
		SubgroupDisplayName:  r.SubgroupDisplayName,
		SymbolType:           r.SymbolType,
		Pip:                  r.Pip,
		ExchangeIsOpen:       r.ExchangeIsOpen == 1,
		IsTradingSuspended:   r.IsTradingSuspended == 1,
		DisplayOrder:         r.DisplayOrder,
	}
}
