package chart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/botcharts/internal/api"
	"github.com/rickgao/botcharts/internal/metrics"
	"github.com/rickgao/botcharts/internal/model"
	"github.com/rickgao/botcharts/internal/transport"
)

// DefaultCount is the number of points requested when neither count nor
// start is given.
const DefaultCount = 1000

// Errors
var (
	ErrMissingSymbol   = errors.New("symbol is required")
	ErrUnknownListener = errors.New("unknown quote listener")
)

// Transport is the part of the transport the adapter uses.
type Transport interface {
	Send(ctx context.Context, req api.Request) (*api.Response, error)
	Subscribe(ctx context.Context, req api.Request, cb transport.Callback) (string, error)
	Unsubscribe(ctx context.Context, id string) error
	UnsubscribeAll(ctx context.Context, streams ...string) error
}

// SymbolSource provides active symbols.
type SymbolSource interface {
	Get(ctx context.Context) ([]model.ActiveSymbol, error)
}

// TimesSource provides trading times.
type TimesSource interface {
	Get(ctx context.Context) (model.TradingTimesMap, error)
}

// QuotesRequest selects a quote series. Granularity 0 means ticks;
// otherwise it is the candle length in seconds. Start, when set, takes
// precedence over Count.
type QuotesRequest struct {
	Symbol      string `json:"symbol" form:"symbol"`
	Granularity int    `json:"granularity" form:"granularity"`
	Count       int    `json:"count" form:"count"`
	Start       int64  `json:"start" form:"start"`
	End         string `json:"end" form:"end"`
}

// Key identifies the stream of a request.
func (r QuotesRequest) Key() string {
	return fmt.Sprintf("%s-%d", r.Symbol, r.Granularity)
}

// Style is "ticks" or "candles".
func (r QuotesRequest) Style() string {
	if r.Granularity > 0 {
		return "candles"
	}
	return "ticks"
}

// QuotesResult is a quote list with the request echoed back.
type QuotesResult struct {
	Quotes []model.Quote    `json:"quotes"`
	Meta   model.QuotesMeta `json:"meta"`
}

// ChartData bundles what the chart needs to build its symbol menus.
type ChartData struct {
	ActiveSymbols []model.ActiveSymbol  `json:"activeSymbols"`
	TradingTimes  model.TradingTimesMap `json:"tradingTimes"`
}

// feed is one upstream stream shared by its listeners.
type feed struct {
	transportID string
	ready       chan struct{} // closed once the upstream subscribe finished
	err         error
	listeners   map[string]func(model.Quote)
}

// Adapter composes the transport and the services.
type Adapter struct {
	transport Transport
	symbols   SymbolSource
	times     TimesSource
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu    sync.Mutex
	feeds map[string]*feed // symbol-granularity -> feed
}

// New creates an Adapter. m may be nil.
func New(t Transport, symbols SymbolSource, times TimesSource, m *metrics.Metrics, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		transport: t,
		symbols:   symbols,
		times:     times,
		metrics:   m,
		logger:    logger,
		feeds:     make(map[string]*feed),
	}
}

// GetQuotes fetches history for req. It never fails: on error the quote
// list is empty and the failure is logged.
func (a *Adapter) GetQuotes(ctx context.Context, req QuotesRequest) QuotesResult {
	result := QuotesResult{
		Quotes: []model.Quote{},
		Meta:   model.QuotesMeta{Symbol: req.Symbol, Granularity: req.Granularity},
	}

	if req.Symbol == "" {
		a.logger.Warn("quotes requested without symbol")
		a.metrics.ObserveQuotes(req.Style(), true)
		return result
	}

	resp, err := a.transport.Send(ctx, historyRequest(req))
	if err != nil {
		a.logger.Warn("ticks_history failed",
			"symbol", req.Symbol,
			"granularity", req.Granularity,
			"error", err,
		)
		a.metrics.ObserveQuotes(req.Style(), true)
		return result
	}

	quotes, ok := responseToQuotes(resp)
	if !ok {
		a.logger.Warn("unexpected ticks_history response",
			"symbol", req.Symbol,
			"msg_type", resp.MsgType,
		)
		a.metrics.ObserveQuotes(req.Style(), true)
		return result
	}

	result.Quotes = quotes
	a.metrics.ObserveQuotes(req.Style(), len(quotes) == 0)
	return result
}

func historyRequest(req QuotesRequest) api.Request {
	p := api.TicksHistoryParams{
		Symbol:          req.Symbol,
		Granularity:     req.Granularity,
		End:             req.End,
		AdjustStartTime: true,
	}
	if req.Start > 0 {
		p.Start = req.Start
	} else {
		p.Count = req.Count
		if p.Count <= 0 {
			p.Count = DefaultCount
		}
	}
	return api.TicksHistory(p)
}

// SubscribeQuotes streams live quotes for req to fn and returns a listener
// id. Listeners of the same symbol and granularity share one upstream
// subscription. Only live ticks and candles are delivered; the history
// that opens the stream is not.
func (a *Adapter) SubscribeQuotes(ctx context.Context, req QuotesRequest, fn func(model.Quote)) (string, error) {
	if req.Symbol == "" {
		return "", ErrMissingSymbol
	}
	if fn == nil {
		return "", errors.New("subscribe quotes: nil listener")
	}

	key := req.Key()
	listenerID := uuid.NewString()

	a.mu.Lock()
	f, exists := a.feeds[key]
	if !exists {
		f = &feed{
			ready:     make(chan struct{}),
			listeners: make(map[string]func(model.Quote)),
		}
		a.feeds[key] = f
	}
	f.listeners[listenerID] = fn
	a.mu.Unlock()

	if exists {
		select {
		case <-f.ready:
		case <-ctx.Done():
			a.removeListener(ctx, key, listenerID)
			return "", ctx.Err()
		}
		if f.err != nil {
			return "", f.err
		}
		return listenerID, nil
	}

	id, err := a.transport.Subscribe(ctx, streamRequest(req), func(resp *api.Response) {
		a.fanOut(f, resp)
	})

	a.mu.Lock()
	f.transportID = id
	f.err = err
	close(f.ready)
	if err != nil {
		if a.feeds[key] == f {
			delete(a.feeds, key)
		}
		a.mu.Unlock()
		a.logger.Warn("quote subscription failed", "key", key, "error", err)
		return "", err
	}
	a.mu.Unlock()

	a.logger.Debug("quote feed opened", "key", key)
	return listenerID, nil
}

func streamRequest(req QuotesRequest) api.Request {
	return api.TicksHistory(api.TicksHistoryParams{
		Symbol:          req.Symbol,
		Granularity:     req.Granularity,
		Count:           1,
		AdjustStartTime: true,
	})
}

// fanOut delivers a stream message to every listener of f.
func (a *Adapter) fanOut(f *feed, resp *api.Response) {
	if resp.MsgType != api.MsgTick && resp.MsgType != api.MsgOHLC {
		return
	}
	quotes, ok := responseToQuotes(resp)
	if !ok || len(quotes) == 0 {
		return
	}

	a.mu.Lock()
	listeners := make([]func(model.Quote), 0, len(f.listeners))
	for _, fn := range f.listeners {
		listeners = append(listeners, fn)
	}
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(quotes[0])
	}
}

// UnsubscribeQuotes removes a listener. The upstream subscription is
// forgotten when its last listener leaves.
func (a *Adapter) UnsubscribeQuotes(ctx context.Context, req QuotesRequest, listenerID string) error {
	return a.removeListener(ctx, req.Key(), listenerID)
}

func (a *Adapter) removeListener(ctx context.Context, key, listenerID string) error {
	a.mu.Lock()
	f, ok := a.feeds[key]
	if !ok {
		a.mu.Unlock()
		return ErrUnknownListener
	}
	if _, ok := f.listeners[listenerID]; !ok {
		a.mu.Unlock()
		return ErrUnknownListener
	}
	delete(f.listeners, listenerID)

	var id string
	select {
	case <-f.ready:
		if len(f.listeners) == 0 {
			delete(a.feeds, key)
			id = f.transportID
		}
	default:
		// Subscribe still in flight; its own listener keeps the feed.
	}
	a.mu.Unlock()

	if id == "" {
		return nil
	}
	if err := a.transport.Unsubscribe(ctx, id); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", key, err)
	}
	a.logger.Debug("quote feed closed", "key", key)
	return nil
}

// UnsubscribeAll drops every feed and forgets all tick and candle streams.
func (a *Adapter) UnsubscribeAll(ctx context.Context) error {
	a.mu.Lock()
	for _, f := range a.feeds {
		clear(f.listeners)
	}
	clear(a.feeds)
	a.mu.Unlock()

	return a.transport.UnsubscribeAll(ctx, "ticks", "candles")
}

// Feeds returns the number of open upstream feeds.
func (a *Adapter) Feeds() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.feeds)
}

// GetChartData loads active symbols and trading times concurrently. A
// failing source degrades to an empty value.
func (a *Adapter) GetChartData(ctx context.Context) ChartData {
	data := ChartData{
		ActiveSymbols: []model.ActiveSymbol{},
		TradingTimes:  model.TradingTimesMap{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		symbols, err := a.symbols.Get(gctx)
		if err != nil {
			a.logger.Warn("active symbols unavailable", "error", err)
			return nil
		}
		data.ActiveSymbols = symbols
		return nil
	})
	g.Go(func() error {
		times, err := a.times.Get(gctx)
		if err != nil {
			a.logger.Warn("trading times unavailable", "error", err)
			return nil
		}
		data.TradingTimes = times
		return nil
	})
	g.Wait()

	return data
}

// GetServerTime asks the API for its clock.
func (a *Adapter) GetServerTime(ctx context.Context) (time.Time, error) {
	resp, err := a.transport.Send(ctx, api.ServerTime())
	if err != nil {
		return time.Time{}, fmt.Errorf("time: %w", err)
	}
	p, err := api.Decode[api.TimeResponse](resp)
	if err != nil {
		return time.Time{}, err
	}
	return api.ParseEpoch(p.Time), nil
}
