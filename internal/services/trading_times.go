package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/rickgao/botcharts/internal/api"
	"github.com/rickgao/botcharts/internal/metrics"
	"github.com/rickgao/botcharts/internal/model"
)

const tradingTimesKey = "trading_times"

// tradingDay is one cached trading_times answer. IsOpen in times is not
// stored; it is evaluated against the clock on every read.
type tradingDay struct {
	raw      *api.TradingTimesPayload
	times    model.TradingTimesMap
	sessions map[string][]session
}

// at returns the day's map with IsOpen evaluated at now.
func (d *tradingDay) at(now time.Time) model.TradingTimesMap {
	out := make(model.TradingTimesMap, len(d.times))
	for sym, tt := range d.times {
		tt.IsOpen = openAt(d.sessions[sym], now)
		out[sym] = tt
	}
	return out
}

// session is one open-to-close window of a trading day.
type session struct {
	start, end time.Time
}

// TradingTimes serves trading_times for the current UTC day.
type TradingTimes struct {
	cfg     Config
	sender  Sender
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	cache *cache.Cache
	group singleflight.Group
}

// NewTradingTimes creates the service. m may be nil.
func NewTradingTimes(cfg Config, sender Sender, m *metrics.Metrics, logger *slog.Logger) *TradingTimes {
	if logger == nil {
		logger = slog.Default()
	}
	return &TradingTimes{
		cfg:     cfg,
		sender:  sender,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		cache:   cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}
}

// Get returns the per-symbol trading times for today. If processing
// failed the map is empty and Raw still holds the server payload.
func (s *TradingTimes) Get(ctx context.Context) (model.TradingTimesMap, error) {
	d, err := s.day(ctx)
	if err != nil {
		return nil, err
	}
	return d.at(s.now()), nil
}

// Raw returns today's unprocessed markets tree.
func (s *TradingTimes) Raw(ctx context.Context) (*api.TradingTimesPayload, error) {
	d, err := s.day(ctx)
	if err != nil {
		return nil, err
	}
	return d.raw, nil
}

// Refresh re-fetches today's trading times and returns the previous and
// new maps.
func (s *TradingTimes) Refresh(ctx context.Context) (prev, next model.TradingTimesMap, err error) {
	key := s.key()
	if v, ok := s.cache.Get(key); ok {
		prev = v.(*tradingDay).at(s.now())
	}

	d, err := s.load(ctx, key)
	if err != nil {
		return prev, nil, err
	}
	return prev, d.at(s.now()), nil
}

func (s *TradingTimes) key() string {
	return tradingTimesKey + ":" + s.now().UTC().Format(time.DateOnly)
}

func (s *TradingTimes) day(ctx context.Context) (*tradingDay, error) {
	key := s.key()
	if v, ok := s.cache.Get(key); ok {
		s.metrics.ObserveCache(tradingTimesKey, true)
		return v.(*tradingDay), nil
	}
	s.metrics.ObserveCache(tradingTimesKey, false)

	return s.load(ctx, key)
}

func (s *TradingTimes) load(ctx context.Context, key string) (*tradingDay, error) {
	return shared(ctx, &s.group, key, s.cfg.FetchTimeout, func(ctx context.Context) (*tradingDay, error) {
		return s.fetch(ctx, key)
	})
}

func (s *TradingTimes) fetch(ctx context.Context, key string) (*tradingDay, error) {
	now := s.now()

	resp, err := s.sender.Send(ctx, api.TradingTimes(now))
	if err != nil {
		return nil, fmt.Errorf("trading_times: %w", err)
	}

	payload, err := api.Decode[api.TradingTimesResponse](resp)
	if err != nil {
		return nil, err
	}

	times, sessions, err := processTradingTimes(payload.TradingTimes, now.UTC())
	if err != nil {
		s.logger.Warn("trading times processing failed, serving raw payload", "error", err)
		times, sessions = model.TradingTimesMap{}, nil
	}

	d := &tradingDay{raw: &payload.TradingTimes, times: times, sessions: sessions}
	s.cache.SetDefault(key, d)
	s.logger.Debug("trading times loaded", "symbols", len(times))
	return d, nil
}

// ProcessTradingTimes flattens the markets tree into a per-symbol map for
// the UTC day of now. A symbol whose first open time is "--" is closed all
// day. Otherwise OpenTime is the first session open, CloseTime the last
// session close, and IsOpen reports whether now falls inside any session,
// including a session carried over from the previous night.
func ProcessTradingTimes(payload api.TradingTimesPayload, now time.Time) (model.TradingTimesMap, error) {
	times, sessions, err := processTradingTimes(payload, now.UTC())
	if err != nil {
		return nil, err
	}
	d := &tradingDay{times: times, sessions: sessions}
	return d.at(now), nil
}

func processTradingTimes(payload api.TradingTimesPayload, day time.Time) (model.TradingTimesMap, map[string][]session, error) {
	times := make(model.TradingTimesMap)
	sessions := make(map[string][]session)

	for _, market := range payload.Markets {
		for _, sub := range market.Submarkets {
			for _, sym := range sub.Symbols {
				if sym.Symbol == "" {
					return nil, nil, fmt.Errorf("%s/%s %q: %w", market.Name, sub.Name, sym.Name, ErrMissingSymbol)
				}
				ss, err := parseSessions(sym.Times, day)
				if err != nil {
					return nil, nil, fmt.Errorf("%s: %w", sym.Symbol, err)
				}
				var tt model.TradingTimes
				if len(ss) > 0 {
					first, last := ss[0].start, ss[len(ss)-1].end
					tt.OpenTime, tt.CloseTime = &first, &last
				}
				times[sym.Symbol] = tt
				sessions[sym.Symbol] = ss
			}
		}
	}
	return times, sessions, nil
}

// parseSessions returns the day's sessions, or none when closed all day.
func parseSessions(times api.SessionTimes, day time.Time) ([]session, error) {
	if len(times.Open) == 0 || times.Open[0] == "--" {
		return nil, nil
	}
	if len(times.Open) != len(times.Close) {
		return nil, fmt.Errorf("%d opens, %d closes: %w", len(times.Open), len(times.Close), ErrBadSession)
	}

	out := make([]session, 0, len(times.Open))
	for i := range times.Open {
		start, ok := api.ParseClock(day, times.Open[i])
		if !ok {
			return nil, fmt.Errorf("open %q: %w", times.Open[i], ErrBadSession)
		}
		end, ok := api.ParseClock(day, times.Close[i])
		if !ok {
			return nil, fmt.Errorf("close %q: %w", times.Close[i], ErrBadSession)
		}
		// Session runs past midnight.
		if !end.After(start) {
			end = end.Add(24 * time.Hour)
		}
		out = append(out, session{start: start, end: end})
	}
	return out, nil
}

// openAt reports whether now falls inside any session. An overnight
// session is also checked one day earlier, since the schedule repeats and
// yesterday's session may still be running after midnight.
func openAt(sessions []session, now time.Time) bool {
	for _, s := range sessions {
		if within(now, s.start, s.end) {
			return true
		}
		if s.end.Day() != s.start.Day() && within(now, s.start.Add(-24*time.Hour), s.end.Add(-24*time.Hour)) {
			return true
		}
	}
	return false
}

func within(now, start, end time.Time) bool {
	return !now.Before(start) && now.Before(end)
}
