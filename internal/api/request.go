package api

import (
	"time"
)

// Request is an outgoing API call. The first well-known key names the call.
type Request map[string]any

// Clone returns a shallow copy so callers can add req_id/subscribe safely.
func (r Request) Clone() Request {
	out := make(Request, len(r)+2)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// knownCalls lists the call names recognised by Name, in priority order.
var knownCalls = []string{
	"ticks_history", "active_symbols", "trading_times", "time", "ping",
	"forget_all", "forget", "authorize", "balance", "logout",
}

// Name returns the API call this request makes, or "unknown".
func (r Request) Name() string {
	for _, k := range knownCalls {
		if _, ok := r[k]; ok {
			return k
		}
	}
	return "unknown"
}

// TicksHistoryParams describes a ticks_history call.
type TicksHistoryParams struct {
	Symbol          string
	Granularity     int   // 0 = raw ticks, otherwise candle seconds
	Count           int   // Number of points (ignored by the server when Start is set)
	Start           int64 // Epoch seconds, 0 = unset
	End             string
	AdjustStartTime bool
	Subscribe       bool
}

// TicksHistory builds a ticks_history request. Granularity 0 selects
// style=ticks; anything else selects style=candles.
func TicksHistory(p TicksHistoryParams) Request {
	end := p.End
	if end == "" {
		end = "latest"
	}

	req := Request{
		"ticks_history": p.Symbol,
		"end":           end,
		"style":         "ticks",
	}
	if p.Granularity > 0 {
		req["style"] = "candles"
		req["granularity"] = p.Granularity
	}
	if p.Count > 0 {
		req["count"] = p.Count
	}
	if p.Start > 0 {
		req["start"] = p.Start
	}
	if p.AdjustStartTime {
		req["adjust_start_time"] = 1
	}
	if p.Subscribe {
		req["subscribe"] = 1
	}
	return req
}

// ActiveSymbols builds an active_symbols request. kind is "brief" or "full".
func ActiveSymbols(kind, productType string) Request {
	req := Request{"active_symbols": kind}
	if productType != "" {
		req["product_type"] = productType
	}
	return req
}

// TradingTimes builds a trading_times request for the UTC date of t.
func TradingTimes(t time.Time) Request {
	return Request{"trading_times": t.UTC().Format(time.DateOnly)}
}

// ServerTime builds a time request.
func ServerTime() Request {
	return Request{"time": 1}
}

// Ping builds a keepalive request.
func Ping() Request {
	return Request{"ping": 1}
}

// Forget cancels one subscription.
func Forget(subscriptionID string) Request {
	return Request{"forget": subscriptionID}
}

// ForgetAll cancels every subscription of the given stream types
// (e.g. "ticks", "candles").
func ForgetAll(streams ...string) Request {
	return Request{"forget_all": streams}
}
