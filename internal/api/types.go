package api

import (
	"encoding/json"
	"fmt"
)

// Message types returned in msg_type.
const (
	MsgHistory       = "history"
	MsgCandles       = "candles"
	MsgTick          = "tick"
	MsgOHLC          = "ohlc"
	MsgActiveSymbols = "active_symbols"
	MsgTradingTimes  = "trading_times"
	MsgTime          = "time"
	MsgPing          = "ping"
	MsgForget        = "forget"
	MsgForgetAll     = "forget_all"
)

// Response is the common envelope of every message from the server.
type Response struct {
	MsgType      string          `json:"msg_type"`
	ReqID        int64           `json:"req_id,omitempty"`
	EchoReq      json.RawMessage `json:"echo_req,omitempty"`
	Error        *Error          `json:"error,omitempty"`
	Subscription *Subscription   `json:"subscription,omitempty"`

	// Raw holds the full message for typed decoding.
	Raw json.RawMessage `json:"-"`
}

// Subscription identifies a server-side stream.
type Subscription struct {
	ID string `json:"id"`
}

// ParseResponse decodes the envelope of a server message and keeps the raw bytes.
func ParseResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	resp.Raw = data
	return &resp, nil
}

// SubscriptionID returns the server subscription id, or "" if none.
func (r *Response) SubscriptionID() string {
	if r.Subscription == nil {
		return ""
	}
	return r.Subscription.ID
}

// Decode unmarshals the raw message into a typed payload.
func Decode[T any](r *Response) (*T, error) {
	var out T
	if err := json.Unmarshal(r.Raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.MsgType, err)
	}
	return &out, nil
}

// HistoryResponse is a ticks_history response with style=ticks.
type HistoryResponse struct {
	History History `json:"history"`
	PipSize int     `json:"pip_size"`
}

// History holds parallel arrays of prices and epochs.
type History struct {
	Prices []float64 `json:"prices"`
	Times  []int64   `json:"times"`
}

// CandlesResponse is a ticks_history response with style=candles.
type CandlesResponse struct {
	Candles []Candle `json:"candles"`
	PipSize int      `json:"pip_size"`
}

// Candle is one historical OHLC bar.
type Candle struct {
	Epoch int64   `json:"epoch"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// TickResponse is a streamed tick push.
type TickResponse struct {
	Tick Tick `json:"tick"`
}

// Tick is a single price update.
type Tick struct {
	ID      string  `json:"id"`
	Symbol  string  `json:"symbol"`
	Epoch   int64   `json:"epoch"`
	Quote   float64 `json:"quote"`
	Ask     float64 `json:"ask"`
	Bid     float64 `json:"bid"`
	PipSize float64 `json:"pip_size"`
}

// OHLCResponse is a streamed candle push.
type OHLCResponse struct {
	OHLC OHLC `json:"ohlc"`
}

// OHLC is a live candle. Prices arrive as strings.
type OHLC struct {
	ID          string `json:"id"`
	Symbol      string `json:"symbol"`
	Epoch       int64  `json:"epoch"`
	OpenTime    int64  `json:"open_time"`
	Granularity int    `json:"granularity"`
	Open        string `json:"open"`
	High        string `json:"high"`
	Low         string `json:"low"`
	Close       string `json:"close"`
}

// ActiveSymbolsResponse from active_symbols.
type ActiveSymbolsResponse struct {
	ActiveSymbols []RawActiveSymbol `json:"active_symbols"`
}

// RawActiveSymbol is an active symbol as sent by the server.
type RawActiveSymbol struct {
	Symbol               string  `json:"symbol"`
	DisplayName          string  `json:"display_name"`
	DisplayOrder         int     `json:"display_order"`
	Market               string  `json:"market"`
	MarketDisplayName    string  `json:"market_display_name"`
	Submarket            string  `json:"submarket"`
	SubmarketDisplayName string  `json:"submarket_display_name"`
	Subgroup             string  `json:"subgroup"`
	SubgroupDisplayName  string  `json:"subgroup_display_name"`
	SymbolType           string  `json:"symbol_type"`
	Pip                  float64 `json:"pip"`
	ExchangeIsOpen       int     `json:"exchange_is_open"`
	IsTradingSuspended   int     `json:"is_trading_suspended"`
}

// TradingTimesResponse from trading_times.
type TradingTimesResponse struct {
	TradingTimes TradingTimesPayload `json:"trading_times"`
}

// TradingTimesPayload is the market → submarket → symbol tree.
type TradingTimesPayload struct {
	Markets []TradingTimesMarket `json:"markets"`
}

// TradingTimesMarket groups submarkets.
type TradingTimesMarket struct {
	Name       string                  `json:"name"`
	Submarkets []TradingTimesSubmarket `json:"submarkets"`
}

// TradingTimesSubmarket groups symbols.
type TradingTimesSubmarket struct {
	Name    string               `json:"name"`
	Symbols []TradingTimesSymbol `json:"symbols"`
}

// TradingTimesSymbol holds the sessions of one symbol.
type TradingTimesSymbol struct {
	Name        string              `json:"name"`
	Symbol      string              `json:"symbol"`
	Times       SessionTimes        `json:"times"`
	Events      []TradingTimesEvent `json:"events"`
	TradingDays []string            `json:"trading_days"`
}

// SessionTimes lists open and close times of the day ("HH:MM:SS").
// A market closed all day reports "--".
type SessionTimes struct {
	Open       []string `json:"open"`
	Close      []string `json:"close"`
	Settlement string   `json:"settlement"`
}

// TradingTimesEvent is a scheduled deviation (early close, holiday).
type TradingTimesEvent struct {
	Dates       string `json:"dates"`
	Description string `json:"descrip"`
}

// TimeResponse from time.
type TimeResponse struct {
	Time int64 `json:"time"`
}
