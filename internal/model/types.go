package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// -----------------------------------------------------------------------------
// Chart Types
// -----------------------------------------------------------------------------

// Quote is a single chart data point. Ticks carry only Close; candles carry
// Open, High, Low and Close.
type Quote struct {
	Date  string    `json:"Date"` // Epoch seconds as a string
	Open  *float64  `json:"Open,omitempty"`
	High  *float64  `json:"High,omitempty"`
	Low   *float64  `json:"Low,omitempty"`
	Close float64   `json:"Close"`
	DT    time.Time `json:"DT"`
}

// NewTickQuote builds a quote from a raw tick.
func NewTickQuote(epoch int64, price float64) Quote {
	return Quote{
		Date:  strconv.FormatInt(epoch, 10),
		Close: price,
		DT:    time.Unix(epoch, 0).UTC(),
	}
}

// NewCandleQuote builds a quote from an OHLC candle.
func NewCandleQuote(epoch int64, open, high, low, close float64) Quote {
	return Quote{
		Date:  strconv.FormatInt(epoch, 10),
		Open:  &open,
		High:  &high,
		Low:   &low,
		Close: close,
		DT:    time.Unix(epoch, 0).UTC(),
	}
}

// IsCandle reports whether the quote carries OHLC values.
func (q Quote) IsCandle() bool {
	return q.Open != nil && q.High != nil && q.Low != nil
}

// Epoch returns the quote time in seconds since Unix epoch.
func (q Quote) Epoch() int64 {
	return q.DT.Unix()
}

// QuotesMeta echoes the request that produced a quote list.
type QuotesMeta struct {
	Symbol      string `json:"symbol"`
	Granularity int    `json:"granularity"`
}

// -----------------------------------------------------------------------------
// Symbol Types
// -----------------------------------------------------------------------------

// ActiveSymbol is a tradable instrument with its display metadata.
type ActiveSymbol struct {
	Symbol               string  `json:"symbol"`
	DisplayName          string  `json:"display_name"`
	Market               string  `json:"market"`
	MarketDisplayName    string  `json:"market_display_name"`
	Submarket            string  `json:"submarket"`
	SubmarketDisplayName string  `json:"submarket_display_name"`
	Subgroup             string  `json:"subgroup,omitempty"`
	SubgroupDisplayName  string  `json:"subgroup_display_name,omitempty"`
	SymbolType           string  `json:"symbol_type,omitempty"`
	Pip                  float64 `json:"pip"`
	DecimalPlaces        int     `json:"decimal_places"`
	ExchangeIsOpen       bool    `json:"exchange_is_open"`
	IsTradingSuspended   bool    `json:"is_trading_suspended"`
	DisplayOrder         int     `json:"display_order,omitempty"`
}

// Tradable reports whether the symbol can currently be traded.
func (s ActiveSymbol) Tradable() bool {
	return s.ExchangeIsOpen && !s.IsTradingSuspended
}

// TradingTimes is the market-hours state of one symbol for a day.
// OpenTime and CloseTime are nil when the symbol does not trade that day.
type TradingTimes struct {
	IsOpen    bool       `json:"isOpen"`
	OpenTime  *time.Time `json:"openTime"`
	CloseTime *time.Time `json:"closeTime"`
}

// TradingTimesMap maps a symbol to its trading times.
type TradingTimesMap map[string]TradingTimes

// -----------------------------------------------------------------------------
// Journal Types
// -----------------------------------------------------------------------------

// Transaction is a settled or open contract recorded for a user.
// (UserID, ContractID) is unique.
type Transaction struct {
	ID                int64           `json:"id"`
	UserID            string          `json:"user_id"`
	ContractID        string          `json:"contract_id"`
	RunID             string          `json:"run_id,omitempty"`
	BuyPrice          float64         `json:"buy_price"`
	Payout            float64         `json:"payout"`
	Profit            float64         `json:"profit"`
	Currency          string          `json:"currency"`
	ContractType      string          `json:"contract_type"`
	Shortcode         string          `json:"shortcode"`
	DateStart         string          `json:"date_start"`
	DateExpiry        string          `json:"date_expiry"`
	EntryTick         string          `json:"entry_tick,omitempty"`
	ExitTick          string          `json:"exit_tick,omitempty"`
	StrategyIntent    json.RawMessage `json:"strategy_intent,omitempty"`
	BehavioralSummary json.RawMessage `json:"behavioral_summary,omitempty"`
	ChartImage        string          `json:"-"` // base64 PNG; stored, never listed
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// AnalysisResult is a recorded review of one transaction: the analyst's
// assessment and the tutor's explanation of it.
type AnalysisResult struct {
	ID                int64     `json:"id"`
	TransactionID     int64     `json:"transaction_id"`
	TradeAnalysis     string    `json:"trade_analysis"`
	KeyFactors        []string  `json:"key_factors"`
	WinLossAssessment string    `json:"win_loss_assessment"`
	TradeExplanation  string    `json:"trade_explanation"`
	LearningPoints    []string  `json:"learning_points"`
	ExplanationFile   string    `json:"explanation_file,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
