package category

import "regexp"

// marketOrder is the order markets appear in dropdowns.
var marketOrder = []string{
	"synthetic_index",
	"forex",
	"indices",
	"cryptocurrency",
	"commodities",
	"stocks",
}

var marketNames = map[string]string{
	"synthetic_index": "Derived",
	"forex":           "Forex",
	"indices":         "Stock Indices",
	"cryptocurrency":  "Cryptocurrencies",
	"commodities":     "Commodities",
	"stocks":          "Stocks",
}

var submarketNames = map[string]string{
	"random_index":     "Continuous Indices",
	"random_daily":     "Daily Reset Indices",
	"crash_index":      "Crash/Boom Indices",
	"jump_index":       "Jump Indices",
	"step_index":       "Step Indices",
	"range_break":      "Range Break Indices",
	"major_pairs":      "Major Pairs",
	"minor_pairs":      "Minor Pairs",
	"exotic_pairs":     "Exotic Pairs",
	"smart_fx":         "Smart FX",
	"asia_oceania_OTC": "Asian indices",
	"europe_OTC":       "European indices",
	"americas_OTC":     "American indices",
	"non_stable_coin":  "Cryptocurrencies",
	"metals":           "Metals",
	"energy":           "Energy",
}

// symbolNames holds instruments whose names do not follow a pattern.
// Checked before symbolPatterns.
var symbolNames = map[string]string{
	"RDBULL":     "Bull Market Index",
	"RDBEAR":     "Bear Market Index",
	"stpRNG":     "Step Index",
	"frxXAUUSD":  "Gold/USD",
	"frxXAGUSD":  "Silver/USD",
	"frxXPDUSD":  "Palladium/USD",
	"frxXPTUSD":  "Platinum/USD",
	"WLDAUD":     "AUD Basket",
	"WLDEUR":     "EUR Basket",
	"WLDGBP":     "GBP Basket",
	"WLDUSD":     "USD Basket",
	"WLDXAU":     "Gold Basket",
	"OTC_AS51":   "Australia 200",
	"OTC_HSI":    "Hong Kong 50",
	"OTC_N225":   "Japan 225",
	"OTC_FCHI":   "France 40",
	"OTC_GDAXI":  "Germany 40",
	"OTC_FTSE":   "UK 100",
	"OTC_SX5E":   "Euro 50",
	"OTC_AEX":    "Netherlands 25",
	"OTC_SSMI":   "Swiss 20",
	"OTC_IBEX35": "Spain 35",
	"OTC_DJI":    "Wall Street 30",
	"OTC_SPC":    "US 500",
	"OTC_NDX":    "US Tech 100",
	"cryBTCUSD":  "BTC/USD",
	"cryETHUSD":  "ETH/USD",
}

// symbolPattern names a family of instruments. format is a catalog key
// receiving the submatches in order.
type symbolPattern struct {
	re     *regexp.Regexp
	format string
}

var symbolPatterns = []symbolPattern{
	{regexp.MustCompile(`^R_(\d+)$`), "Volatility %s Index"},
	{regexp.MustCompile(`^1HZ(\d+)V$`), "Volatility %s (1s) Index"},
	{regexp.MustCompile(`^CRASH(\d+)N?$`), "Crash %s Index"},
	{regexp.MustCompile(`^BOOM(\d+)N?$`), "Boom %s Index"},
	{regexp.MustCompile(`^JD(\d+)$`), "Jump %s Index"},
	{regexp.MustCompile(`^stpRNG(\d)$`), "Step Index %s00"},
	{regexp.MustCompile(`^RB(\d+)$`), "Range Break %s Index"},
	{regexp.MustCompile(`^frx([A-Z]{3})([A-Z]{3})$`), "%s/%s"},
	{regexp.MustCompile(`^cry([A-Z]{3,5})(USD)$`), "%s/%s"},
}
