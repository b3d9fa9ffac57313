// Package chart adapts the trading API to the shape a charting UI expects.
//
// GetQuotes turns a {symbol, granularity, count|start} request into a
// ticks_history call and returns Quote values; on any failure it returns an
// empty list with the request echoed back. SubscribeQuotes streams live
// ticks or candles, sharing one upstream subscription per symbol and
// granularity among all listeners.
package chart
