// Package model defines shared data types used across the chart gateway.
//
// Conventions:
//   - Prices: float64 as delivered by the trading API, rounded to the symbol pip
//   - Epochs: int64 seconds since Unix epoch on the wire, time.Time in models
//   - IDs: string for symbols and contracts, uuid for gateway-issued ids
package model
