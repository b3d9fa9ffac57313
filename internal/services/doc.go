// Package services provides the cached active-symbols and trading-times
// data the chart needs.
//
// Both services fetch over the shared transport, collapse concurrent misses
// with singleflight, and cache results with a TTL. When a payload cannot be
// processed they fall back to the raw server data instead of failing.
//
// Manager owns both services and a background loop that refreshes them and
// logs which symbols opened or closed since the previous refresh.
package services
