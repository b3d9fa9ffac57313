// Package api defines the JSON-over-WebSocket wire protocol of the trading API.
//
// WebSocket endpoint:
//   - wss://ws.derivws.com/websockets/v3?app_id=<id>&l=<lang>
//
// Every request may carry a numeric req_id which the server echoes back.
// Streaming requests add "subscribe": 1; the first response and every later
// push carry subscription.id, which "forget" cancels.
//
// Calls used by the gateway: ticks_history, active_symbols, trading_times,
// time, ping, forget, forget_all.
package api
