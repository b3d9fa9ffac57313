// Package server exposes the gateway over HTTP.
//
// Routes:
//   - /health, /metrics
//   - /api/chart/*: quotes, chart data, server time and the quote stream
//     websocket
//   - /api/symbols/*: localized market, submarket and symbol menus
//   - /api/transactions: the contract journal
//   - /api/oauth/*: PKCE login, callback, logout and session state
//   - /api/education/feedback: accepts feedback and acknowledges it
//
// Every request goes through request logging, panic recovery, CORS and a
// per client IP rate limiter.
package server
