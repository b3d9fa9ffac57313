// Package transport implements the shared WebSocket transport to the trading API.
//
// The Transport:
//   - Owns one WebSocket connection for the whole gateway
//   - Correlates requests and responses by req_id
//   - Tracks subscriptions by a local temporary id until the server
//     assigns a subscription id, then routes pushes by that id
//   - Forgets server streams on Unsubscribe
//   - Reconnects with exponential backoff and resubscribes live streams
package transport
