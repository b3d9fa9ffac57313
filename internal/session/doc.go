// Package session keeps the OAuth account sessions of the gateway.
//
// A session is created when an authorization code is exchanged and holds
// the account token together with the accounts it can trade on. Pending
// logins (state to PKCE verifier) expire on their own. The WhoamiPoller
// re-checks every token periodically and logs out sessions the accounts
// service no longer accepts.
package session
