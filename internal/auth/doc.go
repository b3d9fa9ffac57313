// Package auth implements the OAuth2 authorization-code flow with PKCE and
// a small REST client for the accounts service (whoami, logout).
package auth
