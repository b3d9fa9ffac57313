package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Config configures the OAuth client.
type Config struct {
	ClientID     string
	ClientSecret string // Empty for public PKCE clients
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string
	Timeout      time.Duration
}

// ErrNotConfigured is returned when no client id is set.
var ErrNotConfigured = errors.New("oauth not configured")

// OAuth runs the authorization-code flow with PKCE (S256).
type OAuth struct {
	cfg     *oauth2.Config
	timeout time.Duration
}

// NewOAuth creates the OAuth client.
func NewOAuth(cfg Config) *OAuth {
	return &OAuth{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		timeout: cfg.Timeout,
	}
}

// Enabled reports whether a client id is configured.
func (o *OAuth) Enabled() bool {
	return o.cfg.ClientID != ""
}

// GenerateCodeVerifier returns a fresh PKCE code verifier.
func GenerateCodeVerifier() string {
	return oauth2.GenerateVerifier()
}

// CodeChallenge derives the S256 challenge of a verifier.
func CodeChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// GenerateState returns an unguessable state value.
func GenerateState() string {
	return uuid.NewString()
}

// AuthorizeURL builds the URL the browser is sent to.
func (o *OAuth) AuthorizeURL(state, verifier string) (string, error) {
	if !o.Enabled() {
		return "", ErrNotConfigured
	}
	return o.cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// Exchange trades an authorization code and its verifier for a token.
func (o *OAuth) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	if !o.Enabled() {
		return nil, ErrNotConfigured
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	tok, err := o.cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return tok, nil
}
