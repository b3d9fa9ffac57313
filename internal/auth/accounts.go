package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrUnauthorized means the token is no longer valid.
var ErrUnauthorized = errors.New("token unauthorized")

// Account is one trading account of a user.
type Account struct {
	LoginID   string `json:"loginid"`
	Currency  string `json:"currency"`
	IsVirtual bool   `json:"is_virtual"`
}

// Whoami describes the user behind a token.
type Whoami struct {
	Active   bool      `json:"active"`
	LoginID  string    `json:"loginid"`
	Email    string    `json:"email,omitempty"`
	Accounts []Account `json:"accounts,omitempty"`
}

// AccountsClient talks to the accounts service.
type AccountsClient struct {
	client *resty.Client
}

// NewAccountsClient creates a client for baseURL.
func NewAccountsClient(baseURL string, timeout time.Duration) *AccountsClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeaders(map[string]string{
			"Accept":       "application/json",
			"Content-Type": "application/json",
		})

	return &AccountsClient{client: client}
}

// Whoami returns the user of token. A 401 gives ErrUnauthorized.
func (c *AccountsClient) Whoami(ctx context.Context, token string) (*Whoami, error) {
	var out Whoami
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&out).
		Get("/active")
	if err != nil {
		return nil, fmt.Errorf("whoami: %w", err)
	}
	if err := statusError(resp); err != nil {
		return nil, fmt.Errorf("whoami: %w", err)
	}
	return &out, nil
}

// Logout ends the remote session of token.
func (c *AccountsClient) Logout(ctx context.Context, token string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		Post("/logout")
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if err := statusError(resp); err != nil && !errors.Is(err, ErrUnauthorized) {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func statusError(resp *resty.Response) error {
	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return ErrUnauthorized
	case !resp.IsSuccess():
		return fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	return nil
}
