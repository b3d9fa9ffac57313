package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *GatewayConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	u, err := url.Parse(c.API.WSURL)
	if err != nil {
		return fmt.Errorf("api.ws_url is invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("api.ws_url must use ws or wss, got %q", u.Scheme)
	}
	if c.API.AppID == "" {
		return errors.New("api.app_id is required")
	}

	if c.OAuth.ClientID != "" && c.OAuth.RedirectURL == "" {
		return errors.New("oauth.redirect_url is required when oauth.client_id is set")
	}

	if c.Database.Enabled() {
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	}

	if c.Transport.ReconnectBaseDelay > c.Transport.ReconnectMaxDelay {
		return fmt.Errorf("transport.reconnect_base_delay (%s) cannot exceed reconnect_max_delay (%s)",
			c.Transport.ReconnectBaseDelay, c.Transport.ReconnectMaxDelay)
	}
	if c.Transport.BufferSize < 1 {
		return errors.New("transport.buffer_size must be >= 1")
	}

	switch c.Services.ActiveSymbolsKind {
	case "brief", "full":
	default:
		return fmt.Errorf("services.active_symbols_kind must be brief or full, got %q", c.Services.ActiveSymbolsKind)
	}

	if c.Sessions.WhoamiConcurrency < 1 {
		return errors.New("sessions.whoami_concurrency must be >= 1")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return errors.New("server.rate_limit must be >= 0")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
