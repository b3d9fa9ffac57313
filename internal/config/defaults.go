package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultWSURL              = "wss://ws.derivws.com/websockets/v3"
	DefaultAppID              = "1089"
	DefaultLanguage           = "EN"
	DefaultRequestTimeout     = 30 * time.Second
	DefaultAuthURL            = "https://oauth.deriv.com/oauth2/authorize"
	DefaultTokenURL           = "https://oauth.deriv.com/oauth2/token"
	DefaultAccountsURL        = "https://oauth.deriv.com/oauth2/sessions"
	DefaultOAuthTimeout       = 10 * time.Second
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultPingInterval       = 30 * time.Second
	DefaultPingTimeout        = 90 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultBufferSize         = 1000
	DefaultRefreshInterval    = 5 * time.Minute
	DefaultCacheTTL           = 10 * time.Minute
	DefaultFetchTimeout       = 30 * time.Second
	DefaultActiveSymbolsKind  = "brief"
	DefaultProductType        = "basic"
	DefaultWhoamiInterval     = 1 * time.Minute
	DefaultWhoamiConcurrency  = 10
	DefaultLoginTTL           = 10 * time.Minute
	DefaultServerPort         = 8080
	DefaultRateBurst          = 20
	DefaultMetricsPath        = "/metrics"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

func (c *GatewayConfig) applyDefaults() {
	// API defaults
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.AppID == "" {
		c.API.AppID = DefaultAppID
	}
	if c.API.Language == "" {
		c.API.Language = DefaultLanguage
	}
	if c.API.RequestTimeout == 0 {
		c.API.RequestTimeout = DefaultRequestTimeout
	}

	// OAuth defaults
	if c.OAuth.AuthURL == "" {
		c.OAuth.AuthURL = DefaultAuthURL
	}
	if c.OAuth.TokenURL == "" {
		c.OAuth.TokenURL = DefaultTokenURL
	}
	if c.OAuth.AccountsURL == "" {
		c.OAuth.AccountsURL = DefaultAccountsURL
	}
	if c.OAuth.Timeout == 0 {
		c.OAuth.Timeout = DefaultOAuthTimeout
	}

	// Database defaults (only when a database is configured)
	if c.Database.Enabled() {
		applyDBDefaults(&c.Database.Postgres)
	}

	// Transport defaults
	if c.Transport.ReconnectBaseDelay == 0 {
		c.Transport.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Transport.ReconnectMaxDelay == 0 {
		c.Transport.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Transport.PingInterval == 0 {
		c.Transport.PingInterval = DefaultPingInterval
	}
	if c.Transport.PingTimeout == 0 {
		c.Transport.PingTimeout = DefaultPingTimeout
	}
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = DefaultWriteTimeout
	}
	if c.Transport.BufferSize == 0 {
		c.Transport.BufferSize = DefaultBufferSize
	}

	// Services defaults
	if c.Services.RefreshInterval == 0 {
		c.Services.RefreshInterval = DefaultRefreshInterval
	}
	if c.Services.CacheTTL == 0 {
		c.Services.CacheTTL = DefaultCacheTTL
	}
	if c.Services.FetchTimeout == 0 {
		c.Services.FetchTimeout = DefaultFetchTimeout
	}
	if c.Services.ActiveSymbolsKind == "" {
		c.Services.ActiveSymbolsKind = DefaultActiveSymbolsKind
	}
	if c.Services.ProductType == "" {
		c.Services.ProductType = DefaultProductType
	}

	// Sessions defaults
	if c.Sessions.WhoamiInterval == 0 {
		c.Sessions.WhoamiInterval = DefaultWhoamiInterval
	}
	if c.Sessions.WhoamiConcurrency == 0 {
		c.Sessions.WhoamiConcurrency = DefaultWhoamiConcurrency
	}
	if c.Sessions.LoginTTL == 0 {
		c.Sessions.LoginTTL = DefaultLoginTTL
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = DefaultRateBurst
	}

	// Metrics defaults
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
