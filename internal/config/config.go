package config

import "time"

// GatewayConfig is the root configuration for a gateway instance.
type GatewayConfig struct {
	Instance  InstanceConfig  `yaml:"instance"`
	API       APIConfig       `yaml:"api"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	Database  DatabaseConfig  `yaml:"database"`
	Transport TransportConfig `yaml:"transport"`
	Services  ServicesConfig  `yaml:"services"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Server    ServerConfig    `yaml:"server"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// InstanceConfig identifies this gateway.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds trading API WebSocket settings.
type APIConfig struct {
	WSURL          string        `yaml:"ws_url"`
	AppID          string        `yaml:"app_id"`
	Language       string        `yaml:"language"`
	Origin         string        `yaml:"origin"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// OAuthConfig holds the OAuth2 authorization-code + PKCE settings.
type OAuthConfig struct {
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"` // Empty for public PKCE clients
	AuthURL      string        `yaml:"auth_url"`
	TokenURL     string        `yaml:"token_url"`
	RedirectURL  string        `yaml:"redirect_url"`
	AccountsURL  string        `yaml:"accounts_url"` // Base URL for whoami/logout
	Scopes       []string      `yaml:"scopes"`
	Timeout      time.Duration `yaml:"timeout"`
}

// DatabaseConfig holds the Postgres connection for the transaction journal.
// Leaving postgres.host empty disables the journal.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Postgres.Host != ""
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// TransportConfig holds WebSocket transport settings.
type TransportConfig struct {
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	BufferSize         int           `yaml:"buffer_size"`
}

// ServicesConfig holds active-symbols and trading-times cache settings.
type ServicesConfig struct {
	RefreshInterval   time.Duration `yaml:"refresh_interval"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout"`
	ActiveSymbolsKind string        `yaml:"active_symbols_kind"` // "brief" or "full"
	ProductType       string        `yaml:"product_type"`
}

// SessionsConfig holds OAuth session bookkeeping settings.
type SessionsConfig struct {
	WhoamiInterval    time.Duration `yaml:"whoami_interval"`
	WhoamiConcurrency int           `yaml:"whoami_concurrency"`
	LoginTTL          time.Duration `yaml:"login_ttl"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int      `yaml:"port"`
	CORSOrigins  []string `yaml:"cors_origins"`
	RateLimit    float64  `yaml:"rate_limit"` // Requests per second per client IP (0 = disabled)
	RateBurst    int      `yaml:"rate_burst"`
	SecureCookie bool     `yaml:"secure_cookie"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
