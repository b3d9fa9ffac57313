package transport

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rickgao/botcharts/internal/api"
)

// Errors
var (
	ErrNotConnected        = errors.New("not connected")
	ErrStaleConnection     = errors.New("connection stale (no pong)")
	ErrTimeout             = errors.New("request timeout")
	ErrAlreadyClosed       = errors.New("already closed")
	ErrConnectionLost      = errors.New("connection lost before response")
	ErrUnknownSubscription = errors.New("unknown subscription")
	ErrNoSubscriptionID    = errors.New("server did not open a stream")
	ErrStopped             = errors.New("transport stopped")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Callback receives every message of a subscription, starting with the
// response to the initial request.
type Callback func(resp *api.Response)

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // Full WebSocket URL including app_id and l
	Origin       string        // Optional Origin header
	PingInterval time.Duration // Interval between WebSocket pings
	PingTimeout  time.Duration // Max time without pong/message before considering connection stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval: 30 * time.Second,
		PingTimeout:  90 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   1000,
	}
}

// Config configures the Transport.
type Config struct {
	URL               string        // Full WebSocket URL (see BuildURL)
	Origin            string        // Optional Origin header
	RequestTimeout    time.Duration // Default wait for a response when ctx has no deadline
	KeepaliveInterval time.Duration // Interval between {"ping": 1} requests (0 = disabled)
	ReconnectBaseWait time.Duration // Base wait time for reconnection
	ReconnectMaxWait  time.Duration // Max wait time for reconnection
	Client            ClientConfig  // Underlying WebSocket client settings (URL/Origin copied in)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:    30 * time.Second,
		KeepaliveInterval: 30 * time.Second,
		ReconnectBaseWait: 1 * time.Second,
		ReconnectMaxWait:  60 * time.Second,
		Client:            DefaultClientConfig(),
	}
}

// BuildURL appends app_id and language to the WebSocket endpoint.
func BuildURL(base, appID, language string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse ws url: %w", err)
	}
	q := u.Query()
	if appID != "" {
		q.Set("app_id", appID)
	}
	if language != "" {
		q.Set("l", strings.ToUpper(language))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Stats provides statistics about the transport.
type Stats struct {
	Connected           bool
	ActiveSubscriptions int
	PendingRequests     int
	RequestsSent        int64
	MessagesReceived    int64
	PushesDelivered     int64
	PushesDropped       int64
	Reconnects          int64
}
