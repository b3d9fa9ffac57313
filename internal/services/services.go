package services

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rickgao/botcharts/internal/api"
)

// Errors
var (
	ErrMissingSymbol = errors.New("symbol code missing")
	ErrBadSession    = errors.New("malformed session time")
)

// Sender is the part of the transport the services use.
type Sender interface {
	Send(ctx context.Context, req api.Request) (*api.Response, error)
}

// Config holds service settings.
type Config struct {
	RefreshInterval   time.Duration // 0 disables the refresh loop
	CacheTTL          time.Duration
	FetchTimeout      time.Duration // bounds a fetch shared by concurrent callers
	ActiveSymbolsKind string // "brief" or "full"
	ProductType       string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RefreshInterval:   5 * time.Minute,
		CacheTTL:          10 * time.Minute,
		FetchTimeout:      30 * time.Second,
		ActiveSymbolsKind: "brief",
		ProductType:       "basic",
	}
}

// shared runs fn once per key for all concurrent callers. fn runs on a
// context detached from any single caller and bounded by timeout, so one
// caller going away does not fail the others. Each caller still stops
// waiting when its own ctx ends.
func shared[T any](ctx context.Context, g *singleflight.Group, key string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ch := g.DoChan(key, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		if timeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, timeout)
			defer cancel()
		}
		return fn(fctx)
	})

	var zero T
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
