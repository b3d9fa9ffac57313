package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/botcharts/internal/auth"
	"github.com/rickgao/botcharts/internal/metrics"
)

// WhoamiChecker validates a token against the accounts service.
type WhoamiChecker interface {
	Whoami(ctx context.Context, token string) (*auth.Whoami, error)
}

// PollerConfig holds whoami poller configuration.
type PollerConfig struct {
	Interval    time.Duration // Poll interval (default: 5m)
	Concurrency int           // Max concurrent requests (default: 8)
	Timeout     time.Duration // Per-request timeout (default: 10s)
}

// DefaultPollerConfig returns sensible defaults.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:    5 * time.Minute,
		Concurrency: 8,
		Timeout:     10 * time.Second,
	}
}

// WhoamiPoller periodically re-validates session tokens.
type WhoamiPoller struct {
	cfg     PollerConfig
	store   *Store
	checker WhoamiChecker
	metrics *metrics.Metrics
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a new WhoamiPoller.
func NewPoller(cfg PollerConfig, store *Store, checker WhoamiChecker, m *metrics.Metrics, logger *slog.Logger) *WhoamiPoller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultPollerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &WhoamiPoller{
		cfg:     cfg,
		store:   store,
		checker: checker,
		metrics: m,
		logger:  logger,
		ctx:     context.Background(),
	}
}

// Start begins the polling loop.
func (p *WhoamiPoller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("whoami poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *WhoamiPoller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("whoami poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *WhoamiPoller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollAll()
		}
	}
}

// pollAll checks every session concurrently.
func (p *WhoamiPoller) pollAll() {
	start := time.Now()

	sessions := p.store.List()
	if len(sessions) == 0 {
		p.logger.Debug("no sessions to check")
		return
	}

	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var valid, expired, failed atomic.Int64

	for _, sess := range sessions {
		wg.Add(1)
		go func(sess Session) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-p.ctx.Done():
				return
			}

			switch err := p.check(sess); {
			case err == nil:
				valid.Add(1)
			case errors.Is(err, auth.ErrUnauthorized):
				expired.Add(1)
			default:
				p.logger.Warn("whoami check failed",
					"session", sess.ID,
					"loginid", sess.LoginID,
					"err", err,
				)
				failed.Add(1)
			}
		}(sess)
	}

	wg.Wait()

	p.metrics.SetSessions(p.store.Len())
	p.logger.Info("whoami cycle complete",
		"sessions", len(sessions),
		"valid", valid.Load(),
		"expired", expired.Load(),
		"errors", failed.Load(),
		"duration", time.Since(start),
	)
}

// check validates one session; an unauthorized token logs it out.
func (p *WhoamiPoller) check(sess Session) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	who, err := p.checker.Whoami(ctx, sess.Token)
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		p.store.Delete(sess.ID)
		p.metrics.ObserveWhoami("unauthorized")
		p.logger.Info("session logged out by whoami",
			"session", sess.ID,
			"loginid", sess.LoginID,
		)
		return err
	case err != nil:
		p.metrics.ObserveWhoami("error")
		return err
	}

	p.store.refresh(sess.ID, who)
	p.metrics.ObserveWhoami("ok")
	return nil
}
