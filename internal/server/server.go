package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"github.com/rickgao/botcharts/internal/auth"
	"github.com/rickgao/botcharts/internal/category"
	"github.com/rickgao/botcharts/internal/chart"
	"github.com/rickgao/botcharts/internal/metrics"
	"github.com/rickgao/botcharts/internal/model"
	"github.com/rickgao/botcharts/internal/session"
	"github.com/rickgao/botcharts/internal/transactions"
)

// ChartService is the chart adapter as the handlers use it.
type ChartService interface {
	GetQuotes(ctx context.Context, req chart.QuotesRequest) chart.QuotesResult
	GetChartData(ctx context.Context) chart.ChartData
	GetServerTime(ctx context.Context) (time.Time, error)
	SubscribeQuotes(ctx context.Context, req chart.QuotesRequest, fn func(model.Quote)) (string, error)
	UnsubscribeQuotes(ctx context.Context, req chart.QuotesRequest, listenerID string) error
}

// SymbolSource provides active symbols for the menus.
type SymbolSource interface {
	Get(ctx context.Context) ([]model.ActiveSymbol, error)
}

// OAuthProvider runs the PKCE authorization-code flow.
type OAuthProvider interface {
	Enabled() bool
	AuthorizeURL(state, verifier string) (string, error)
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
}

// AccountsService resolves and ends account sessions.
type AccountsService interface {
	Whoami(ctx context.Context, token string) (*auth.Whoami, error)
	Logout(ctx context.Context, token string) error
}

// Config holds HTTP server settings.
type Config struct {
	Port         int
	CORSOrigins  []string
	RateLimit    float64 // Requests per second per client IP (0 = disabled)
	RateBurst    int
	SecureCookie bool
	MetricsPath  string // default "/metrics"
}

// Deps are the components behind the routes. A nil dep disables the
// routes that need it with 503; Symbols and Localizer degrade instead.
type Deps struct {
	Chart        ChartService
	Symbols      SymbolSource
	Localizer    *category.Localizer
	Sessions     *session.Store
	OAuth        OAuthProvider
	Accounts     AccountsService
	Transactions transactions.Store          // optional
	Metrics      *metrics.Metrics            // optional
	TransportUp  func() bool                 // optional
	DBPing       func(context.Context) error // optional
}

// Server is the gateway HTTP server.
type Server struct {
	cfg    Config
	deps   Deps
	engine *gin.Engine
	logger *slog.Logger

	httpServer *http.Server

	// Streams are hijacked connections that Shutdown does not close.
	ctx     context.Context
	cancel  context.CancelFunc
	streams sync.WaitGroup
}

// New creates the server and registers its routes.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Localizer == nil {
		deps.Localizer = category.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		engine: gin.New(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	s.engine.Use(
		requestLogger(logger, deps.Metrics),
		recovery(logger),
		corsMiddleware(cfg.CORSOrigins),
		newIPLimiter(cfg.RateLimit, cfg.RateBurst).middleware(),
	)
	s.routes()

	return s
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/health", s.health)
	r.HEAD("/health", s.health)
	if s.deps.Metrics != nil {
		path := s.cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(s.deps.Metrics.Handler()))
	}

	api := r.Group("/api")
	api.POST("/education/feedback", s.feedback)

	charts := api.Group("/chart", s.requireChart)
	charts.GET("/quotes", s.quotes)
	charts.GET("/data", s.chartData)
	charts.GET("/time", s.serverTime)
	charts.GET("/stream", s.stream)

	symbols := api.Group("/symbols")
	symbols.GET("/markets", s.marketOptions)
	symbols.GET("/submarkets", s.submarketOptions)
	symbols.GET("/options", s.symbolOptions)
	symbols.GET("/:symbol/name", s.symbolName)

	api.GET("/transactions", s.listTransactions)
	api.POST("/transactions", s.saveTransactions)

	analysis := api.Group("/agent_analysis", s.requireTransactions)
	analysis.POST("/results", s.saveAnalysis)
	analysis.GET("/latest", s.latestAnalysis)
	analysis.GET("/chart", s.chartImage)

	oauth := api.Group("/oauth")
	oauth.GET("/login", s.login)
	oauth.GET("/callback", s.callback)
	oauth.POST("/logout", s.logout)
	oauth.GET("/session", s.currentSession)
	oauth.POST("/session/account", s.switchAccount)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured port and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "error", err)
		}
	}()

	s.logger.Info("http server started", "addr", ln.Addr().String())
	return nil
}

// Stop shuts the server down and closes open streams.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.streams.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("http server stopped")
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}

	if s.deps.TransportUp != nil {
		up := s.deps.TransportUp()
		body["transport"] = up
		if !up {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}

	switch {
	case s.deps.DBPing == nil:
		body["database"] = "disabled"
	case s.deps.DBPing(c.Request.Context()) != nil:
		body["database"] = "error"
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	default:
		body["database"] = "ok"
	}

	c.JSON(status, body)
}

// feedback acknowledges education feedback without storing it.
func (s *Server) feedback(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Feedback received",
	})
}

// requireChart guards the chart routes.
func (s *Server) requireChart(c *gin.Context) {
	if s.deps.Chart == nil {
		errorJSON(c, http.StatusServiceUnavailable, "charts unavailable")
		return
	}
	c.Next()
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
