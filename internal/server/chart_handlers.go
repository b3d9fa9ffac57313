package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/botcharts/internal/api"
	"github.com/rickgao/botcharts/internal/category"
	"github.com/rickgao/botcharts/internal/chart"
	"github.com/rickgao/botcharts/internal/model"
)

func (s *Server) quotes(c *gin.Context) {
	var req chart.QuotesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid quotes request: "+err.Error())
		return
	}
	if req.Granularity < 0 || req.Count < 0 {
		errorJSON(c, http.StatusBadRequest, "granularity and count must not be negative")
		return
	}

	c.JSON(http.StatusOK, s.deps.Chart.GetQuotes(c.Request.Context(), req))
}

func (s *Server) chartData(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Chart.GetChartData(c.Request.Context()))
}

func (s *Server) serverTime(c *gin.Context) {
	t, err := s.deps.Chart.GetServerTime(c.Request.Context())
	if err != nil {
		s.logger.Warn("server time unavailable", "error", err)
		if apiErr, ok := api.AsError(err); ok {
			c.AbortWithStatusJSON(http.StatusBadGateway, api.ToFieldError(apiErr))
			return
		}
		errorJSON(c, http.StatusBadGateway, "server time unavailable")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"time": t.Unix(),
		"iso":  t.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// activeSymbols loads the menu source; failures degrade to an empty list.
func (s *Server) activeSymbols(c *gin.Context) []model.ActiveSymbol {
	if s.deps.Symbols == nil {
		return []model.ActiveSymbol{}
	}
	symbols, err := s.deps.Symbols.Get(c.Request.Context())
	if err != nil {
		s.logger.Warn("active symbols unavailable", "error", err)
		return []model.ActiveSymbol{}
	}
	return symbols
}

// lang prefers ?lang= over Accept-Language.
func lang(c *gin.Context) string {
	if l := c.Query("lang"); l != "" {
		return l
	}
	return c.GetHeader("Accept-Language")
}

func (s *Server) marketOptions(c *gin.Context) {
	opts := s.deps.Localizer.MarketOptions(s.activeSymbols(c), lang(c))
	writeOptions(c, opts)
}

func (s *Server) submarketOptions(c *gin.Context) {
	market := c.Query("market")
	if market == "" {
		errorJSON(c, http.StatusBadRequest, "market is required")
		return
	}
	opts := s.deps.Localizer.SubmarketOptions(s.activeSymbols(c), market, lang(c))
	writeOptions(c, opts)
}

func (s *Server) symbolOptions(c *gin.Context) {
	submarket := c.Query("submarket")
	if submarket == "" {
		errorJSON(c, http.StatusBadRequest, "submarket is required")
		return
	}
	opts := s.deps.Localizer.SymbolOptions(s.activeSymbols(c), submarket, lang(c))
	writeOptions(c, opts)
}

func writeOptions(c *gin.Context, opts []category.Option) {
	if opts == nil {
		opts = []category.Option{}
	}
	c.JSON(http.StatusOK, gin.H{"options": opts})
}

func (s *Server) symbolName(c *gin.Context) {
	symbol := c.Param("symbol")
	l := lang(c)
	c.JSON(http.StatusOK, gin.H{
		"symbol":   symbol,
		"name":     s.deps.Localizer.SymbolDisplayName(l, symbol),
		"language": s.deps.Localizer.Match(l).String(),
	})
}
