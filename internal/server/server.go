// Package server exposes a small HTTP control surface over the running
// engine: read-only views of positions and performance, plus manual
// triggers for the operations the poll loop normally drives.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MuditaSai/weather/internal/domain"
	"github.com/MuditaSai/weather/internal/engine"
	"github.com/MuditaSai/weather/internal/ledger"
	"github.com/MuditaSai/weather/internal/tracker"
	"github.com/MuditaSai/weather/pkg/logger"
	"github.com/MuditaSai/weather/pkg/persistence"
)

type Server struct {
	engine  *engine.Engine
	legs    *tracker.Store
	book    *ledger.Ledger
	persist persistence.Service
	now     func() time.Time

	http *http.Server
}

func New(eng *engine.Engine, legs *tracker.Store, book *ledger.Ledger, persist persistence.Service) *Server {
	return &Server{engine: eng, legs: legs, book: book, persist: persist, now: time.Now}
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.GET("/summary", s.handleSummary)
	api.GET("/positions", s.handlePositions)
	api.GET("/trades", s.handleTrades)
	api.POST("/scan", s.handleScan)
	api.POST("/reconcile", s.handleReconcile)
	api.POST("/derisk", s.handleDerisk)
	api.POST("/sell", s.handleSell)
	api.POST("/settle", s.handleSettle)
	api.POST("/export", s.handleExport)
	api.POST("/reset", s.handleReset)
	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.Router()}
	errCh := make(chan error, 1)
	go func() { errCh <- s.http.ListenAndServe() }()
	logger.WithField("addr", addr).Info("control server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleSummary(c *gin.Context) {
	trades, err := s.book.Trades(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ledger.Summarize(trades))
}

func (s *Server) handlePositions(c *gin.Context) {
	hedges, err := s.legs.Hedges(s.now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	type view struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Cost   int    `json:"total_cost"`
		Legs   [2]any `json:"legs"`
	}
	out := make([]view, 0, len(hedges))
	for _, h := range hedges {
		out = append(out, view{
			ID:     h.ID(),
			Status: string(h.Status()),
			Cost:   h.TotalCost(),
			Legs:   [2]any{h.Legs[0], h.Legs[1]},
		})
	}
	c.JSON(http.StatusOK, gin.H{"hedges": out})
}

func (s *Server) handleTrades(c *gin.Context) {
	trades, err := s.book.Trades(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleScan(c *gin.Context) {
	s.engine.Scan(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReconcile(c *gin.Context) {
	if err := s.engine.Reconcile(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleDerisk(c *gin.Context) {
	var req struct {
		HedgeID string `json:"hedge_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.engine.ForceDerisk(c.Request.Context(), req.HedgeID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "hedge_id": req.HedgeID})
}

// handleSell sells one leg at the current bid. Side defaults to yes,
// the only side the strategy trades.
func (s *Server) handleSell(c *gin.Context) {
	var req struct {
		Ticker string `json:"ticker" binding:"required"`
		Side   string `json:"side"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	side := domain.SideYes
	if req.Side != "" {
		side = domain.Side(req.Side)
	}
	if err := s.engine.ForceSell(c.Request.Context(), req.Ticker, side); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ticker": req.Ticker})
}

// handleSettle with an empty body sweeps the venue for settlement
// results; with a body it records an outcome by hand, for days where
// the venue never reports one.
func (s *Server) handleSettle(c *gin.Context) {
	var req struct {
		Series        string  `json:"series"`
		Date          string  `json:"date"`
		Outcome       string  `json:"outcome"`
		WinningBucket string  `json:"winning_bucket"`
		ActualTemp    float64 `json:"actual_temp"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Series == "" && req.Date == "" && req.Outcome == "" {
		s.engine.Settle(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	if req.Series == "" || req.Date == "" || req.Outcome == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "series, date and outcome are required"})
		return
	}
	if err := s.engine.RecordSettlement(c.Request.Context(), req.Series, req.Date, req.Outcome, req.WinningBucket, req.ActualTemp); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "series": req.Series, "date": req.Date})
}

func (s *Server) handleExport(c *gin.Context) {
	var req struct {
		Tag string `json:"tag"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Tag == "" {
		req.Tag = s.now().Format("2006-01-02")
	}
	if err := s.book.Export(c.Request.Context(), s.persist, req.Tag); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "tag": req.Tag})
}

// handleReset drops every stored leg and the cached forecasts, so the
// next pass starts from a clean slate. The ledger is append-only
// history and is left alone.
func (s *Server) handleReset(c *gin.Context) {
	if err := s.legs.Reset(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.engine.RefreshForecasts()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
