package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fundpilot/config"
	"fundpilot/risk"
	"fundpilot/store"
)

// Server is the read-only HTTP surface of the long-lived bot process:
// state inspection plus prometheus metrics. All mutation goes through
// the CLI.
type Server struct {
	cfg   *config.Config
	store *store.Store
}

// NewServer builds the API server.
func NewServer(cfg *config.Config, s *store.Store) *Server {
	return &Server{cfg: cfg, store: s}
}

// Router assembles the gin handler.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	r.GET("/api/portfolio", s.handlePortfolio)
	r.GET("/api/decisions", s.handleDecisions)
	r.GET("/api/performance", s.handlePerformance)
	r.GET("/api/knowledge", s.handleKnowledge)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	return s.Router().Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	total, validated, err := s.store.ValidationCounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"signals_total":     total,
		"signals_validated": validated,
	})
}

func (s *Server) handlePortfolio(c *gin.Context) {
	holdings, err := s.store.Holdings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	cash, ok := s.store.LatestCash()
	if !ok {
		cash = s.cfg.CurrentCash
	}

	var holdingValues []risk.HoldingValue
	invested := 0.0
	for _, h := range holdings {
		invested += h.Value()
		holdingValues = append(holdingValues, risk.HoldingValue{
			FundCode: h.FundCode,
			Category: s.store.FundCategory(h.FundCode),
			Value:    h.Value(),
		})
	}
	allocation := risk.ComputeCurrentAllocation(holdingValues, cash)

	c.JSON(http.StatusOK, gin.H{
		"cash":       cash,
		"invested":   invested,
		"total":      cash + invested,
		"holdings":   holdings,
		"allocation": allocation,
	})
}

func (s *Server) handleDecisions(c *gin.Context) {
	decisions, err := s.store.RecentDecisions(10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, decisions)
}

func (s *Server) handlePerformance(c *gin.Context) {
	perf, err := s.store.AllPerformance()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, perf)
}

func (s *Server) handleKnowledge(c *gin.Context) {
	lessons, err := s.store.ActiveKnowledge()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, lessons)
}
