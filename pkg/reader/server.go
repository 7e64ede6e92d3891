package reader

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/satyrpress/satyr/pkg/models"
)

// Pinger is the liveness surface the health endpoint checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes editions over HTTP.
type Server struct {
	selector *Selector
	db       Pinger
	log      *slog.Logger
}

// NewServer wires the HTTP layer over a selector.
func NewServer(selector *Selector, db Pinger) *Server {
	return &Server{
		selector: selector,
		db:       db,
		log:      slog.With("component", "server"),
	}
}

// Handler builds the gin router. Release mode unless GIN_MODE overrides.
func (s *Server) Handler() http.Handler {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog(), cors())

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/today", s.today)
	r.GET("/:day", s.byDay)
	r.GET("/:day/:slug", s.byDay)

	return r
}

func (s *Server) today(c *gin.Context) {
	s.serve(c, Params{})
}

func (s *Server) byDay(c *gin.Context) {
	day := c.Param("day")
	if !models.ValidDayKey(day) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "day must be an 8-digit YYYYMMDD key"})
		return
	}
	s.serve(c, Params{Day: day, Slug: c.Param("slug")})
}

func (s *Server) serve(c *gin.Context, p Params) {
	p.Query = c.Query("q")
	p.Seen = parseSeen(c.Query("seen"))

	edition, err := s.selector.Edition(c.Request.Context(), p)
	if err != nil {
		s.log.Error("Failed to assemble edition", "day", p.Day, "slug", p.Slug, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to assemble edition"})
		return
	}
	c.JSON(http.StatusOK, edition)
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// parseSeen splits the comma-separated seen parameter into a lookup set.
func parseSeen(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	seen := make(map[string]bool)
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			seen[id] = true
		}
	}
	return seen
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("Request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// cors allows the static frontend, wherever it is hosted, to read the API.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
