// Package httpapi exposes the Research Orchestration Core over HTTP:
// a blocking JSON endpoint and a Server-Sent Events endpoint that streams
// the Orchestrator's Event stream directly to the caller, plus the
// standard /health and /metrics surfaces. Grounded on the teacher's
// internal/api/server.go (gin.Engine, middleware chain, graceful
// http.Server shutdown), generalized from ACMG/AMP variant-interpretation
// routes to the single research_question operation.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/litagent/research-core/internal/config"
	"github.com/litagent/research-core/internal/domain"
	"github.com/litagent/research-core/internal/middleware"
	"github.com/litagent/research-core/internal/research/orchestrator"
	"github.com/litagent/research-core/internal/wiring"
)

// Server is the HTTP/SSE surface over the research pipeline.
type Server struct {
	configManager *config.Manager
	components    *wiring.Components
	router        *gin.Engine
	httpServer    *http.Server
}

// NewServer builds the gin router and wires it to a freshly-built set of
// research components.
func NewServer(configManager *config.Manager) (*Server, error) {
	components, err := wiring.Build(configManager)
	if err != nil {
		return nil, fmt.Errorf("failed to wire research components: %w", err)
	}
	return newServerWithComponents(configManager, components), nil
}

// newServerWithComponents builds the router around an already-assembled set
// of components, letting tests substitute scripted providers/chat backends
// without wiring.Build's real network-backed clients.
func newServerWithComponents(configManager *config.Manager, components *wiring.Components) *Server {
	cfg := configManager.GetConfig()
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger())

	server := &Server{
		configManager: configManager,
		components:    components,
		router:        router,
	}
	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", gin.WrapF(s.components.Health.GetHTTPHandler()))
	s.router.GET("/metrics", gin.WrapH(s.components.Metrics.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/research", s.handleResearch)
		v1.GET("/research/stream", s.handleResearchStream)
	}
}

type researchRequest struct {
	Question      string `json:"question" binding:"required"`
	MaxIterations int    `json:"max_iterations"`
}

// handleResearch runs the Orchestrator to completion and returns the final
// Report as a single JSON response.
func (s *Server) handleResearch(c *gin.Context) {
	var req researchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events := s.components.Orchestrator.RunWithOptions(c.Request.Context(), req.Question, orchestrator.RunOptions{MaxIterations: req.MaxIterations})

	var report domain.Report
	var haveReport bool
	for event := range events {
		if event.Type == domain.EventComplete {
			if r, ok := event.Data["report"].(domain.Report); ok {
				report = r
				haveReport = true
			}
		}
		if event.Type == domain.EventError {
			c.JSON(http.StatusInternalServerError, gin.H{"error": event.Message})
			return
		}
	}

	if !haveReport {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "research run ended without producing a report"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// handleResearchStream streams every Orchestrator Event as it happens over
// Server-Sent Events, terminating the stream after the complete/error event.
func (s *Server) handleResearchStream(c *gin.Context) {
	question := c.Query("question")
	if question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question query parameter is required"})
		return
	}
	var maxIterations int
	if raw := c.Query("max_iterations"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			maxIterations = parsed
		}
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	events := s.components.Orchestrator.RunWithOptions(c.Request.Context(), question, orchestrator.RunOptions{MaxIterations: maxIterations})

	c.Stream(func(w io.Writer) bool {
		event, ok := <-events
		if !ok {
			return false
		}

		payload, err := json.Marshal(event)
		if err != nil {
			return false
		}

		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
		c.Writer.Flush()

		return event.Type != domain.EventComplete && event.Type != domain.EventError
	})
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.components.Health.Start()
	defer s.components.Health.Stop()

	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("research API server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
