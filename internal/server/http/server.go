// Package http exposes the journal over HTTP: passphrase verification,
// encrypted entry CRUD, the memory surface, and the streaming chat endpoints
// (SSE and websocket). The passphrase travels in the X-Password header on
// every request and never appears in logs or responses.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"haven/internal/chat"
	"haven/internal/logging"
	"haven/internal/memory"
	"haven/internal/vault"
)

// Config holds the server's wiring options.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	DefaultModel string
	Debug        bool
}

// Server hosts the HTTP API over the vault, memory store, and chat session.
type Server struct {
	gate        *vault.Gate
	entries     *vault.EntryStore
	memories    *memory.Store
	session     *chat.Session
	suggestions *chat.Reconciler

	engine     *gin.Engine
	httpServer *http.Server
	metrics    *Metrics
	logger     logging.Logger

	defaultModel string
}

// NewServer assembles the router. The reconciler is shared across requests:
// suggestions surfaced by a chat stream stay pending until resolved through
// the suggestions endpoints.
func NewServer(cfg Config, gate *vault.Gate, entries *vault.EntryStore, memories *memory.Store, session *chat.Session) (*Server, error) {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics, err := NewMetrics(nil)
	if err != nil {
		return nil, err
	}

	s := &Server{
		gate:         gate,
		entries:      entries,
		memories:     memories,
		session:      session,
		suggestions:  chat.NewReconciler(memories),
		metrics:      metrics,
		logger:       logging.NewComponentLogger("HTTPServer"),
		defaultModel: cfg.DefaultModel,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(s.requestMetrics())

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 || (len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Password"}
	corsConfig.AllowWebSockets = true
	engine.Use(cors.New(corsConfig))

	s.engine = engine
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     engine,
		ReadTimeout: 30 * time.Second,
		// No write timeout: chat streams stay open as long as the model talks.
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")

	api.GET("/health", s.handleHealth)
	api.GET("/verify", s.handleVerify)

	api.GET("/files", s.handleListFiles)
	api.GET("/files/:name", s.handleReadFile)
	api.POST("/files/:name", s.handleWriteFile)
	api.DELETE("/files/:name", s.handleDeleteFile)

	api.GET("/memories", s.handleListMemories)
	api.POST("/memories", s.handleUpsertMemory)
	api.DELETE("/memories/:title", s.handleDeleteMemory)

	api.POST("/chat", s.handleChatSSE)
	api.GET("/chat/ws", s.handleChatWS)

	api.GET("/suggestions", s.handleListSuggestions)
	api.POST("/suggestions/:id/accept", s.handleAcceptSuggestion)
	api.POST("/suggestions/:id/dismiss", s.handleDismissSuggestion)

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
