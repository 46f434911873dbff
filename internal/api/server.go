// Package api is the order desk: the HTTP and push endpoints kiosks talk to,
// plus the admin surface used at the counter.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"kiosk/internal/analyzer"
	"kiosk/internal/bus"
	"kiosk/internal/config"
	"kiosk/internal/database"
	"kiosk/internal/idempotency"
	"kiosk/internal/logging"
	"kiosk/internal/models"
	"kiosk/internal/monitoring"
	"kiosk/internal/tts"
)

// ChatAnalyzer answers small talk
type ChatAnalyzer interface {
	Chat(ctx context.Context, text string) models.ChatResponse
}

// Store is the order storage used by the handlers
type Store interface {
	CreateOrders(lines []models.OrderLine) ([]models.Order, error)
	UpdateStatus(number string, status models.OrderStatus) (int64, error)
	ListOrders(status string) ([]models.Order, error)
	TopDrinks(since time.Time, limit int) ([]database.DrinkCount, error)
	Ping() error
}

// Deps are the collaborators of the order desk
type Deps struct {
	Config   config.ServerConfig
	Defaults models.Defaults
	Menu     *models.Menu
	Store    Store
	Orders   analyzer.OrderAnalyzer
	Chat     ChatAnalyzer
	Guard    idempotency.Guard
	Bus      bus.Bus
	Speech   tts.Provider
	Metrics  *monitoring.Metrics
	Logger   logrus.FieldLogger
}

// Server represents the order desk HTTP API
type Server struct {
	router  *gin.Engine
	cfg     config.ServerConfig
	deps    Deps
	hub     *Hub
	monitor *monitoring.Monitor
	logger  logrus.FieldLogger
	now     func() time.Time
}

// NewServer creates the order desk and configures its routes
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Menu == nil {
		deps.Menu = models.DefaultMenu()
	}
	if deps.Guard == nil {
		deps.Guard = idempotency.NewMemoryGuard()
	}
	if deps.Bus == nil {
		deps.Bus = bus.NewMemory(deps.Logger)
	}
	if deps.Speech == nil {
		deps.Speech = tts.Disabled{}
	}
	if deps.Metrics == nil {
		deps.Metrics = monitoring.NewMetrics()
	}
	if deps.Orders == nil {
		deps.Orders = analyzer.NewKeywordAnalyzer(deps.Menu, deps.Defaults)
	}
	if deps.Chat == nil {
		deps.Chat = analyzer.NewChatAnalyzer(nil, deps.Orders, deps.Logger)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(deps.Logger), deps.Metrics.Middleware())

	s := &Server{
		router:  router,
		cfg:     deps.Config,
		deps:    deps,
		hub:     NewHub(deps.Logger, deps.Metrics),
		monitor: monitoring.NewMonitor(),
		logger:  deps.Logger,
		now:     time.Now,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/menu", s.handleMenu)

	s.router.POST("/analyze_text", s.handleAnalyzeText)
	s.router.POST("/analyze_chat", s.handleAnalyzeChat)
	s.router.POST("/confirm_order", s.handleConfirmOrder)
	s.router.GET("/monthly_top_drinks", s.handleTopDrinks)

	s.router.POST("/api/get_speech", s.handleGetSpeech)
	if s.cfg.AudioDir != "" {
		s.router.Static("/temp_audio", s.cfg.AudioDir)
	}

	s.router.GET("/ws", s.hub.ServeWS)

	s.router.POST("/admin/login", s.handleLogin)
	admin := s.router.Group("/admin/api", AuthMiddleware(s.cfg.JWTSecret))
	{
		admin.GET("/orders", s.handleListOrders)
		admin.PUT("/orders/:number/status", s.handleUpdateStatus)
		admin.GET("/stats", s.handleStats)
	}
}

// Router returns the Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Hub returns the push hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run relays status events to the kiosks until ctx ends
func (s *Server) Run(ctx context.Context) error {
	defer s.hub.Close()
	return s.hub.Relay(ctx, s.deps.Bus)
}

func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	}
}
