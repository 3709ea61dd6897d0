package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"fanpass/internal/cache"
	"fanpass/internal/config"
	"fanpass/internal/database"
	"fanpass/internal/external"
	"fanpass/internal/handlers"
	"fanpass/internal/logger"
	"fanpass/internal/messaging"
	"fanpass/internal/middleware"
	"fanpass/internal/repository"
	"fanpass/internal/search"
	"fanpass/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	serviceName         = "fanpass-api"
	backendCheckTimeout = 2 * time.Second
)

// Server представляет HTTP сервер API
type Server struct {
	router     *gin.Engine
	config     *config.Config
	db         *database.DB
	nats       *messaging.NATSClient
	valkey     *cache.ValkeyClient
	handlers   *handlers.Handlers
	limiter    *middleware.RateLimiter
	httpServer *http.Server

	// необязательные бэкенды: видны в /health, но не меняют код ответа
	backends map[string]func(context.Context) error
}

// NewServer подключает зависимости и собирает роутер. Кеш и поиск
// необязательны: при ошибке подключения сервер работает без них.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, err
	}

	var valkeyClient *cache.ValkeyClient
	var earningsCache service.EarningsCache
	if cfg.Cache.Enabled {
		valkeyClient, err = cache.NewValkeyClient(cfg.Cache)
		if err != nil {
			slog.Warn("Valkey unavailable, earnings are read from the database", "error", err)
		} else {
			earningsCache = valkeyClient
		}
	}

	var searcher handlers.PaymentSearcher
	var searchHealth func(context.Context) error
	if cfg.Elasticsearch.Enabled {
		esClient, err := search.NewElasticsearchClient(ctx, cfg.Elasticsearch)
		if err != nil {
			slog.Warn("Elasticsearch unavailable, admin search disabled", "error", err)
		} else {
			searcher = esClient
			searchHealth = esClient.HealthCheck
		}
	}

	paypal := external.NewPaypalClient(cfg.Paypal)
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, paypal, natsClient, earningsCache, cfg.FrontendURL)

	h := handlers.NewHandlers(handlers.Options{
		Orders:             services.Orders,
		Reconciler:         services.Reconciler,
		Earnings:           services.Earnings,
		Search:             searcher,
		Verifier:           paypal,
		CompleteOnApproval: cfg.CompleteOnApproval,
	})

	server := newServer(cfg, db, h)
	server.nats = natsClient
	server.valkey = valkeyClient
	if earningsCache != nil {
		server.backends["cache"] = valkeyClient.Ping
	}
	if searchHealth != nil {
		server.backends["search"] = searchHealth
	}
	go server.limiter.Cleanup(ctx)

	return server, nil
}

func newServer(cfg *config.Config, db *database.DB, h *handlers.Handlers) *Server {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS())

	server := &Server{
		router:   router,
		config:   cfg,
		db:       db,
		handlers: h,
		limiter:  middleware.NewRateLimiter(cfg.OrderRateLimit.RPS, cfg.OrderRateLimit.Burst, cfg.OrderRateLimit.TTL),
		backends: map[string]func(context.Context) error{},
	}
	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.RequestTimeout(),
		WriteTimeout: cfg.RequestTimeout(),
	}

	return server
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes() {
	h := s.handlers

	api := s.router.Group("/api")
	{
		orders := api.Group("", middleware.RateLimit(s.limiter))
		{
			orders.POST("/orders", h.CreateOrder)
			orders.POST("/create-paypal-order", h.CreateOrder)
		}

		s.webhookRoutes(api, "/webhooks/paypal")
		s.webhookRoutes(api, "/paypal-webhook")

		api.GET("/users/:id/earnings", h.GetEarnings)

		admin := api.Group("/admin", middleware.AdminToken(s.config.AdminToken))
		{
			admin.GET("/payments", h.SearchPayments)
		}
	}

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) webhookRoutes(group *gin.RouterGroup, path string) {
	group.POST(path, s.handlers.ReceivePaymentWebhook)
	group.OPTIONS(path, s.handlers.WebhookPreflight)
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		group.Handle(method, path, handlers.MethodNotAllowed)
	}
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	dbHealth := s.db.HealthCheck(ctx)

	status, code := "ok", http.StatusOK
	if dbHealth.Status != "healthy" {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	body := gin.H{
		"status":   status,
		"service":  serviceName,
		"version":  s.config.Tracing.Version,
		"database": dbHealth,
	}

	for name, check := range s.backends {
		checkCtx, cancel := context.WithTimeout(ctx, backendCheckTimeout)
		err := check(checkCtx)
		cancel()

		if err != nil {
			logger.WithContext(ctx).Warn("Backend health check failed", "backend", name, "error", err)
			body[name] = "unhealthy"
			continue
		}
		body[name] = "healthy"
	}

	c.JSON(code, body)
}

// Run запускает HTTP сервер и блокируется до Shutdown
func (s *Server) Run() error {
	slog.Info("Starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown дожидается завершения активных запросов
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			slog.Error("Error closing Valkey connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
