package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"

	"kiosk/internal/analyzer"
	"kiosk/internal/api"
	"kiosk/internal/bus"
	"kiosk/internal/config"
	"kiosk/internal/database"
	"kiosk/internal/idempotency"
	"kiosk/internal/logging"
	"kiosk/internal/models"
	"kiosk/internal/monitoring"
	"kiosk/internal/tts"
)

var (
	port        = flag.Int("port", 0, "API server port (overrides config)")
	metricsPort = flag.Int("metrics-port", 0, "Metrics server port (overrides config)")
	configFile  = flag.String("config", "configs/config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *metricsPort != 0 {
		cfg.Metrics.Port = *metricsPort
	}

	logger := logging.New(cfg.Log)
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("order desk stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	store, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	menu := models.DefaultMenu()
	defaults := cfg.Session.Defaults

	model, err := initializeLLM(cfg.LLM)
	if err != nil {
		return err
	}
	var orders analyzer.OrderAnalyzer = analyzer.NewKeywordAnalyzer(menu, defaults)
	if model != nil {
		orders = analyzer.NewLLMAnalyzer(model, menu, defaults, logger.WithField("component", "analyzer"))
		logger.WithField("model", cfg.LLM.Model).Info("language model enabled")
	} else {
		logger.Info("no language model configured, using keyword analysis")
	}
	chat := analyzer.NewChatAnalyzer(model, orders, logger.WithField("component", "chat"))

	statusBus, err := bus.New(cfg.Bus, logger.WithField("component", "bus"))
	if err != nil {
		return err
	}
	defer statusBus.Close()

	guard, err := initializeGuard(ctx, cfg.Idempotency)
	if err != nil {
		return err
	}

	speech, err := initializeSpeech(cfg, logger)
	if err != nil {
		return err
	}

	metrics := monitoring.NewMetrics()
	server := api.NewServer(api.Deps{
		Config:   cfg.Server,
		Defaults: defaults,
		Menu:     menu,
		Store:    store,
		Orders:   orders,
		Chat:     chat,
		Guard:    guard,
		Bus:      statusBus,
		Speech:   speech,
		Metrics:  metrics,
		Logger:   logger,
	})

	go func() {
		if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("status relay stopped")
		}
	}()

	if cfg.Metrics.Enabled {
		go startMetricsServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path, metrics, logger)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router(),
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down servers...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("API server shutdown error")
		}
	}()

	logger.WithField("port", cfg.Server.Port).Info("Starting order desk")
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// initializeLLM returns nil when no API key is configured
func initializeLLM(cfg config.LLMConfig) (llms.Model, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	llm, err := analyzer.NewOpenAI(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return llm, nil
}

func initializeGuard(ctx context.Context, cfg config.IdempotencyConfig) (idempotency.Guard, error) {
	if cfg.Kind != "redis" {
		return idempotency.NewMemoryGuard(), nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	return idempotency.NewRedisGuard(client), nil
}

func initializeSpeech(cfg *config.Config, logger *logrus.Logger) (tts.Provider, error) {
	if cfg.Speech.AzureKey == "" {
		logger.Info("speech synthesis disabled")
		return tts.Disabled{}, nil
	}
	return tts.NewAzureProvider(cfg.Speech.AzureKey, cfg.Speech.AzureRegion, cfg.Server.AudioDir,
		tts.WithLogger(logger.WithField("component", "tts")))
}

func startMetricsServer(ctx context.Context, port int, path string, metrics *monitoring.Metrics, logger logrus.FieldLogger) {
	metricsRouter := gin.New()
	metricsRouter.GET(path, gin.WrapH(metrics.Handler()))

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: metricsRouter,
	}
	go func() {
		<-ctx.Done()
		metricsServer.Close()
	}()

	logger.WithField("port", port).Info("Starting metrics server")
	if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
		logger.WithError(err).Error("Metrics server error")
	}
}
