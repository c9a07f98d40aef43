package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sim-portal/project-portal/project-portal-backend/internal/auth"
	"sim-portal/project-portal/project-portal-backend/internal/config"
	"sim-portal/project-portal/project-portal-backend/internal/database"
	"sim-portal/project-portal/project-portal-backend/internal/notifications"
	"sim-portal/project-portal/project-portal-backend/internal/notifications/websocket"
	"sim-portal/project-portal/project-portal-backend/internal/projects"
	"sim-portal/project-portal/project-portal-backend/internal/reports"
	"sim-portal/project-portal/project-portal-backend/internal/requests"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	// Initialize logger
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Connect to database
	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		models := append(projects.Models(), requests.Models()...)
		if err := database.Migrate(db.Gorm, models...); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	// Event sinks
	var publishers []notifications.Publisher
	if cfg.Events.LogEvents {
		publishers = append(publishers, notifications.NewLogPublisher(logger))
	}
	if cfg.Events.SNSEnabled {
		snsPublisher, err := notifications.NewSNSPublisherFromEnv(context.Background(), cfg.Events.AWSRegion, cfg.Events.SNSTopicARN)
		if err != nil {
			logger.Fatal("Failed to configure SNS publisher", zap.Error(err))
		}
		publishers = append(publishers, snsPublisher)
	}
	var stream *websocket.Manager
	if cfg.Events.WebSocket {
		stream = websocket.NewManager(logger)
		publishers = append(publishers, stream)
	}
	events := notifications.NewDispatcher(logger, cfg.Events.PublishTimeout, publishers...)

	// Core
	projectRepo := projects.NewRepository(db.Gorm)
	engine := projects.NewEngine(db.Gorm, projectRepo, events, logger)
	ledger := projects.NewLedger(db.Gorm, projectRepo, events, logger)
	projectService := projects.NewProjectService(db.Gorm, projectRepo, logger)
	auditor := projects.NewLedgerAuditor(db.SQL, logger)
	coordinator := requests.NewCoordinator(db.Gorm, requests.NewRepository(db.Gorm), projectRepo, ledger, events, logger)

	projectHandler := projects.NewHandler(projectService, engine, ledger, auditor, logger)
	requestHandler := requests.NewHandler(coordinator, logger)
	reportHandler := reports.NewHandler(reports.NewStatementService(projectRepo, logger), logger)

	authn := auth.NewMiddleware(cfg.Auth.TokenSecret)

	// Setup Router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api/v1")
	{
		auth.RegisterRoutes(api, authn)
		projectHandler.RegisterRoutes(api, authn)
		requestHandler.RegisterRoutes(api, authn)
		reportHandler.RegisterRoutes(api, authn)
		if stream != nil {
			stream.RegisterRoutes(api, authn)
		}
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if err := db.SQL.PingContext(c.Request.Context()); err != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr), zap.String("driver", cfg.Database.Driver))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if stream != nil {
		stream.Close()
	}
	events.Wait()

	logger.Info("Server exiting")
}
