package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"sim-portal/project-portal/project-portal-backend/internal/config"
	"sim-portal/project-portal/project-portal-backend/internal/database"
	"sim-portal/project-portal/project-portal-backend/internal/notifications"
	"sim-portal/project-portal/project-portal-backend/internal/projects"
	"sim-portal/project-portal/project-portal-backend/internal/reports"
	"sim-portal/project-portal/project-portal-backend/internal/sweeper"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	once := flag.Bool("once", false, "run one sweep and one audit, then exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Connect to database
	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Connected to database")

	publishers := []notifications.Publisher{notifications.NewLogPublisher(logger)}
	if cfg.Events.SNSEnabled {
		snsPublisher, err := notifications.NewSNSPublisherFromEnv(context.Background(), cfg.Events.AWSRegion, cfg.Events.SNSTopicARN)
		if err != nil {
			logger.Fatal("Failed to configure SNS publisher", zap.Error(err))
		}
		publishers = append(publishers, snsPublisher)
	}
	events := notifications.NewDispatcher(logger, cfg.Events.PublishTimeout, publishers...)
	defer events.Wait()

	repo := projects.NewRepository(db.Gorm)
	engine := projects.NewEngine(db.Gorm, repo, events, logger)
	auditor := projects.NewLedgerAuditor(db.SQL, logger)
	sw := sweeper.New(repo, engine, events, cfg.Sweeper.Location(), logger)

	schedCfg := sweeper.SchedulerConfig{Location: cfg.Sweeper.Location()}
	if cfg.Sweeper.Enabled {
		schedCfg.SweepSchedule = cfg.Sweeper.Schedule
	}
	if cfg.Audit.Enabled {
		schedCfg.AuditSchedule = cfg.Audit.Schedule
	}
	if cfg.Audit.ArchiveBucket != "" {
		archiver, err := reports.NewAuditArchiverFromEnv(context.Background(), cfg.Events.AWSRegion, cfg.Audit.ArchiveBucket, cfg.Audit.ArchivePrefix)
		if err != nil {
			logger.Fatal("Failed to configure audit archive", zap.Error(err))
		}
		schedCfg.AuditSink = archiver
	}
	scheduler, err := sweeper.NewScheduler(sw, auditor, logger, schedCfg)
	if err != nil {
		logger.Fatal("Failed to create scheduler", zap.Error(err))
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		result, err := scheduler.RunSweep(ctx)
		if err != nil {
			logger.Fatal("Sweep failed", zap.Error(err))
		}
		report, err := scheduler.RunAudit(ctx)
		if err != nil {
			logger.Fatal("Audit failed", zap.Error(err))
		}
		logger.Info("Single run complete",
			zap.Int("expired", result.ExpiredCount),
			zap.Int("failures", len(result.Failures)),
			zap.Bool("ledger_clean", report.Clean()))
		return
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := scheduler.Start(ctx); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}
	logger.Info("Deadline worker started",
		zap.String("sweep_schedule", schedCfg.SweepSchedule),
		zap.String("audit_schedule", schedCfg.AuditSchedule),
		zap.String("timezone", cfg.Sweeper.Timezone))

	<-sigChan
	logger.Info("Shutdown signal received")
	cancel()
	scheduler.Stop()

	logger.Info("Deadline worker stopped")
}
