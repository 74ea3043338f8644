package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"agriquest/config"
	"agriquest/handlers"
	"agriquest/services"
	"agriquest/utils"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := services.OpenDatabase(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	if err := services.Migrate(db); err != nil {
		logger.Fatal("database", zap.Error(err))
	}

	var uploader services.ImageUploader
	if cfg.UploadsEnabled() {
		client, err := utils.NewR2Client(ctx, utils.R2Settings{
			AccountID:       cfg.AccountID,
			AccessKeyID:     cfg.AccessKeyID,
			AccessKeySecret: cfg.AccessKeySecret,
			Bucket:          cfg.EvidenceBucket,
			Endpoint:        cfg.R2Endpoint,
		})
		if err != nil {
			logger.Fatal("failed to initialize R2 client", zap.Error(err))
		}
		uploader = utils.NewEvidenceUploader(client, cfg.EvidenceBucket, cfg.PublicBaseURL())
	} else {
		logger.Warn("R2 credentials missing; submissions must carry an imageUrl")
	}

	profileService := services.NewProfileService(db, logger)
	evidenceService := services.NewEvidenceService(db, uploader, logger)

	sched, err := utils.NewScheduler(clockwork.NewRealClock(), logger)
	if err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}
	if _, err := evidenceService.SchedulePurge(ctx, sched, cfg.PurgeInterval, cfg.PurgeAfter); err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}
	sched.Start()

	app := handlers.NewApp(profileService, evidenceService, cfg.AdminKey, cfg.CORSOrigins, logger)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()
	logger.Info("✅ review authority listening",
		zap.String("port", cfg.Port),
		zap.Bool("uploads", uploader != nil),
		zap.Bool("admin", cfg.AdminKey != ""))

	<-ctx.Done()
	logger.Info("shutting down")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	if err := sched.Shutdown(); err != nil {
		logger.Warn("scheduler shutdown", zap.Error(err))
	}
}
