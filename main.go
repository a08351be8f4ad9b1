package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"game-night-server/config"
	"game-night-server/handlers"
	"game-night-server/middleware"
	"game-night-server/models"
	"game-night-server/services"
	"game-night-server/utils"
	"game-night-server/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("❌ invalid configuration")
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("❌ invalid logger configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	if err := db.AutoMigrate(
		&models.MiniGame{},
		&models.KniffelGameRecord{},
		&models.KniffelScoreRecord{},
		&models.OlympiadeRecord{},
		&models.OlympiadePlayerRecord{},
		&models.OlympiadeResultRecord{},
	); err != nil {
		logger.WithError(err).Fatal("failed to migrate database")
	}

	gameService := services.NewGameService(db, logger)
	if _, err := gameService.EnsureSeedGames(ctx, cfg.SeedGames); err != nil {
		logger.WithError(err).Fatal("failed to seed mini-games")
	}

	// 🗄️ Optional R2 archive of finished sessions
	var archiver services.Archiver
	if cfg.R2.Enabled() {
		r2, err := utils.NewR2Archiver(ctx, utils.R2Options{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			AccessKeySecret: cfg.R2.AccessKeySecret,
			Bucket:          cfg.R2.Bucket,
			CDNBaseURL:      cfg.R2.CDNBaseURL,
			Prefix:          cfg.R2.Prefix,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to initialize R2 client")
		}
		archiver = r2
	} else {
		logger.Info("⚠️  R2 not configured, history is kept in Postgres only")
	}

	historyService := services.NewHistoryService(db, archiver, logger)
	historyWorker := workers.NewHistoryWorker(historyService, cfg.HistoryQueueSize, logger)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		historyWorker.Run(ctx)
	}()

	// 📝 Optional Redis action log
	var actions services.ActionRecorder = services.NoopActionLog{}
	if cfg.RedisURL != "" {
		actionLog, err := services.NewRedisActionLog(cfg.RedisURL, cfg.ActionLogKey, logger)
		if err != nil {
			logger.WithError(err).Fatal("invalid REDIS_URL")
		}
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := actionLog.Ping(pingCtx); err != nil {
			logger.WithError(err).Warn("⚠️  redis unreachable, actions will not be published")
		} else {
			actions = actionLog
			logger.WithField("key", cfg.ActionLogKey).Info("✅ action log publishing to redis")
		}
		cancel()
		defer actionLog.Close()
	}

	scheduler, err := services.NewJobScheduler(logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to start scheduler")
	}

	hub := services.NewHub(cfg.SubscriberBuffer, logger)
	if err := scheduler.Every(cfg.HeartbeatInterval, "stream-heartbeat", hub.Heartbeat); err != nil {
		logger.WithError(err).Fatal("failed to schedule heartbeat")
	}

	kniffel := services.NewKniffelService(hub, services.NewSeededRoller(), actions, logger)
	olympiade := services.NewOlympiadeService(hub, scheduler, services.NewSeededRoller(), cfg.SpinDelay, actions, logger)
	coordinator := services.NewCoordinator(hub, services.NewSessionRegistry(), kniffel, olympiade, gameService, historyWorker, logger)

	app := fiber.New(fiber.Config{
		AppName:               "game-night-server",
		DisableStartupMessage: true,
	})
	app.Use(fiberrecover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, Cache-Control, " + middleware.HeaderConnectionID,
		ExposeHeaders: middleware.HeaderConnectionID,
		MaxAge:        86400,
	}))
	app.Use(middleware.RequestLogMiddleware(logger))

	handlers.SetupEventRoutes(app, coordinator)
	handlers.SetupKniffelRoutes(app, coordinator, logger)
	handlers.SetupOlympiadeRoutes(app, coordinator, logger)
	handlers.SetupGameRoutes(app, gameService, historyService)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.WithError(err).Error("server error")
			stop()
		}
	}()

	logger.WithFields(logrus.Fields{
		"port":       cfg.Port,
		"spin_delay": cfg.SpinDelay,
		"origins":    cfg.AllowedOrigins,
	}).Info("✅ game night server running")

	<-ctx.Done()
	logger.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		logger.WithError(err).Warn("server shutdown")
	}
	scheduler.Shutdown()
	<-workerDone
	logger.Info("bye")
}
