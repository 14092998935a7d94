package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cadenza-app/cadenza/internal/backup"
	"github.com/cadenza-app/cadenza/internal/cache"
	"github.com/cadenza-app/cadenza/internal/config"
	"github.com/cadenza-app/cadenza/internal/database"
	"github.com/cadenza-app/cadenza/internal/docstore"
	"github.com/cadenza-app/cadenza/internal/email"
	"github.com/cadenza-app/cadenza/internal/horizon"
	"github.com/cadenza-app/cadenza/internal/logging"
	"github.com/cadenza-app/cadenza/internal/push"
	"github.com/cadenza-app/cadenza/internal/series"
	"github.com/cadenza-app/cadenza/internal/server"
	"github.com/cadenza-app/cadenza/internal/store"
	"github.com/cadenza-app/cadenza/internal/websocket"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	hub := websocket.NewHub(logger)
	feedCache := cache.New(time.Duration(cfg.Feed.CacheTTLSeconds) * time.Second)

	pushService := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
	notifier := push.NewNotifier(pushService, store.NewPushStore(db), store.NewAssignmentStore(db), logger)
	emailClient := email.NewClient(cfg.PostmarkToken, cfg.Email.From, cfg.Server.BaseURL)

	storageCfg := backup.S3Config{
		Endpoint:  cfg.Storage.Endpoint,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
	}
	storage := docstore.New(storageCfg)

	materializer := series.NewMaterializer(db, logger, series.Hooks{
		EventCancelled: notifier.EventCancelled,
	})

	srv := server.New(db, cfg, server.Deps{
		Materializer: materializer,
		Notifier:     notifier,
		PushService:  pushService,
		Email:        emailClient,
		Storage:      storage,
		FeedCache:    feedCache,
		Hub:          hub,
	}, logger)

	scheduler, err := horizon.NewScheduler(db, materializer, cfg.Feed.ExtendCron, cfg.Feed.HorizonDays, logger)
	if err != nil {
		logger.Error("horizon scheduler", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	backupMgr := backup.NewManager(backup.Config{
		S3:            storageCfg,
		DBPath:        cfg.DBPath,
		Passphrase:    cfg.BackupPassphrase,
		ScheduleHour:  cfg.Backup.ScheduleHour,
		RetentionDays: cfg.Backup.RetentionDays,
	}, db, logger)
	backupMgr.Start(context.Background())
	defer backupMgr.Stop()

	httpServer := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("cadenza listening", "addr", cfg.Server.Listen, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
