package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dkellner/starnotify/internal/backup"
	"github.com/dkellner/starnotify/internal/database"
	"github.com/dkellner/starnotify/internal/logging"
	"github.com/dkellner/starnotify/internal/push"
	"github.com/dkellner/starnotify/internal/server"
	"github.com/dkellner/starnotify/internal/webhook"
)

func main() {
	// Missing .env is fine; plain environment variables work too.
	_ = godotenv.Load()

	logger := logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "starnotify.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	vapidPublic := os.Getenv("VAPID_PUBLIC_KEY")
	vapidPrivate := os.Getenv("VAPID_PRIVATE_KEY")
	if vapidPublic == "" || vapidPrivate == "" {
		vapidPublic, vapidPrivate, err = push.GenerateVAPIDKeys()
		if err != nil {
			logger.Error("generate VAPID keys", "error", err)
			os.Exit(1)
		}
		// Ephemeral keys invalidate existing subscriptions on restart, so
		// tell the operator to pin them.
		logger.Warn("VAPID keys not configured, generated a new pair; save these to .env",
			"VAPID_PUBLIC_KEY", vapidPublic,
			"VAPID_PRIVATE_KEY", vapidPrivate,
		)
	}

	vapidSubject := os.Getenv("VAPID_SUBJECT")
	if vapidSubject == "" {
		vapidSubject = "mailto:admin@example.com"
	}

	secret := os.Getenv("WEBHOOK_SECRET")
	if secret == "" {
		logger.Warn("WEBHOOK_SECRET not set; all webhook deliveries will be rejected")
	}

	whitelist, err := webhook.ParseWhitelist(os.Getenv("WEBHOOK_WHITELIST"))
	if err != nil {
		logger.Warn("invalid WEBHOOK_WHITELIST, no repositories allowed", "error", err)
	}
	if len(whitelist) == 0 {
		logger.Warn("webhook whitelist is empty; all repositories will be ignored")
	}

	srv := server.New(db, server.Config{
		VAPIDPublicKey:  vapidPublic,
		VAPIDPrivateKey: vapidPrivate,
		VAPIDSubject:    vapidSubject,
		WebhookSecret:   secret,
		Whitelist:       whitelist,
	}, logger)

	backupMgr := backup.NewManager(backupConfig(dbPath), db, logger.With("component", "backup"))
	ctx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()
	if backupMgr.Enabled() {
		backupMgr.Start(ctx)
		defer backupMgr.Stop()
	}

	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
				if n, err := srv.NotificationStore().Cleanup(notificationRetentionDays()); err != nil {
					logger.Error("cleanup notification log", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up old notification records", "count", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	httpServer := &http.Server{
		Addr:        ":" + port,
		Handler:     srv.Router(),
		ReadTimeout: 10 * time.Second,
		// Webhook dispatch fans out to every subscriber before responding,
		// so the write timeout must cover a full dispatch cycle.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starnotify listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func notificationRetentionDays() int {
	if days, err := strconv.Atoi(os.Getenv("NOTIFICATION_RETENTION_DAYS")); err == nil && days > 0 {
		return days
	}
	return 30
}

func backupConfig(dbPath string) backup.Config {
	intervalHours, _ := strconv.Atoi(os.Getenv("BACKUP_INTERVAL_HOURS"))
	retentionDays, _ := strconv.Atoi(os.Getenv("BACKUP_RETENTION_DAYS"))

	return backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("BACKUP_S3_ENDPOINT"),
			Bucket:    os.Getenv("BACKUP_S3_BUCKET"),
			Region:    os.Getenv("BACKUP_S3_REGION"),
			AccessKey: os.Getenv("BACKUP_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("BACKUP_S3_SECRET_KEY"),
		},
		DBPath:        dbPath,
		Passphrase:    os.Getenv("BACKUP_PASSPHRASE"),
		Interval:      time.Duration(intervalHours) * time.Hour,
		RetentionDays: retentionDays,
	}
}
