package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dukerupert/nag/internal/backup"
	"github.com/dukerupert/nag/internal/database"
	"github.com/dukerupert/nag/internal/logging"
	"github.com/dukerupert/nag/internal/server"
	"github.com/dukerupert/nag/internal/tunnel"
)

func main() {
	logger := logging.Setup(os.Getenv("NAG_LOG_LEVEL"))

	port := envStr("NAG_PORT", "8080")
	dbPath := envStr("NAG_DB_PATH", "nag.db")

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	cfg := server.Config{
		Port: port,

		AuthEnabled:      envBool("NAG_AUTH_ENABLED", false),
		OIDCIssuerURL:    os.Getenv("NAG_OIDC_ISSUER_URL"),
		OIDCClientID:     os.Getenv("NAG_OIDC_CLIENT_ID"),
		OIDCClientSecret: os.Getenv("NAG_OIDC_CLIENT_SECRET"),
		OIDCRedirectURL:  os.Getenv("NAG_OIDC_REDIRECT_URL"),
		OIDCJWKSURL:      envStr("NAG_OIDC_JWKS_URL", os.Getenv("NAG_OIDC_ISSUER_URL")+"/.well-known/jwks.json"),

		NotificationsEnabled: envBool("NAG_NOTIFICATIONS_ENABLED", true),
		PollInterval:         envSeconds("NAG_NOTIFICATION_POLL_INTERVAL_SECONDS", 60),
		DispatchInterval:     envSeconds("NAG_NOTIFICATION_DISPATCH_INTERVAL_SECONDS", 15),
		MaxAttempts:          envInt("NAG_NOTIFICATION_MAX_ATTEMPTS", 5),
		BatchSize:            envInt("NAG_NOTIFICATION_BATCH_SIZE", 50),

		TelegramToken:     os.Getenv("NAG_CHANNEL_TELEGRAM_TOKEN"),
		TelegramRecipient: os.Getenv("NAG_CHANNEL_TELEGRAM_RECIPIENT"),
		TelegramSecret:    os.Getenv("NAG_CHANNEL_TELEGRAM_WEBHOOK_SECRET"),

		WebpushVAPIDPublicKey:  os.Getenv("NAG_CHANNEL_WEBPUSH_VAPID_PUBLIC_KEY"),
		WebpushVAPIDPrivateKey: os.Getenv("NAG_CHANNEL_WEBPUSH_VAPID_PRIVATE_KEY"),
		WebpushSecret:          os.Getenv("NAG_CHANNEL_WEBPUSH_CALLBACK_SECRET"),
		WebpushRecipient:       os.Getenv("NAG_CHANNEL_WEBPUSH_RECIPIENT"),

		Backup: backup.Config{
			S3: backup.S3Config{
				Endpoint:  os.Getenv("NAG_BACKUP_S3_ENDPOINT"),
				Bucket:    os.Getenv("NAG_BACKUP_S3_BUCKET"),
				Region:    envStr("NAG_BACKUP_S3_REGION", "auto"),
				AccessKey: os.Getenv("NAG_BACKUP_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("NAG_BACKUP_S3_SECRET_KEY"),
			},
			DBPath:        dbPath,
			ScheduleHour:  envInt("NAG_BACKUP_SCHEDULE_HOUR", -1),
			RetentionDays: envInt("NAG_BACKUP_RETENTION_DAYS", 30),
		},

		Tunnel: tunnel.Config{
			Token:    os.Getenv("NAG_TUNNEL_TOKEN"),
			Enabled:  envBool("NAG_TUNNEL_ENABLED", false),
			LocalURL: "http://localhost:" + port,
		},
	}

	srv := server.New(db, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if mat := srv.Materializer(); mat != nil {
		mat.Start(ctx)
		defer mat.Stop()
	}
	if disp := srv.Dispatcher(); disp != nil {
		disp.Start(ctx)
		defer disp.Stop()
	}
	srv.BackupManager().Start(ctx)
	defer srv.BackupManager().Stop()
	if cfg.Tunnel.Enabled {
		if err := srv.TunnelManager().Start(ctx); err != nil {
			logger.Error("tunnel start failed", "error", err)
		}
		defer srv.TunnelManager().Stop()
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Nag running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}
