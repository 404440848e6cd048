package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/hearthquest/config"
	"github.com/dukerupert/hearthquest/internal/auth"
	"github.com/dukerupert/hearthquest/internal/backup"
	"github.com/dukerupert/hearthquest/internal/database"
	"github.com/dukerupert/hearthquest/internal/logging"
	"github.com/dukerupert/hearthquest/internal/push"
	"github.com/dukerupert/hearthquest/internal/server"
)

func main() {
	genKeys := flag.Bool("generate-vapid-keys", false, "print a fresh VAPID key pair and exit")
	flag.Parse()

	if *genKeys {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			log.Fatalf("failed to generate VAPID keys: %v", err)
		}
		fmt.Printf("HEARTHQUEST_PUSH_VAPID_PUBLIC_KEY=%s\nHEARTHQUEST_PUSH_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.Setup(cfg.Log.Level)

	db, err := database.Open(cfg.Server.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err, "path", cfg.Server.DBPath)
		os.Exit(1)
	}
	defer db.Close()

	issuer := auth.NewTokenIssuer(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL())

	backupCfg := backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.Endpoint,
			Bucket:    cfg.Backup.Bucket,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		},
		DBPath:     cfg.Server.DBPath,
		Passphrase: cfg.Backup.Passphrase,
		Interval:   cfg.Backup.Interval(),
	}

	pushCfg := push.Config{
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		Subscriber:      cfg.Push.Subscriber,
	}

	srv := server.New(db, issuer, backupCfg, pushCfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go srv.Hub().Run(ctx, srv.Feed())
	if n := srv.Notifier(); n != nil {
		n.Start(ctx)
		defer n.Stop()
	}
	if ps := srv.PushScheduler(); ps != nil {
		ps.Start(ctx)
		defer ps.Stop()
	}
	if bm := srv.BackupManager(); bm != nil {
		bm.Start(ctx)
		defer bm.Stop()
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("hearthquest listening", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
