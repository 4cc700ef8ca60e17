package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/gymops/internal/auth"
	"github.com/dukerupert/gymops/internal/backup"
	"github.com/dukerupert/gymops/internal/broker"
	"github.com/dukerupert/gymops/internal/clock"
	"github.com/dukerupert/gymops/internal/config"
	"github.com/dukerupert/gymops/internal/database"
	"github.com/dukerupert/gymops/internal/email"
	"github.com/dukerupert/gymops/internal/logging"
	"github.com/dukerupert/gymops/internal/notification"
	"github.com/dukerupert/gymops/internal/push"
	"github.com/dukerupert/gymops/internal/scheduler"
	"github.com/dukerupert/gymops/internal/server"
	"github.com/dukerupert/gymops/internal/store"
)

func main() {
	// Key generation needs no config, so it runs before Load.
	if len(os.Args) > 1 && os.Args[1] == "vapid-keys" {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintf(os.Stderr, "vapid-keys: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) > 1 && os.Args[1] == "restore" {
		if err := restore(cfg, logger, os.Args[2:]); err != nil {
			slog.Error("restore failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, logger); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	token, err := server.BootstrapOperator(store.NewOperatorStore(db), cfg.BootstrapOperator)
	if err != nil {
		return err
	}
	if token != "" {
		// Shown once; only the hash is stored.
		logger.Warn("created bootstrap operator, save this token", "operator", cfg.BootstrapOperator, "token", token)
	}

	clk := clock.New(nil, cfg.Timezone)
	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject)
	if !pushSvc.Configured() {
		logger.Info("web push disabled: VAPID keys not set")
	}

	var backups *backup.Manager
	if cfg.BackupEnabled() {
		backups, err = newBackupManager(cfg, db, clk, logger)
		if err != nil {
			return err
		}
	} else {
		logger.Info("backups disabled: no backup target configured")
	}

	links, err := auth.NewLinkSigner([]byte(cfg.LinkSigningKey), cfg.LinkTTL, clk)
	if err != nil {
		return err
	}
	if cfg.LinkSigningKey == "" && backups != nil {
		logger.Info("LINK_SIGNING_KEY not set; backup download links will not survive a restart")
	}

	var sinks []func(notification.Notification)
	if cfg.MQTT.URL != "" {
		pub, err := broker.Connect(cfg.MQTT, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		sinks = append(sinks, pub.PublishNotification)
	}

	srv := server.New(db, server.Config{
		Clock:              clk,
		UpcomingDays:       cfg.UpcomingDays,
		FeedMaxEntries:     cfg.FeedMaxEntries,
		Push:               pushSvc,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RateLimitBurst:     cfg.RateLimitBurst,
		AllowedOrigins:     cfg.AllowedOrigins,
		Backup:             backups,
		Links:              links,
		NotificationSinks:  sinks,
	}, logger)

	emailClient := email.NewClient(cfg.PostmarkToken, cfg.PostmarkFrom, cfg.BaseURL)
	if !emailClient.Configured() || cfg.DigestTo == "" {
		logger.Info("email digest disabled")
	}

	deps := scheduler.Deps{
		Scanner:     srv.Scanner(),
		Feed:        srv.Feed(),
		Maintenance: srv.Maintenance(),
		Due:         srv.ScheduleStore(),
		Digest:      emailClient,
		Sent:        srv.PushStore(),
		Limiter:     srv.RateLimiter(),
		Clock:       clk,
		Logger:      logger,
	}
	if backups != nil {
		deps.Backup = backups
	}

	sched := scheduler.New(cfg.Timezone, logger)
	jobs := scheduler.MaintenanceJobs(scheduler.Config{
		ScanSpec:      cfg.ScanSchedule,
		CleanupSpec:   cfg.CleanupSchedule,
		DigestSpec:    cfg.DigestSchedule,
		DigestTo:      cfg.DigestTo,
		ReadRetention: cfg.FeedReadRetention,
		SentRetention: 7 * 24 * time.Hour,
		LimiterIdle:   30 * time.Minute,
		BackupSpec:    cfg.BackupSchedule,
	}, deps)
	for _, job := range jobs {
		if err := sched.Add(job); err != nil {
			return err
		}
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gymops starting", "addr", httpServer.Addr, "timezone", cfg.Timezone.String(), "db", cfg.DBPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			sched.Stop()
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	sched.Stop()
	return nil
}

func newBackupManager(cfg *config.Config, db *sql.DB, clk clock.Clock, logger *slog.Logger) (*backup.Manager, error) {
	var storage backup.Storage
	if cfg.BackupS3.Enabled() {
		storage = backup.NewS3Storage(cfg.BackupS3)
	} else {
		dir, err := backup.NewDirStorage(cfg.BackupDir)
		if err != nil {
			return nil, err
		}
		storage = dir
	}
	if cfg.BackupPassphrase == "" {
		logger.Warn("backups are not encrypted: GYMOPS_BACKUP_PASSPHRASE not set")
	}
	return backup.NewManager(db, store.NewBackupStore(db), storage, backup.Config{
		Passphrase: cfg.BackupPassphrase,
		Retention:  cfg.BackupRetention,
	}, clk, logger), nil
}

// restore handles "gymops restore -id N -out PATH". The restored file is
// written next to, never over, the live database.
func restore(cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	id := fs.Int64("id", 0, "backup ID to restore")
	out := fs.String("out", "", "path of the restored database file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 || *out == "" {
		return errors.New("usage: gymops restore -id N -out PATH")
	}
	if !cfg.BackupEnabled() {
		return errors.New("no backup target configured")
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	manager, err := newBackupManager(cfg, db, clock.New(nil, cfg.Timezone), logger)
	if err != nil {
		return err
	}
	if err := manager.Restore(context.Background(), *id, *out); err != nil {
		return err
	}
	logger.Info("restored backup; stop the server and replace the database file to use it", "backup_id", *id, "path", *out)
	return nil
}
