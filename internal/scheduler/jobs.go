package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukerupert/gymops/internal/clock"
	"github.com/dukerupert/gymops/internal/email"
	"github.com/dukerupert/gymops/internal/maintenance"
	"github.com/dukerupert/gymops/internal/model"
	"github.com/dukerupert/gymops/internal/notification"
)

// Job names.
const (
	JobScan         = "notification_scan"
	JobFeedPurge    = "feed_purge"
	JobCleanup      = "duplicate_cleanup"
	JobDigest       = "email_digest"
	JobSentCleanup  = "sent_log_cleanup"
	JobLimiterPrune = "rate_limiter_cleanup"
	JobBackup       = "database_backup"
)

type DigestSender interface {
	Configured() bool
	SendMaintenanceDigest(to string, d email.Digest) error
}

type SentLog interface {
	CleanupSent(before time.Time) (int64, error)
}

type LimiterPruner interface {
	Cleanup(idle time.Duration) int
}

type BackupRunner interface {
	Run(ctx context.Context) (*model.Backup, error)
	Cleanup(ctx context.Context) (int, error)
}

// Config holds the cron specs and retention windows.
type Config struct {
	ScanSpec      string
	CleanupSpec   string
	DigestSpec    string
	DigestTo      string
	ReadRetention time.Duration
	SentRetention time.Duration
	LimiterIdle   time.Duration
	BackupSpec    string
}

// Deps are the components the jobs drive. Digest, Sent, Limiter and Backup
// may be nil, in which case their jobs are not registered.
type Deps struct {
	Scanner     *notification.Scanner
	Feed        *notification.Feed
	Maintenance *maintenance.Service
	Due         notification.DueSource
	Digest      DigestSender
	Sent        SentLog
	Limiter     LimiterPruner
	Backup      BackupRunner
	Clock       clock.Clock
	Logger      *slog.Logger
}

// MaintenanceJobs returns the periodic jobs of the service.
func MaintenanceJobs(cfg Config, d Deps) []Job {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "jobs")

	jobs := []Job{
		{
			Name:       JobScan,
			Spec:       cfg.ScanSpec,
			RunAtStart: true,
			Run: func(ctx context.Context) error {
				res, err := d.Scanner.Scan()
				if res != nil && (res.Created > 0 || res.Refreshed > 0) {
					logger.Info("scan finished",
						"overdue", res.Overdue, "due_today", res.DueToday,
						"created", res.Created, "refreshed", res.Refreshed)
				}
				return err
			},
		},
		{
			Name: JobFeedPurge,
			Spec: "@hourly",
			Run: func(ctx context.Context) error {
				if n := d.Feed.PurgeRead(cfg.ReadRetention); n > 0 {
					logger.Info("purged read notifications", "count", n)
				}
				return nil
			},
		},
		{
			Name: JobCleanup,
			Spec: cfg.CleanupSpec,
			Run: func(ctx context.Context) error {
				res, err := d.Maintenance.CleanupDuplicateSchedules()
				if err != nil {
					return err
				}
				if res.Deactivated > 0 {
					logger.Warn("deactivated duplicate schedules",
						"groups", res.DuplicateGroups, "deactivated", res.Deactivated)
				}
				return nil
			},
		},
	}

	if d.Digest != nil && d.Digest.Configured() && cfg.DigestTo != "" {
		jobs = append(jobs, Job{
			Name: JobDigest,
			Spec: cfg.DigestSpec,
			Run: func(ctx context.Context) error {
				return SendDigest(d.Digest, d.Due, d.Clock.Today(), cfg.DigestTo)
			},
		})
	}

	if d.Sent != nil {
		jobs = append(jobs, Job{
			Name: JobSentCleanup,
			Spec: "@daily",
			Run: func(ctx context.Context) error {
				n, err := d.Sent.CleanupSent(d.Clock.Today().Add(-cfg.SentRetention))
				if n > 0 {
					logger.Debug("removed sent log rows", "count", n)
				}
				return err
			},
		})
	}

	if d.Limiter != nil {
		jobs = append(jobs, Job{
			Name: JobLimiterPrune,
			Spec: "@every 10m",
			Run: func(ctx context.Context) error {
				d.Limiter.Cleanup(cfg.LimiterIdle)
				return nil
			},
		})
	}

	if d.Backup != nil {
		jobs = append(jobs, Job{
			Name: JobBackup,
			Spec: cfg.BackupSpec,
			Run: func(ctx context.Context) error {
				if _, err := d.Backup.Run(ctx); err != nil {
					return err
				}
				if n, err := d.Backup.Cleanup(ctx); err != nil {
					return err
				} else if n > 0 {
					logger.Info("pruned old backups", "count", n)
				}
				return nil
			},
		})
	}

	return jobs
}

// SendDigest emails today's overdue and due-today lists. Nothing is sent
// on a day with neither.
//
// Listing errors do not stop the digest: whatever schedules were read are
// still sent, and the errors are returned with any send failure.
func SendDigest(sender DigestSender, due notification.DueSource, today time.Time, to string) error {
	overdue, overdueErr := due.ListOverdue(today)
	dueToday, dueErr := due.ListDueOn(today)
	listErr := errors.Join(overdueErr, dueErr)

	digest := email.BuildDigest(today, overdue, dueToday)
	if digest.Empty() {
		return listErr
	}
	return errors.Join(listErr, sender.SendMaintenanceDigest(to, digest))
}
