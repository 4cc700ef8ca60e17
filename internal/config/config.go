// Package config reads process configuration from the environment. A .env
// file in the working directory, when present, is loaded first; variables
// already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/gymops/internal/backup"
	"github.com/dukerupert/gymops/internal/broker"
	"github.com/dukerupert/gymops/internal/scheduler"
)

const prefix = "GYMOPS_"

type Config struct {
	Port      string
	DBPath    string
	BaseURL   string
	LogLevel  string
	LogFormat string

	Timezone *time.Location

	ScanSchedule    string
	CleanupSchedule string
	DigestSchedule  string

	FeedMaxEntries    int
	FeedReadRetention time.Duration
	UpcomingDays      int

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	PostmarkToken string
	PostmarkFrom  string
	DigestTo      string

	BootstrapOperator string

	RateLimitPerMinute int
	RateLimitBurst     int
	AllowedOrigins     []string

	BackupDir        string
	BackupSchedule   string
	BackupRetention  time.Duration
	BackupPassphrase string
	BackupS3         backup.S3Config

	// LinkSigningKey signs download links; empty means a per-process key.
	LinkSigningKey string
	LinkTTL        time.Duration

	MQTT broker.Config
}

// Load reads the optional env file and then the environment. Parse errors
// are collected so that every bad variable is reported at once.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var errs []error
	c := &Config{
		Port:              getEnv("PORT", "8080"),
		DBPath:            getEnv("DB_PATH", "gymops.db"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		ScanSchedule:      getEnv("SCAN_SCHEDULE", "@every 5m"),
		CleanupSchedule:   getEnv("CLEANUP_SCHEDULE", "15 3 * * *"),
		DigestSchedule:    getEnv("DIGEST_SCHEDULE", "0 7 * * *"),
		VAPIDPublicKey:    getEnv("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey:   getEnv("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:      getEnv("VAPID_SUBJECT", ""),
		PostmarkToken:     getEnv("POSTMARK_TOKEN", ""),
		PostmarkFrom:      getEnv("POSTMARK_FROM", ""),
		DigestTo:          getEnv("DIGEST_TO", ""),
		BootstrapOperator: getEnv("BOOTSTRAP_OPERATOR", "admin"),
		BackupDir:         getEnv("BACKUP_DIR", ""),
		BackupSchedule:    getEnv("BACKUP_SCHEDULE", "30 2 * * *"),
		BackupPassphrase:  getEnv("BACKUP_PASSPHRASE", ""),
		LinkSigningKey:    getEnv("LINK_SIGNING_KEY", ""),
		BackupS3: backup.S3Config{
			Endpoint:  getEnv("BACKUP_S3_ENDPOINT", ""),
			Bucket:    getEnv("BACKUP_S3_BUCKET", ""),
			Region:    getEnv("BACKUP_S3_REGION", "us-east-1"),
			AccessKey: getEnv("BACKUP_S3_ACCESS_KEY", ""),
			SecretKey: getEnv("BACKUP_S3_SECRET_KEY", ""),
		},
	}
	c.BaseURL = getEnv("BASE_URL", "http://localhost:"+c.Port)
	c.MQTT = broker.Config{
		URL:         getEnv("MQTT_URL", ""),
		ClientID:    getEnv("MQTT_CLIENT_ID", "gymops"),
		Username:    getEnv("MQTT_USERNAME", ""),
		Password:    getEnv("MQTT_PASSWORD", ""),
		TopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "gymops"),
	}

	tz := getEnv("TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		errs = append(errs, fmt.Errorf("%sTIMEZONE: %w", prefix, err))
		loc = time.UTC
	}
	c.Timezone = loc

	c.FeedMaxEntries = getInt("FEED_MAX_ENTRIES", 500, &errs)
	c.UpcomingDays = getInt("UPCOMING_DAYS", 7, &errs)
	c.RateLimitPerMinute = getInt("RATE_LIMIT_PER_MINUTE", 60, &errs)
	c.RateLimitBurst = getInt("RATE_LIMIT_BURST", 20, &errs)
	c.FeedReadRetention = getDuration("FEED_READ_RETENTION", 168*time.Hour, &errs)
	c.BackupRetention = getDuration("BACKUP_RETENTION", 720*time.Hour, &errs)
	c.LinkTTL = getDuration("LINK_TTL", 15*time.Minute, &errs)
	if qos := getInt("MQTT_QOS", 1, &errs); qos < 0 || qos > 2 {
		errs = append(errs, fmt.Errorf("%sMQTT_QOS must be 0, 1 or 2", prefix))
	} else {
		c.MQTT.QoS = byte(qos)
	}

	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks values that parse but make no sense.
func (c *Config) Validate() error {
	var errs []error
	for name, spec := range map[string]string{
		"SCAN_SCHEDULE":    c.ScanSchedule,
		"CLEANUP_SCHEDULE": c.CleanupSchedule,
		"DIGEST_SCHEDULE":  c.DigestSchedule,
		"BACKUP_SCHEDULE":  c.BackupSchedule,
	} {
		if err := scheduler.ValidateSpec(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", prefix, name, err))
		}
	}
	if c.FeedMaxEntries < 0 {
		errs = append(errs, fmt.Errorf("%sFEED_MAX_ENTRIES must not be negative", prefix))
	}
	if c.UpcomingDays < 1 {
		errs = append(errs, fmt.Errorf("%sUPCOMING_DAYS must be at least 1", prefix))
	}
	if c.FeedReadRetention <= 0 {
		errs = append(errs, fmt.Errorf("%sFEED_READ_RETENTION must be positive", prefix))
	}
	if c.RateLimitPerMinute < 1 || c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("%sRATE_LIMIT_PER_MINUTE and %sRATE_LIMIT_BURST must be positive", prefix, prefix))
	}
	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		errs = append(errs, fmt.Errorf("%sVAPID_PUBLIC_KEY and %sVAPID_PRIVATE_KEY must be set together", prefix, prefix))
	}
	if c.BackupS3.Bucket != "" && !c.BackupS3.Enabled() {
		errs = append(errs, fmt.Errorf("%sBACKUP_S3_BUCKET needs %sBACKUP_S3_ACCESS_KEY and %sBACKUP_S3_SECRET_KEY", prefix, prefix, prefix))
	}
	if c.BackupRetention < 0 {
		errs = append(errs, fmt.Errorf("%sBACKUP_RETENTION must not be negative", prefix))
	}
	if c.LinkSigningKey != "" && len(c.LinkSigningKey) < 32 {
		errs = append(errs, fmt.Errorf("%sLINK_SIGNING_KEY must be at least 32 characters", prefix))
	}
	if c.LinkTTL < 0 || c.LinkTTL > 24*time.Hour {
		errs = append(errs, fmt.Errorf("%sLINK_TTL must be between 0 and 24h", prefix))
	}
	return errors.Join(errs...)
}

// BackupEnabled reports whether a snapshot target is configured. S3 wins
// when both are set.
func (c *Config) BackupEnabled() bool {
	return c.BackupDir != "" || c.BackupS3.Enabled()
}

// PushEnabled reports whether VAPID keys are configured.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(prefix + key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s%s: %w", prefix, key, err))
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s%s: %w", prefix, key, err))
		return fallback
	}
	return d
}
