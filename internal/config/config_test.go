package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Port != "8080" || c.DBPath != "gymops.db" {
		t.Errorf("port/db = %q/%q", c.Port, c.DBPath)
	}
	if c.ScanSchedule != "@every 5m" || c.CleanupSchedule != "15 3 * * *" {
		t.Errorf("schedules = %q/%q", c.ScanSchedule, c.CleanupSchedule)
	}
	if c.FeedMaxEntries != 500 || c.UpcomingDays != 7 {
		t.Errorf("feed/upcoming = %d/%d", c.FeedMaxEntries, c.UpcomingDays)
	}
	if c.FeedReadRetention != 168*time.Hour {
		t.Errorf("retention = %v", c.FeedReadRetention)
	}
	if c.Timezone != time.UTC {
		t.Errorf("timezone = %v", c.Timezone)
	}
	if c.BaseURL != "http://localhost:8080" {
		t.Errorf("base url = %q", c.BaseURL)
	}
	if c.PushEnabled() {
		t.Error("push should be disabled without keys")
	}
	if c.BackupEnabled() || c.BackupRetention != 720*time.Hour {
		t.Errorf("backup enabled/retention = %v/%v", c.BackupEnabled(), c.BackupRetention)
	}
	if c.LinkSigningKey != "" || c.LinkTTL != 15*time.Minute {
		t.Errorf("link key/ttl = %q/%v", c.LinkSigningKey, c.LinkTTL)
	}
}

func TestLoadEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	content := "GYMOPS_PORT=9090\nGYMOPS_UPCOMING_DAYS=14\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	// godotenv writes into the process environment.
	t.Cleanup(func() { os.Unsetenv("GYMOPS_UPCOMING_DAYS") })
	t.Setenv("GYMOPS_PORT", "7070")
	t.Setenv("GYMOPS_TIMEZONE", "America/Chicago")
	t.Setenv("GYMOPS_ALLOWED_ORIGINS", "gym.example.com, *.gym.example.com")

	c, err := Load(envFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// Environment wins over the file.
	if c.Port != "7070" {
		t.Errorf("port = %q, want 7070", c.Port)
	}
	if c.UpcomingDays != 14 {
		t.Errorf("upcoming days = %d, want 14", c.UpcomingDays)
	}
	if c.Timezone.String() != "America/Chicago" {
		t.Errorf("timezone = %v", c.Timezone)
	}
	if len(c.AllowedOrigins) != 2 || c.AllowedOrigins[1] != "*.gym.example.com" {
		t.Errorf("origins = %v", c.AllowedOrigins)
	}
}

func TestLoadReportsAllErrors(t *testing.T) {
	t.Setenv("GYMOPS_TIMEZONE", "Mars/Olympus")
	t.Setenv("GYMOPS_FEED_MAX_ENTRIES", "lots")
	t.Setenv("GYMOPS_FEED_READ_RETENTION", "a week")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"GYMOPS_TIMEZONE", "GYMOPS_FEED_MAX_ENTRIES", "GYMOPS_FEED_READ_RETENTION"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			ScanSchedule: "@every 5m", CleanupSchedule: "15 3 * * *", DigestSchedule: "0 7 * * *",
			BackupSchedule: "30 2 * * *",
			FeedMaxEntries: 10, UpcomingDays: 7, FeedReadRetention: time.Hour,
			RateLimitPerMinute: 60, RateLimitBurst: 10,
		}
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad cron", func(c *Config) { c.ScanSchedule = "sometimes" }},
		{"zero upcoming", func(c *Config) { c.UpcomingDays = 0 }},
		{"negative feed", func(c *Config) { c.FeedMaxEntries = -1 }},
		{"half vapid", func(c *Config) { c.VAPIDPublicKey = "pub" }},
		{"no rate", func(c *Config) { c.RateLimitBurst = 0 }},
		{"bucket without keys", func(c *Config) { c.BackupS3.Bucket = "gym" }},
		{"negative retention", func(c *Config) { c.BackupRetention = -time.Hour }},
		{"short link key", func(c *Config) { c.LinkSigningKey = "hunter2" }},
		{"day-long links", func(c *Config) { c.LinkTTL = 48 * time.Hour }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadBackupAndMQTT(t *testing.T) {
	t.Setenv("GYMOPS_BACKUP_S3_BUCKET", "gym-backups")
	t.Setenv("GYMOPS_BACKUP_S3_ACCESS_KEY", "AKIA")
	t.Setenv("GYMOPS_BACKUP_S3_SECRET_KEY", "secret")
	t.Setenv("GYMOPS_BACKUP_RETENTION", "48h")
	t.Setenv("GYMOPS_MQTT_URL", "tcp://broker.local:1883")
	t.Setenv("GYMOPS_MQTT_QOS", "2")

	c, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !c.BackupEnabled() || c.BackupS3.Region != "us-east-1" || c.BackupRetention != 48*time.Hour {
		t.Errorf("backup config = %+v, retention %v", c.BackupS3, c.BackupRetention)
	}
	if c.MQTT.URL != "tcp://broker.local:1883" || c.MQTT.QoS != 2 || c.MQTT.TopicPrefix != "gymops" {
		t.Errorf("mqtt = %+v", c.MQTT)
	}

	t.Setenv("GYMOPS_MQTT_QOS", "5")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil || !strings.Contains(err.Error(), "GYMOPS_MQTT_QOS") {
		t.Errorf("bad qos err = %v", err)
	}
}
