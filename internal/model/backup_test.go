package model

import (
	"testing"
	"time"
)

func TestBackupAvailableAndDuration(t *testing.T) {
	start := time.Date(2026, 3, 10, 2, 30, 0, 0, time.UTC)
	b := &Backup{Status: BackupStatusUploading, StartedAt: start}
	if b.Available() || b.Duration() != 0 {
		t.Errorf("in-flight backup: available=%v duration=%s", b.Available(), b.Duration())
	}

	done := start.Add(90 * time.Second)
	b.Status, b.CompletedAt = BackupStatusCompleted, &done
	if !b.Available() || b.Duration() != 90*time.Second {
		t.Errorf("completed backup: available=%v duration=%s", b.Available(), b.Duration())
	}
}
