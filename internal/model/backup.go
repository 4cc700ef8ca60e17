package model

import "time"

type BackupStatus string

// A backup row moves pending -> uploading -> completed, or to failed from
// either earlier state.
const (
	BackupStatusPending   BackupStatus = "pending"
	BackupStatusUploading BackupStatus = "uploading"
	BackupStatusCompleted BackupStatus = "completed"
	BackupStatusFailed    BackupStatus = "failed"
)

// Backup is one database snapshot and where it was stored. Target names
// the storage backend ("local" or "s3"); ObjectKey is the path within it.
type Backup struct {
	ID           int64        `json:"id"`
	Filename     string       `json:"filename"`
	ObjectKey    string       `json:"object_key"`
	Target       string       `json:"target"`
	Encrypted    bool         `json:"encrypted"`
	SizeBytes    int64        `json:"size_bytes"`
	Status       BackupStatus `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Available reports whether the snapshot object exists and can be
// downloaded or restored.
func (b *Backup) Available() bool {
	return b.Status == BackupStatusCompleted
}

// Duration is how long the backup took; zero until it completes.
func (b *Backup) Duration() time.Duration {
	if b.CompletedAt == nil {
		return 0
	}
	return b.CompletedAt.Sub(b.StartedAt)
}
