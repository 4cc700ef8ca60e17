// Package backup snapshots the SQLite database into a Storage backend,
// optionally encrypted with a passphrase, and prunes old snapshots.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dukerupert/gymops/internal/clock"
	"github.com/dukerupert/gymops/internal/model"
	"github.com/dukerupert/gymops/internal/store"
)

var (
	ErrBusy     = errors.New("backup: another backup is running")
	ErrNotFound = errors.New("backup: not found")
)

// Config holds manager settings. An empty Passphrase stores plain SQLite
// files. Retention <= 0 keeps everything.
type Config struct {
	Passphrase string
	Retention  time.Duration
	Prefix     string
}

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateError   State = "error"
)

// Status is the manager's current state.
type Status struct {
	State      State      `json:"state"`
	Target     string     `json:"target"`
	Encrypted  bool       `json:"encrypted"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// StatusCallback is called whenever the state changes.
type StatusCallback func(Status)

type Manager struct {
	run sync.Mutex

	mu       sync.RWMutex
	status   Status
	callback StatusCallback

	db      *sql.DB
	records *store.BackupStore
	storage Storage
	cfg     Config
	clock   clock.Clock
	logger  *slog.Logger
}

func NewManager(db *sql.DB, records *store.BackupStore, storage Storage, cfg Config, c clock.Clock, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "gymops"
	}
	m := &Manager{
		db:      db,
		records: records,
		storage: storage,
		cfg:     cfg,
		clock:   c,
		logger:  logger.With("component", "backup", "target", storage.Name()),
		status: Status{
			State:     StateIdle,
			Target:    storage.Name(),
			Encrypted: cfg.Passphrase != "",
		},
	}
	if last, err := records.LatestCompleted(); err == nil && last != nil {
		m.status.LastBackup = last.CompletedAt
	}
	return m
}

// OnStatus registers the state change callback.
func (m *Manager) OnStatus(cb StatusCallback) {
	m.mu.Lock()
	m.callback = cb
	m.mu.Unlock()
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(update func(*Status)) {
	m.mu.Lock()
	update(&m.status)
	s, cb := m.status, m.callback
	m.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

func (m *Manager) List(limit int) ([]model.Backup, error) {
	return m.records.List(limit)
}

// Get returns a completed backup, or ErrNotFound.
func (m *Manager) Get(id int64) (*model.Backup, error) {
	b, err := m.records.GetByID(id)
	if err != nil {
		return nil, err
	}
	if b == nil || !b.Available() {
		return nil, ErrNotFound
	}
	return b, nil
}

// Run takes one snapshot. It returns ErrBusy instead of queueing when a
// snapshot is already in progress.
func (m *Manager) Run(ctx context.Context) (*model.Backup, error) {
	if !m.run.TryLock() {
		return nil, ErrBusy
	}
	defer m.run.Unlock()

	started := m.clock.Now().UTC()
	filename := "gymops-" + started.Format("20060102T150405Z") + ".db"
	if m.cfg.Passphrase != "" {
		filename += ".enc"
	}
	key := path.Join(m.cfg.Prefix, filename)

	record, err := m.records.Create(filename, key, m.storage.Name(), m.cfg.Passphrase != "", started)
	if err != nil {
		return nil, err
	}
	m.setStatus(func(s *Status) {
		s.State = StateRunning
		s.Error = ""
	})

	size, err := m.snapshot(ctx, record)
	if err != nil {
		m.logger.Error("backup failed", "backup_id", record.ID, "error", err)
		if uerr := m.records.UpdateStatus(record.ID, model.BackupStatusFailed, err.Error()); uerr != nil {
			m.logger.Error("record backup failure", "error", uerr)
		}
		m.setStatus(func(s *Status) {
			s.State = StateError
			s.Error = err.Error()
		})
		return nil, err
	}

	done := m.clock.Now().UTC()
	if err := m.records.MarkCompleted(record.ID, size, done); err != nil {
		return nil, err
	}
	m.setStatus(func(s *Status) {
		s.State = StateIdle
		s.LastBackup = &done
	})
	completed, err := m.records.GetByID(record.ID)
	if err != nil {
		return nil, err
	}
	m.logger.Info("backup completed", "backup_id", record.ID, "key", key, "bytes", size, "duration", completed.Duration())
	return completed, nil
}

func (m *Manager) snapshot(ctx context.Context, record *model.Backup) (int64, error) {
	dir, err := os.MkdirTemp("", "gymops-backup-")
	if err != nil {
		return 0, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	// VACUUM INTO writes a consistent copy without blocking readers and
	// works for in-memory databases too.
	snap := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, snap); err != nil {
		return 0, fmt.Errorf("vacuum into: %w", err)
	}

	f, err := os.Open(snap)
	if err != nil {
		return 0, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	var body io.Reader = f
	var size int64
	if m.cfg.Passphrase != "" {
		var sealed bytes.Buffer
		if err := Encrypt(&sealed, f, m.cfg.Passphrase); err != nil {
			return 0, err
		}
		size = int64(sealed.Len())
		body = &sealed
	} else {
		st, err := f.Stat()
		if err != nil {
			return 0, fmt.Errorf("stat snapshot: %w", err)
		}
		size = st.Size()
	}

	if err := m.records.UpdateStatus(record.ID, model.BackupStatusUploading, ""); err != nil {
		return 0, err
	}
	if err := m.storage.Put(ctx, record.ObjectKey, body, size); err != nil {
		return 0, err
	}
	return size, nil
}

// Cleanup deletes snapshots older than the retention window and returns
// how many records were removed.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	if m.cfg.Retention <= 0 {
		return 0, nil
	}
	old, err := m.records.DeleteOlderThan(m.clock.Now().Add(-m.cfg.Retention))
	if err != nil {
		return 0, err
	}
	for _, b := range old {
		if !b.Available() {
			continue
		}
		if err := m.storage.Delete(ctx, b.ObjectKey); err != nil {
			m.logger.Warn("delete expired snapshot", "key", b.ObjectKey, "error", err)
		}
	}
	return len(old), nil
}

// Open returns the stored object of a completed backup as-is, encrypted
// or not.
func (m *Manager) Open(ctx context.Context, id int64) (io.ReadCloser, *model.Backup, error) {
	b, err := m.Get(id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := m.storage.Get(ctx, b.ObjectKey)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return rc, b, nil
}

// Restore writes backup id to dst as a plain SQLite file and checks its
// integrity. dst must not exist; the live database is never touched.
func (m *Manager) Restore(ctx context.Context, id int64, dst string) error {
	rc, b, err := m.Open(ctx, id)
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create restore file: %w", err)
	}
	if b.Encrypted {
		err = Decrypt(out, rc, m.cfg.Passphrase)
	} else {
		_, err = io.Copy(out, rc)
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return err
	}

	if err := checkIntegrity(ctx, dst); err != nil {
		os.Remove(dst)
		return err
	}
	m.logger.Info("backup restored", "backup_id", id, "path", dst)
	return nil
}

func checkIntegrity(ctx context.Context, dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
