package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dukerupert/gymops/internal/auth"
	"github.com/dukerupert/gymops/internal/backup"
	"github.com/dukerupert/gymops/internal/model"
)

const backupLinkKind = "backup"

type BackupHandler struct {
	manager *backup.Manager
	links   *auth.LinkSigner
	logger  *slog.Logger
}

func NewBackupHandler(manager *backup.Manager, links *auth.LinkSigner, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: manager, links: links, logger: logger}
}

// List returns the manager status and the most recent backups.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	backups, err := h.manager.List(limit)
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  h.manager.Status(),
		"backups": emptyIfNil(backups),
	})
}

// Run takes a snapshot now.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	b, err := h.manager.Run(r.Context())
	if errors.Is(err, backup.ErrBusy) {
		writeError(w, http.StatusConflict, "a backup is already running")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, "backup failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// Download streams the stored object. Encrypted snapshots are sent as-is.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid backup ID")
		return
	}
	h.stream(w, r, id)
}

// Link handles POST /api/backups/{id}/link. The returned URL downloads the
// snapshot without a bearer token until it expires.
func (h *BackupHandler) Link(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid backup ID")
		return
	}
	if _, err := h.manager.Get(id); errors.Is(err, backup.ErrNotFound) {
		writeError(w, http.StatusNotFound, "backup not found")
		return
	} else if err != nil {
		h.logger.Error("get backup", "backup_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load backup")
		return
	}

	tok, expires, err := h.links.Sign(backupLinkKind, id, auth.OperatorID(r.Context()))
	if err != nil {
		h.logger.Error("sign backup link", "backup_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create link")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"url":        "/backups/download?token=" + url.QueryEscape(tok),
		"expires_at": expires.UTC(),
	})
}

// DownloadLink handles GET /backups/download?token=...
func (h *BackupHandler) DownloadLink(w http.ResponseWriter, r *http.Request) {
	id, operatorID, err := h.links.Verify(r.URL.Query().Get("token"), backupLinkKind)
	if err != nil {
		writeError(w, http.StatusForbidden, "link is invalid or has expired")
		return
	}
	h.logger.Info("backup downloaded by link", "backup_id", id, "operator_id", operatorID)
	h.stream(w, r, id)
}

func (h *BackupHandler) stream(w http.ResponseWriter, r *http.Request, id int64) {
	rc, b, err := h.manager.Open(r.Context(), id)
	if errors.Is(err, backup.ErrNotFound) {
		writeError(w, http.StatusNotFound, "backup not found")
		return
	}
	if err != nil {
		h.logger.Error("open backup", "backup_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to open backup")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType(b))
	w.Header().Set("Content-Disposition", `attachment; filename="`+b.Filename+`"`)
	w.Header().Set("Content-Length", strconv.FormatInt(b.SizeBytes, 10))
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("stream backup", "backup_id", id, "error", err)
	}
}

func contentType(b *model.Backup) string {
	if b.Encrypted {
		return "application/octet-stream"
	}
	return "application/vnd.sqlite3"
}
