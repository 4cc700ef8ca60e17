package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/gymops/internal/model"
	"github.com/dukerupert/gymops/internal/notification"
	"github.com/dukerupert/gymops/internal/websocket"
)

type NotificationHandler struct {
	broadcaster
	feed    *notification.Feed
	scanner *notification.Scanner
	logger  *slog.Logger
}

func NewNotificationHandler(feed *notification.Feed, scanner *notification.Scanner, hub *websocket.Hub, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{broadcaster: broadcaster{hub: hub}, feed: feed, scanner: scanner, logger: logger}
}

// List handles GET /api/notifications?unread=&priority=&category=&limit=
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := notification.Filter{
		UnreadOnly: q.Get("unread") == "true",
		Category:   q.Get("category"),
	}
	if v := q.Get("priority"); v != "" {
		p, ok := model.ParsePriority(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid priority")
			return
		}
		f.Priority = p
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = n
	}
	writeJSON(w, http.StatusOK, emptyIfNil(h.feed.List(f)))
}

// Summary handles GET /api/notifications/summary
func (h *NotificationHandler) Summary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.feed.Summary())
}

// Scan handles POST /api/notifications/scan
func (h *NotificationHandler) Scan(w http.ResponseWriter, r *http.Request) {
	res, err := h.scanner.Scan()
	if err != nil {
		h.logger.Error("scan", "error", err)
		if res == nil {
			writeError(w, http.StatusInternalServerError, "failed to scan")
			return
		}
		// Partial results are still reported.
		writeJSON(w, http.StatusOK, map[string]any{"result": res, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// MarkRead handles POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n, ok := h.feed.MarkRead(id)
	if !ok {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	h.broadcast(websocket.NotificationRead(n.ID))
	writeJSON(w, http.StatusOK, n)
}

// MarkAllRead handles POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n := h.feed.MarkAllRead()
	if n > 0 {
		h.broadcast(websocket.NotificationRead("all"))
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked": n})
}

// Delete handles DELETE /api/notifications/{id}
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.feed.Delete(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
