package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/gymops/internal/auth"
	"github.com/dukerupert/gymops/internal/backup"
	"github.com/dukerupert/gymops/internal/clock"
	"github.com/dukerupert/gymops/internal/handler"
	"github.com/dukerupert/gymops/internal/maintenance"
	"github.com/dukerupert/gymops/internal/middleware"
	"github.com/dukerupert/gymops/internal/notification"
	"github.com/dukerupert/gymops/internal/push"
	"github.com/dukerupert/gymops/internal/store"
	ws "github.com/dukerupert/gymops/internal/websocket"
)

// Config carries the settings the server needs beyond the database.
type Config struct {
	Clock              clock.Clock
	UpcomingDays       int
	FeedMaxEntries     int
	Push               *push.Service
	RateLimitPerMinute int
	RateLimitBurst     int
	AllowedOrigins     []string
	// Backup is nil when no snapshot target is configured.
	Backup *backup.Manager
	// Links signs backup download links. A nil signer gets a per-process key.
	Links *auth.LinkSigner
	// NotificationSinks receive every newly created notification.
	NotificationSinks []func(notification.Notification)
}

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	svc            *maintenance.Service
	feed           *notification.Feed
	scanner        *notification.Scanner
	equipmentH     *handler.EquipmentHandler
	scheduleH      *handler.ScheduleHandler
	reportH        *handler.ReportHandler
	taskH          *handler.TaskHandler
	notificationH  *handler.NotificationHandler
	pushH          *handler.PushHandler
	backupH        *handler.BackupHandler
	signedLinks    bool
	operatorStore  *store.OperatorStore
	scheduleStore  *store.ScheduleStore
	pushStore      *store.PushStore
	rateLimiter    *middleware.RateLimiter
	allowedOrigins []string
	logger         *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	if cfg.Push == nil {
		cfg.Push = push.NewService("", "", "")
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 60
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 20
	}

	hub := ws.NewHub(logger)

	equipmentStore := store.NewEquipmentStore(db)
	scheduleStore := store.NewScheduleStore(db)
	historyStore := store.NewHistoryStore(db)
	taskStore := store.NewTaskStore(db)
	pushStore := store.NewPushStore(db)

	opts := []maintenance.Option{maintenance.WithClock(cfg.Clock)}
	if cfg.UpcomingDays > 0 {
		opts = append(opts, maintenance.WithUpcomingDays(cfg.UpcomingDays))
	}
	svc := maintenance.New(db, logger, opts...)

	feed := notification.NewFeed(cfg.FeedMaxEntries)
	scanner := notification.NewScanner(scheduleStore, feed, cfg.Clock, logger)
	scanner.OnCreated(func(n notification.Notification) {
		hub.Broadcast(ws.NotificationCreated(n))
	})
	if cfg.Push.Configured() {
		dispatcher := push.NewDispatcher(cfg.Push, pushStore, cfg.Clock, logger)
		scanner.OnCreated(dispatcher.Notify)
	}
	for _, sink := range cfg.NotificationSinks {
		scanner.OnCreated(sink)
	}

	var backupH *handler.BackupHandler
	if cfg.Backup != nil {
		cfg.Backup.OnStatus(func(st backup.Status) {
			hub.Broadcast(ws.BackupStatus(st))
		})
		if cfg.Links == nil {
			links, err := auth.NewLinkSigner(nil, 0, cfg.Clock)
			if err != nil {
				logger.Error("backup download links disabled", "error", err)
			}
			cfg.Links = links
		}
		backupH = handler.NewBackupHandler(cfg.Backup, cfg.Links, logger.With("component", "backup_handler"))
	}

	return &Server{
		db:             db,
		hub:            hub,
		svc:            svc,
		feed:           feed,
		scanner:        scanner,
		equipmentH:     handler.NewEquipmentHandler(svc, equipmentStore, scheduleStore, historyStore, hub, logger.With("component", "equipment")),
		scheduleH:      handler.NewScheduleHandler(svc, scheduleStore, hub, logger.With("component", "schedule")),
		reportH:        handler.NewReportHandler(svc, historyStore, logger.With("component", "report")),
		taskH:          handler.NewTaskHandler(svc, taskStore, hub, logger.With("component", "task")),
		notificationH:  handler.NewNotificationHandler(feed, scanner, hub, logger.With("component", "notification")),
		pushH:          handler.NewPushHandler(pushStore, cfg.Push, logger.With("component", "push_handler")),
		backupH:        backupH,
		signedLinks:    backupH != nil && cfg.Links != nil,
		operatorStore:  store.NewOperatorStore(db),
		scheduleStore:  scheduleStore,
		pushStore:      pushStore,
		rateLimiter:    middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		allowedOrigins: cfg.AllowedOrigins,
		logger:         logger,
	}
}

// Maintenance returns the maintenance service for background jobs.
func (s *Server) Maintenance() *maintenance.Service {
	return s.svc
}

// Feed returns the notification feed.
func (s *Server) Feed() *notification.Feed {
	return s.feed
}

// Scanner returns the notification scanner.
func (s *Server) Scanner() *notification.Scanner {
	return s.scanner
}

// ScheduleStore returns the schedule store, which doubles as the due-item
// source for the email digest.
func (s *Server) ScheduleStore() *store.ScheduleStore {
	return s.scheduleStore
}

// PushStore returns the push store for cleanup tasks.
func (s *Server) PushStore() *store.PushStore {
	return s.pushStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	if s.signedLinks {
		// The signed token is the credential here.
		outerMux.HandleFunc("GET /backups/download", s.backupH.DownloadLink)
	}

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireOperator(s.operatorStore, s.logger.With("component", "auth"))
	outerMux.Handle("/api/", authMiddleware(protectedMux))
	outerMux.Handle("GET /ws", authMiddleware(ws.HandleWebSocket(s.hub, s.allowedOrigins)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"clients": s.hub.ClientCount(),
	})
}

// limited applies the per-operator rate limit to a mutating route.
func (s *Server) limited(h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.OperatorKey)(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Equipment
	mux.HandleFunc("GET /api/equipment", s.equipmentH.List)
	mux.Handle("POST /api/equipment", s.limited(s.equipmentH.Create))
	mux.HandleFunc("GET /api/equipment/{id}", s.equipmentH.Get)
	mux.Handle("PUT /api/equipment/{id}", s.limited(s.equipmentH.Update))
	mux.HandleFunc("GET /api/equipment/{id}/schedules", s.equipmentH.Schedules)
	mux.Handle("POST /api/equipment/{id}/schedules/generate", s.limited(s.equipmentH.Generate))
	mux.HandleFunc("GET /api/equipment/{id}/history", s.equipmentH.History)

	// Schedules
	mux.HandleFunc("GET /api/schedules", s.scheduleH.List)
	mux.HandleFunc("GET /api/schedules/{id}", s.scheduleH.Get)
	mux.Handle("POST /api/schedules/{id}/complete", s.limited(s.scheduleH.Complete))
	mux.Handle("POST /api/schedules/{id}/skip", s.limited(s.scheduleH.Skip))
	mux.Handle("POST /api/schedules/cleanup-duplicates", s.limited(s.scheduleH.CleanupDuplicates))

	// History and reports
	mux.HandleFunc("GET /api/history", s.reportH.History)
	mux.HandleFunc("GET /api/reports/costs", s.reportH.Costs)
	mux.HandleFunc("GET /api/reports/reliability", s.reportH.Reliability)
	mux.HandleFunc("GET /api/dashboard", s.reportH.Dashboard)

	// Ad-hoc tasks
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.Handle("POST /api/tasks", s.limited(s.taskH.Create))
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.Handle("POST /api/tasks/{id}/start", s.limited(s.taskH.Start))
	mux.Handle("POST /api/tasks/{id}/complete", s.limited(s.taskH.Complete))
	mux.Handle("POST /api/tasks/{id}/cancel", s.limited(s.taskH.Cancel))

	// Notifications
	mux.HandleFunc("GET /api/notifications", s.notificationH.List)
	mux.HandleFunc("GET /api/notifications/summary", s.notificationH.Summary)
	mux.Handle("POST /api/notifications/scan", s.limited(s.notificationH.Scan))
	mux.Handle("POST /api/notifications/read-all", s.limited(s.notificationH.MarkAllRead))
	mux.Handle("POST /api/notifications/{id}/read", s.limited(s.notificationH.MarkRead))
	mux.Handle("DELETE /api/notifications/{id}", s.limited(s.notificationH.Delete))

	// Push notification API routes
	mux.Handle("POST /api/push/subscribe", s.limited(s.pushH.Subscribe))
	mux.Handle("DELETE /api/push/subscriptions/{id}", s.limited(s.pushH.Unsubscribe))
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("GET /api/push/preferences", s.pushH.GetPreferences)
	mux.Handle("PUT /api/push/preferences", s.limited(s.pushH.UpdatePreferences))

	if s.backupH != nil {
		mux.HandleFunc("GET /api/backups", s.backupH.List)
		mux.Handle("POST /api/backups", s.limited(s.backupH.Run))
		mux.HandleFunc("GET /api/backups/{id}/download", s.backupH.Download)
		if s.signedLinks {
			mux.Handle("POST /api/backups/{id}/link", s.limited(s.backupH.Link))
		}
	}
}
