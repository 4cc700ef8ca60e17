package notification

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/gymops/internal/clock"
	"github.com/dukerupert/gymops/internal/model"
)

// DueSource lists active schedules of active equipment by due date.
type DueSource interface {
	ListOverdue(date time.Time) ([]model.DueSchedule, error)
	ListDueOn(date time.Time) ([]model.DueSchedule, error)
}

// Scanner turns overdue and due-today schedules into feed notifications.
// It never writes schedules.
type Scanner struct {
	source DueSource
	feed   *Feed
	clock  clock.Clock
	logger *slog.Logger

	mu    sync.RWMutex
	hooks []func(Notification)
}

func NewScanner(source DueSource, feed *Feed, c clock.Clock, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		source: source,
		feed:   feed,
		clock:  c,
		logger: logger.With("component", "notification_scanner"),
	}
}

// OnCreated registers fn to run for every newly created notification.
// Hooks run synchronously after the feed is updated and handle their own
// errors.
func (s *Scanner) OnCreated(fn func(Notification)) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

type ScanResult struct {
	Date      string `json:"date"`
	Overdue   int    `json:"overdue"`
	DueToday  int    `json:"due_today"`
	Created   int    `json:"created"`
	Refreshed int    `json:"refreshed"`
}

// Scan classifies every overdue and due-today schedule and adds a
// notification for each one not already unread in the feed. A failure to
// list one category does not stop the other; both errors are returned.
func (s *Scanner) Scan() (*ScanResult, error) {
	today := s.clock.Today()
	res := &ScanResult{Date: clock.Format(today)}
	seen := make(map[dedupKey]struct{})
	var errs []error

	overdue, err := s.source.ListOverdue(today)
	if err != nil {
		s.logger.Error("list overdue schedules", "error", err)
		errs = append(errs, err)
	}
	res.Overdue = len(overdue)
	for _, d := range overdue {
		s.add(res, seen, overdueNotification(d, today))
	}

	due, err := s.source.ListDueOn(today)
	if err != nil {
		s.logger.Error("list schedules due today", "error", err)
		errs = append(errs, err)
	}
	res.DueToday = len(due)
	for _, d := range due {
		s.add(res, seen, dueTodayNotification(d))
	}

	// A failed listing may have left out items that are still unresolved.
	if len(errs) == 0 {
		s.feed.forgetEvicted(seen)
	}

	if res.Created > 0 {
		s.logger.Info("scan complete", "date", res.Date, "overdue", res.Overdue,
			"due_today", res.DueToday, "created", res.Created, "refreshed", res.Refreshed)
	} else {
		s.logger.Debug("scan complete", "date", res.Date, "overdue", res.Overdue,
			"due_today", res.DueToday, "refreshed", res.Refreshed)
	}
	return res, errors.Join(errs...)
}

func (s *Scanner) add(res *ScanResult, seen map[dedupKey]struct{}, n Notification) {
	seen[keyOf(&n)] = struct{}{}
	stored, created := s.feed.Add(n)
	if !created {
		res.Refreshed++
		return
	}
	res.Created++

	s.mu.RLock()
	hooks := s.hooks
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(stored)
	}
}

// OverdueSeverity is critical for critical equipment or more than a week
// late, high for more than three days late, medium otherwise.
func OverdueSeverity(equipment model.Priority, daysOverdue int) model.Priority {
	switch {
	case equipment == model.PriorityCritical || daysOverdue > 7:
		return model.PriorityCritical
	case daysOverdue > 3:
		return model.PriorityHigh
	}
	return model.PriorityMedium
}

// DueTodaySeverity is critical for critical equipment and high otherwise.
func DueTodaySeverity(equipment model.Priority) model.Priority {
	if equipment == model.PriorityCritical {
		return model.PriorityCritical
	}
	return model.PriorityHigh
}

func overdueNotification(d model.DueSchedule, today time.Time) Notification {
	days := clock.DaysBetween(d.NextDueDate, today)
	unit := "days"
	if days == 1 {
		unit = "day"
	}
	return Notification{
		Type:        model.NotifTypeOverdueMaintenance,
		Priority:    OverdueSeverity(d.EquipmentPriority, days),
		Category:    CategoryMaintenance,
		Title:       fmt.Sprintf("Overdue %s: %s", d.MaintenanceType, d.EquipmentName),
		Message:     fmt.Sprintf("%s of %s was due %s (%d %s overdue)", d.MaintenanceType, d.EquipmentName, clock.Format(d.NextDueDate), days, unit),
		EquipmentID: d.EquipmentID,
		ScheduleID:  d.ID,
		DaysOverdue: days,
	}
}

func dueTodayNotification(d model.DueSchedule) Notification {
	return Notification{
		Type:        model.NotifTypeDueTodayMaintenance,
		Priority:    DueTodaySeverity(d.EquipmentPriority),
		Category:    CategoryMaintenance,
		Title:       fmt.Sprintf("%s due today: %s", d.MaintenanceType, d.EquipmentName),
		Message:     fmt.Sprintf("%s of %s is due today", d.MaintenanceType, d.EquipmentName),
		EquipmentID: d.EquipmentID,
		ScheduleID:  d.ID,
	}
}
