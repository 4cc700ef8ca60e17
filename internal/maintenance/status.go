package maintenance

import (
	"time"

	"github.com/dukerupert/gymops/internal/clock"
	"github.com/dukerupert/gymops/internal/model"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusDue     Status = "due"
	StatusOverdue Status = "overdue"
	StatusClosed  Status = "closed"
)

// ClassifyStatus places a schedule in its lifecycle relative to today.
func ClassifyStatus(sc model.MaintenanceSchedule, today time.Time) Status {
	if !sc.IsActive {
		return StatusClosed
	}
	due := clock.DateOf(sc.NextDueDate)
	today = clock.DateOf(today)
	switch {
	case due.Before(today):
		return StatusOverdue
	case due.Equal(today):
		return StatusDue
	}
	return StatusPending
}

// DaysOverdue is the number of whole days past due, or 0.
func DaysOverdue(sc model.MaintenanceSchedule, today time.Time) int {
	if n := clock.DaysBetween(sc.NextDueDate, today); n > 0 {
		return n
	}
	return 0
}

// ScheduleWithStatus is a schedule decorated for display.
type ScheduleWithStatus struct {
	model.MaintenanceSchedule
	Status      Status `json:"status"`
	DaysOverdue int    `json:"days_overdue"`
}

// WithStatus classifies each schedule against the service clock.
func (s *Service) WithStatus(schedules []model.MaintenanceSchedule) []ScheduleWithStatus {
	today := s.clock.Today()
	out := make([]ScheduleWithStatus, 0, len(schedules))
	for _, sc := range schedules {
		out = append(out, ScheduleWithStatus{
			MaintenanceSchedule: sc,
			Status:              ClassifyStatus(sc, today),
			DaysOverdue:         DaysOverdue(sc, today),
		})
	}
	return out
}
