package maintenance

import (
	"fmt"

	"github.com/dukerupert/gymops/internal/clock"
	"github.com/dukerupert/gymops/internal/model"
	"github.com/dukerupert/gymops/internal/store"
)

type Dashboard struct {
	Date                string                        `json:"date"`
	TotalSchedules      int                           `json:"total_schedules"`
	Overdue             int                           `json:"overdue"`
	DueToday            int                           `json:"due_today"`
	Upcoming            int                           `json:"upcoming"`
	UpcomingDays        int                           `json:"upcoming_days"`
	EquipmentByPriority map[model.Priority]int        `json:"equipment_by_priority"`
	EquipmentByStatus   map[model.EquipmentStatus]int `json:"equipment_by_status"`
}

// Dashboard aggregates active schedule counts and equipment counts.
// Upcoming covers the next UpcomingDays days, excluding today.
func (s *Service) Dashboard() (*Dashboard, error) {
	today := s.clock.Today()

	counts, err := store.NewScheduleStore(s.db).CountActive(today, clock.AddDays(today, s.upcomingDays))
	if err != nil {
		return nil, err
	}

	equipment := store.NewEquipmentStore(s.db)
	byPriority, err := equipment.CountByPriority()
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	byStatus, err := equipment.CountByStatus()
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	for _, p := range model.Priorities {
		if _, ok := byPriority[p]; !ok {
			byPriority[p] = 0
		}
	}

	return &Dashboard{
		Date:                clock.Format(today),
		TotalSchedules:      counts.Total,
		Overdue:             counts.Overdue,
		DueToday:            counts.DueToday,
		Upcoming:            counts.Upcoming,
		UpcomingDays:        s.upcomingDays,
		EquipmentByPriority: byPriority,
		EquipmentByStatus:   byStatus,
	}, nil
}
