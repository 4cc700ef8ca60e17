package maintenance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/gymops/internal/clock"
	"github.com/dukerupert/gymops/internal/model"
	"github.com/dukerupert/gymops/internal/store"
)

// CompletionDetails is passed through to the history record.
type CompletionDetails struct {
	Notes           string `json:"notes"`
	PerformedBy     string `json:"performed_by"`
	CostCents       int64  `json:"cost_cents"`
	DurationMinutes int    `json:"duration_minutes"`
}

type CompletionResult struct {
	Completed *model.MaintenanceSchedule `json:"completed_schedule"`
	Next      *model.MaintenanceSchedule `json:"next_schedule"`
	History   *model.MaintenanceHistory  `json:"history_record"`
}

type SkipResult struct {
	Skipped *model.MaintenanceSchedule `json:"skipped_schedule"`
	Next    *model.MaintenanceSchedule `json:"next_schedule"`
}

// CompleteMaintenance closes the schedule, closes any other active
// schedule of the same pair, spawns (or reuses) the successor due today
// plus the interval, and appends a history record. A schedule that is no
// longer active yields ErrAlreadyProcessed and nothing is written.
func (s *Service) CompleteMaintenance(scheduleID int64, d CompletionDetails) (*CompletionResult, error) {
	if d.CostCents < 0 || d.DurationMinutes < 0 {
		return nil, fmt.Errorf("cost and duration must not be negative: %w", ErrInvalidInput)
	}

	var res CompletionResult
	err := s.advance(scheduleID, func(st txStores, sc *model.MaintenanceSchedule) error {
		today := s.clock.Today()

		ok, err := st.schedules.CloseByID(sc.ID, model.CloseCompleted, &today, d.Notes)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyProcessed
		}
		if err := s.closeDuplicates(st, sc, model.CloseCompleted, &today); err != nil {
			return err
		}

		res.Next, err = s.successor(st, sc, today, &today)
		if err != nil {
			return err
		}

		schedID := sc.ID
		res.History, err = st.history.Create(store.HistoryInput{
			EquipmentID:     sc.EquipmentID,
			ScheduleID:      &schedID,
			MaintenanceType: sc.MaintenanceType,
			PerformedDate:   today,
			PerformedBy:     d.PerformedBy,
			CostCents:       d.CostCents,
			DurationMinutes: d.DurationMinutes,
			Result:          model.HistoryResultCompleted,
			Notes:           d.Notes,
		})
		if err != nil {
			return err
		}

		res.Completed, err = st.schedules.GetByID(sc.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("maintenance completed",
		"schedule_id", scheduleID,
		"equipment_id", res.Completed.EquipmentID,
		"type", res.Completed.MaintenanceType,
		"next_schedule_id", res.Next.ID,
		"next_due", clock.Format(res.Next.NextDueDate),
	)
	return &res, nil
}

// SkipOverdueMaintenance closes the schedule without performing it. The
// successor is created like a completion's but with no last completed
// date, and no history is recorded.
func (s *Service) SkipOverdueMaintenance(scheduleID int64, reason string) (*SkipResult, error) {
	note := "Skipped"
	if r := strings.TrimSpace(reason); r != "" {
		note = "Skipped: " + r
	}

	var res SkipResult
	err := s.advance(scheduleID, func(st txStores, sc *model.MaintenanceSchedule) error {
		today := s.clock.Today()

		ok, err := st.schedules.CloseByID(sc.ID, model.CloseSkipped, nil, note)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyProcessed
		}
		if err := s.closeDuplicates(st, sc, model.CloseSkipped, nil); err != nil {
			return err
		}

		res.Next, err = s.successor(st, sc, today, nil)
		if err != nil {
			return err
		}
		res.Skipped, err = st.schedules.GetByID(sc.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("maintenance skipped",
		"schedule_id", scheduleID,
		"equipment_id", res.Skipped.EquipmentID,
		"type", res.Skipped.MaintenanceType,
		"next_schedule_id", res.Next.ID,
		"reason", reason,
	)
	return &res, nil
}

// advance runs fn for an active schedule while holding the pair lock and a
// write transaction.
func (s *Service) advance(scheduleID int64, fn func(st txStores, sc *model.MaintenanceSchedule) error) error {
	sc, err := store.NewScheduleStore(s.db).GetByID(scheduleID)
	if err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}
	if sc == nil {
		return fmt.Errorf("schedule %d: %w", scheduleID, ErrNotFound)
	}
	if !sc.IsActive {
		return fmt.Errorf("schedule %d: %w", scheduleID, ErrAlreadyProcessed)
	}

	unlock := s.locks.Lock(pairKey{sc.EquipmentID, sc.MaintenanceType})
	defer unlock()

	err = s.inTx(func(st txStores) error {
		return fn(st, sc)
	})
	if errors.Is(err, ErrAlreadyProcessed) {
		return fmt.Errorf("schedule %d: %w", scheduleID, ErrAlreadyProcessed)
	}
	return err
}

// closeDuplicates closes any other active schedule of sc's pair so the
// pair converges on the successor.
func (s *Service) closeDuplicates(st txStores, sc *model.MaintenanceSchedule, reason model.CloseReason, today *time.Time) error {
	note := fmt.Sprintf("Closed together with schedule #%d (%s)", sc.ID, reason)
	n, err := st.schedules.CloseActive(sc.EquipmentID, sc.MaintenanceType, model.CloseDuplicate, today, note)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Warn("closed duplicate active schedules",
			"schedule_id", sc.ID, "equipment_id", sc.EquipmentID, "type", sc.MaintenanceType, "count", n)
	}
	return nil
}

// successor reuses an active schedule already due on the next date or
// creates one linked to sc. lastCompleted is nil for skips.
func (s *Service) successor(st txStores, sc *model.MaintenanceSchedule, today time.Time, lastCompleted *time.Time) (*model.MaintenanceSchedule, error) {
	due := nextDue(today, sc)

	existing, err := st.schedules.FindActiveOnDate(sc.EquipmentID, sc.MaintenanceType, due)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	prevID := sc.ID
	return st.schedules.Create(store.ScheduleInput{
		EquipmentID:        sc.EquipmentID,
		MaintenanceType:    sc.MaintenanceType,
		Priority:           sc.Priority,
		IntervalDays:       sc.IntervalDays,
		NextDueDate:        due,
		LastCompletedDate:  lastCompleted,
		PreviousScheduleID: &prevID,
	})
}
