package maintenance

import (
	"fmt"
	"time"

	"github.com/dukerupert/gymops/internal/clock"
	"github.com/dukerupert/gymops/internal/model"
	"github.com/dukerupert/gymops/internal/store"
)

// GenerateSchedules creates one active schedule per maintenance type for
// the equipment, due today plus the cadence interval for priority. It does
// not look for existing schedules; onboarding calls it once per equipment.
func (s *Service) GenerateSchedules(equipmentID int64, priority model.Priority) ([]model.MaintenanceSchedule, error) {
	var created []model.MaintenanceSchedule
	err := s.inTx(func(st txStores) error {
		eq, err := s.activeEquipment(st, equipmentID)
		if err != nil {
			return err
		}
		created, err = s.generate(st, eq.ID, priority, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("schedules generated", "equipment_id", equipmentID, "priority", priority, "count", len(created))
	return created, nil
}

// CreateEquipment registers equipment and, when it starts out active,
// generates its schedules in the same transaction.
func (s *Service) CreateEquipment(in store.EquipmentInput) (*model.Equipment, []model.MaintenanceSchedule, error) {
	if err := validateEquipment(&in); err != nil {
		return nil, nil, err
	}

	var eq *model.Equipment
	var created []model.MaintenanceSchedule
	err := s.inTx(func(st txStores) error {
		var err error
		eq, err = st.equipment.Create(in)
		if err != nil {
			return err
		}
		if eq.Status != model.EquipmentActive {
			return nil
		}
		created, err = s.generate(st, eq.ID, eq.Priority, nil)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("equipment created", "equipment_id", eq.ID, "priority", eq.Priority, "schedules", len(created))
	return eq, created, nil
}

// EquipmentUpdate is the outcome of UpdateEquipment.
type EquipmentUpdate struct {
	Equipment *model.Equipment            `json:"equipment"`
	Generated []model.MaintenanceSchedule `json:"generated,omitempty"`
	Closed    int64                       `json:"closed"`
}

// UpdateEquipment applies in and keeps the schedule chains in step:
// a priority change on active equipment starts a new generation, retiring
// equipment closes its schedules, and reactivating equipment with no
// active schedules generates fresh ones.
func (s *Service) UpdateEquipment(id int64, in store.EquipmentInput) (*EquipmentUpdate, error) {
	if err := validateEquipment(&in); err != nil {
		return nil, err
	}

	unlock := s.locks.LockAll(id)
	defer unlock()

	var res EquipmentUpdate
	err := s.inTx(func(st txStores) error {
		before, err := st.equipment.GetByID(id)
		if err != nil {
			return err
		}
		if before == nil {
			return ErrNotFound
		}
		after, err := st.equipment.Update(id, in)
		if err != nil {
			return err
		}
		res.Equipment = after

		switch {
		case after.Status == model.EquipmentRetired:
			res.Closed, err = s.closeAll(st, id, model.CloseRetired, "Equipment retired")
			return err

		case after.Status != model.EquipmentActive:
			return nil

		case before.Status != model.EquipmentActive:
			active, err := st.schedules.ListActiveByEquipment(id)
			if err != nil {
				return err
			}
			if len(active) == 0 {
				res.Generated, err = s.generate(st, id, after.Priority, nil)
			}
			return err

		case before.Priority != after.Priority:
			res.Generated, res.Closed, err = s.regenerate(st, id, after.Priority)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("equipment updated", "equipment_id", id, "status", res.Equipment.Status,
		"priority", res.Equipment.Priority, "generated", len(res.Generated), "closed", res.Closed)
	return &res, nil
}

// RegenerateSchedules closes the current generation of schedules and
// starts a new one at priority, linking each new schedule to the one it
// supersedes. Existing schedules otherwise keep the priority they were
// created with.
func (s *Service) RegenerateSchedules(equipmentID int64, priority model.Priority) ([]model.MaintenanceSchedule, error) {
	unlock := s.locks.LockAll(equipmentID)
	defer unlock()

	var created []model.MaintenanceSchedule
	var closed int64
	err := s.inTx(func(st txStores) error {
		if _, err := s.activeEquipment(st, equipmentID); err != nil {
			return err
		}
		var err error
		created, closed, err = s.regenerate(st, equipmentID, priority)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("schedules regenerated", "equipment_id", equipmentID, "priority", priority,
		"closed", closed, "created", len(created))
	return created, nil
}

// RetireEquipment marks equipment retired and closes its active schedules.
func (s *Service) RetireEquipment(equipmentID int64) (int64, error) {
	unlock := s.locks.LockAll(equipmentID)
	defer unlock()

	var closed int64
	err := s.inTx(func(st txStores) error {
		eq, err := st.equipment.GetByID(equipmentID)
		if err != nil {
			return err
		}
		if eq == nil {
			return ErrNotFound
		}
		if _, err := st.equipment.Update(equipmentID, store.EquipmentInput{
			Name: eq.Name, Category: eq.Category, Location: eq.Location,
			Priority: eq.Priority, Status: model.EquipmentRetired, Notes: eq.Notes,
		}); err != nil {
			return err
		}
		closed, err = s.closeAll(st, equipmentID, model.CloseRetired, "Equipment retired")
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("equipment retired", "equipment_id", equipmentID, "closed", closed)
	return closed, nil
}

func (s *Service) activeEquipment(st txStores, id int64) (*model.Equipment, error) {
	eq, err := st.equipment.GetByID(id)
	if err != nil {
		return nil, err
	}
	if eq == nil {
		return nil, fmt.Errorf("equipment %d: %w", id, ErrNotFound)
	}
	if eq.Status != model.EquipmentActive {
		return nil, fmt.Errorf("equipment %d is %s: %w", id, eq.Status, ErrEquipmentInactive)
	}
	return eq, nil
}

// generate inserts one schedule per maintenance type. prev maps a type to
// the schedule the new one supersedes, if any.
func (s *Service) generate(st txStores, equipmentID int64, priority model.Priority, prev map[model.MaintenanceType]model.MaintenanceSchedule) ([]model.MaintenanceSchedule, error) {
	cadence, ok := CadenceFor(priority)
	if !ok {
		s.logger.Warn("unknown priority, using default cadence",
			"equipment_id", equipmentID, "priority", priority, "default", DefaultPriority)
		priority = DefaultPriority
	}

	today := s.clock.Today()
	out := make([]model.MaintenanceSchedule, 0, len(model.MaintenanceTypes))
	for _, mt := range model.MaintenanceTypes {
		interval := cadence.Interval(mt)
		in := store.ScheduleInput{
			EquipmentID:     equipmentID,
			MaintenanceType: mt,
			Priority:        priority,
			IntervalDays:    interval,
			NextDueDate:     clock.AddDays(today, interval),
		}
		if p, ok := prev[mt]; ok {
			id := p.ID
			in.PreviousScheduleID = &id
			in.LastCompletedDate = p.LastCompletedDate
			in.Notes = fmt.Sprintf("Regenerated from schedule #%d at %s priority", p.ID, priority)
		}
		sc, err := st.schedules.Create(in)
		if err != nil {
			return nil, fmt.Errorf("create %s schedule: %w", mt, err)
		}
		out = append(out, *sc)
	}
	return out, nil
}

func (s *Service) regenerate(st txStores, equipmentID int64, priority model.Priority) ([]model.MaintenanceSchedule, int64, error) {
	active, err := st.schedules.ListActiveByEquipment(equipmentID)
	if err != nil {
		return nil, 0, err
	}
	// Newest first within a type, so the first seen is the one superseded.
	prev := make(map[model.MaintenanceType]model.MaintenanceSchedule)
	for _, sc := range active {
		if _, seen := prev[sc.MaintenanceType]; !seen {
			prev[sc.MaintenanceType] = sc
		}
	}

	note := fmt.Sprintf("Superseded by priority change to %s", priority)
	closed, err := s.closeAll(st, equipmentID, model.CloseSuperseded, note)
	if err != nil {
		return nil, 0, err
	}
	created, err := s.generate(st, equipmentID, priority, prev)
	if err != nil {
		return nil, 0, err
	}
	return created, closed, nil
}

func (s *Service) closeAll(st txStores, equipmentID int64, reason model.CloseReason, note string) (int64, error) {
	var total int64
	for _, mt := range model.MaintenanceTypes {
		n, err := st.schedules.CloseActive(equipmentID, mt, reason, nil, note)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func validateEquipment(in *store.EquipmentInput) error {
	if in.Name == "" {
		return fmt.Errorf("name is required: %w", ErrInvalidInput)
	}
	if in.Status == "" {
		in.Status = model.EquipmentActive
	}
	status, ok := model.ParseEquipmentStatus(string(in.Status))
	if !ok {
		return fmt.Errorf("unknown status %q: %w", in.Status, ErrInvalidInput)
	}
	in.Status = status
	if p, ok := model.ParsePriority(string(in.Priority)); ok {
		in.Priority = p
	} else {
		in.Priority = DefaultPriority
	}
	return nil
}

// nextDue is the due date of the occurrence after sc when sc is closed on
// today. It counts from today, so a late completion shifts the cadence. A
// completion so early that the result would not move past sc's own due
// date counts from that due date instead.
func nextDue(today time.Time, sc *model.MaintenanceSchedule) time.Time {
	due := clock.AddDays(today, sc.IntervalDays)
	if !due.After(sc.NextDueDate) {
		due = clock.AddDays(sc.NextDueDate, sc.IntervalDays)
	}
	return due
}
