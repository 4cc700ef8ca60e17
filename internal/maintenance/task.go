package maintenance

import (
	"fmt"
	"strings"

	"github.com/dukerupert/gymops/internal/model"
	"github.com/dukerupert/gymops/internal/store"
)

// Ad-hoc work orders move scheduled -> in_progress -> completed, and may be
// cancelled before they complete.
var taskTransitions = map[model.TaskStatus][]model.TaskStatus{
	model.TaskScheduled:  {model.TaskInProgress, model.TaskCancelled},
	model.TaskInProgress: {model.TaskCompleted, model.TaskCancelled},
}

func canTransition(from, to model.TaskStatus) bool {
	for _, next := range taskTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CreateTask records a work order for existing equipment.
func (s *Service) CreateTask(in store.TaskInput) (*model.MaintenanceTask, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("title is required: %w", ErrInvalidInput)
	}
	if in.Kind == "" {
		in.Kind = model.TaskRepair
	}
	if _, ok := model.ParseTaskKind(string(in.Kind)); !ok {
		return nil, fmt.Errorf("unknown task kind %q: %w", in.Kind, ErrInvalidInput)
	}
	if in.ScheduledDate.IsZero() {
		in.ScheduledDate = s.clock.Today()
	}

	eq, err := store.NewEquipmentStore(s.db).GetByID(in.EquipmentID)
	if err != nil {
		return nil, err
	}
	if eq == nil {
		return nil, fmt.Errorf("equipment %d: %w", in.EquipmentID, ErrNotFound)
	}

	t, err := store.NewTaskStore(s.db).Create(in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("task created", "task_id", t.ID, "equipment_id", t.EquipmentID, "kind", t.Kind)
	return t, nil
}

func (s *Service) StartTask(id int64) (*model.MaintenanceTask, error) {
	return s.transitionTask(id, store.TransitionInput{To: model.TaskInProgress})
}

func (s *Service) CompleteTask(id int64, costCents int64, notes string) (*model.MaintenanceTask, error) {
	if costCents < 0 {
		return nil, fmt.Errorf("cost must not be negative: %w", ErrInvalidInput)
	}
	return s.transitionTask(id, store.TransitionInput{To: model.TaskCompleted, CostCents: costCents, Notes: notes})
}

func (s *Service) CancelTask(id int64, notes string) (*model.MaintenanceTask, error) {
	return s.transitionTask(id, store.TransitionInput{To: model.TaskCancelled, Notes: notes})
}

func (s *Service) transitionTask(id int64, in store.TransitionInput) (*model.MaintenanceTask, error) {
	tasks := store.NewTaskStore(s.db)
	t, err := tasks.GetByID(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if !canTransition(t.Status, in.To) {
		return nil, fmt.Errorf("task %d %s -> %s: %w", id, t.Status, in.To, ErrInvalidTransition)
	}

	in.From = t.Status
	in.At = s.clock.Now()
	ok, err := tasks.Transition(id, in)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Someone else moved the task first.
		return nil, fmt.Errorf("task %d changed concurrently: %w", id, ErrInvalidTransition)
	}

	s.logger.Info("task transitioned", "task_id", id, "from", in.From, "to", in.To)
	return tasks.GetByID(id)
}
