package store

import (
	"testing"
	"time"

	"github.com/dukerupert/gymops/internal/model"
)

func TestTaskLifecycle(t *testing.T) {
	db := setupTestDB(t)
	e := createEquipment(t, db, "Leg Press", model.PriorityHigh)
	ts := NewTaskStore(db)

	task, err := ts.Create(TaskInput{
		EquipmentID: e.ID, Kind: model.TaskRepair, Title: "Replace cable",
		ScheduledDate: day(5), Technician: "alex",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Status != model.TaskScheduled {
		t.Errorf("status = %q, want %q", task.Status, model.TaskScheduled)
	}
	if !task.ScheduledDate.Equal(day(5)) {
		t.Errorf("scheduled_date = %v, want %v", task.ScheduledDate, day(5))
	}

	start := time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC)
	ok, err := ts.Transition(task.ID, TransitionInput{From: model.TaskScheduled, To: model.TaskInProgress, At: start})
	if err != nil || !ok {
		t.Fatalf("start: ok=%v err=%v", ok, err)
	}

	// A stale "from" must not apply.
	ok, _ = ts.Transition(task.ID, TransitionInput{From: model.TaskScheduled, To: model.TaskCancelled})
	if ok {
		t.Error("transition from stale status should not apply")
	}

	done := start.Add(2 * time.Hour)
	ok, err = ts.Transition(task.ID, TransitionInput{From: model.TaskInProgress, To: model.TaskCompleted, At: done, CostCents: 4200, Notes: "cable swapped"})
	if err != nil || !ok {
		t.Fatalf("complete: ok=%v err=%v", ok, err)
	}

	got, _ := ts.GetByID(task.ID)
	if got.Status != model.TaskCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Fatalf("timestamps not set: %+v", got)
	}
	if got.CostCents != 4200 || got.Notes != "cable swapped" {
		t.Errorf("cost/notes = %d/%q", got.CostCents, got.Notes)
	}

	list, _ := ts.List(e.ID)
	if len(list) != 1 {
		t.Errorf("tasks = %d, want 1", len(list))
	}
}
