package store

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/gymops/internal/model"
)

func day(n int) time.Time {
	return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestScheduleCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	e := createEquipment(t, db, "Treadmill", model.PriorityHigh)
	ss := NewScheduleStore(db)

	last := day(0)
	sc, err := ss.Create(ScheduleInput{
		EquipmentID: e.ID, MaintenanceType: model.MaintenanceCleaning, Priority: model.PriorityHigh,
		IntervalDays: 1, NextDueDate: day(1), LastCompletedDate: &last, Notes: "first",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !sc.IsActive {
		t.Error("new schedule should be active")
	}
	if !sc.NextDueDate.Equal(day(1)) {
		t.Errorf("next_due_date = %v, want %v", sc.NextDueDate, day(1))
	}
	if sc.LastCompletedDate == nil || !sc.LastCompletedDate.Equal(day(0)) {
		t.Errorf("last_completed_date = %v, want %v", sc.LastCompletedDate, day(0))
	}
	if sc.PreviousScheduleID != nil {
		t.Errorf("previous_schedule_id = %v, want nil", *sc.PreviousScheduleID)
	}

	missing, err := ss.GetByID(12345)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for nonexistent schedule")
	}
}

func TestScheduleCloseByIDOnlyOnce(t *testing.T) {
	db := setupTestDB(t)
	e := createEquipment(t, db, "Rower", model.PriorityMedium)
	ss := NewScheduleStore(db)

	sc, _ := ss.Create(ScheduleInput{
		EquipmentID: e.ID, MaintenanceType: model.MaintenanceInspection, Priority: model.PriorityMedium,
		IntervalDays: 14, NextDueDate: day(14),
	})

	today := day(3)
	closed, err := ss.CloseByID(sc.ID, model.CloseCompleted, &today, "done")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if !closed {
		t.Fatal("expected first close to succeed")
	}

	closed, err = ss.CloseByID(sc.ID, model.CloseCompleted, &today, "again")
	if err != nil {
		t.Fatalf("second close: %v", err)
	}
	if closed {
		t.Error("second close should report false")
	}

	got, _ := ss.GetByID(sc.ID)
	if got.IsActive {
		t.Error("schedule should be inactive")
	}
	if got.CloseReason != model.CloseCompleted {
		t.Errorf("close_reason = %q, want %q", got.CloseReason, model.CloseCompleted)
	}
	if got.Notes != "done" {
		t.Errorf("notes = %q, want %q", got.Notes, "done")
	}
	if got.LastCompletedDate == nil || !got.LastCompletedDate.Equal(today) {
		t.Errorf("last_completed_date = %v, want %v", got.LastCompletedDate, today)
	}
}

func TestScheduleCloseActiveClosesDuplicates(t *testing.T) {
	db := setupTestDB(t)
	e := createEquipment(t, db, "Bike", model.PriorityLow)
	ss := NewScheduleStore(db)

	for i := 0; i < 3; i++ {
		if _, err := ss.Create(ScheduleInput{
			EquipmentID: e.ID, MaintenanceType: model.MaintenanceCleaning, Priority: model.PriorityLow,
			IntervalDays: 7, NextDueDate: day(7),
		}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	other, _ := ss.Create(ScheduleInput{
		EquipmentID: e.ID, MaintenanceType: model.MaintenanceMaintenance, Priority: model.PriorityLow,
		IntervalDays: 90, NextDueDate: day(90),
	})

	n, err := ss.CloseActive(e.ID, model.MaintenanceCleaning, model.CloseSkipped, nil, "")
	if err != nil {
		t.Fatalf("close active: %v", err)
	}
	if n != 3 {
		t.Errorf("closed = %d, want 3", n)
	}

	active, err := ss.ListActiveByEquipment(e.ID)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != other.ID {
		t.Errorf("active = %+v, want only schedule %d", active, other.ID)
	}
}

func TestScheduleDueQueriesSkipInactiveEquipment(t *testing.T) {
	db := setupTestDB(t)
	es := NewEquipmentStore(db)
	ss := NewScheduleStore(db)

	live := createEquipment(t, db, "Live", model.PriorityCritical)
	retired := createEquipment(t, db, "Retired", model.PriorityCritical)
	es.Update(retired.ID, EquipmentInput{Name: "Retired", Priority: model.PriorityCritical, Status: model.EquipmentRetired})

	today := day(10)
	mk := func(eqID int64, due time.Time) {
		if _, err := ss.Create(ScheduleInput{
			EquipmentID: eqID, MaintenanceType: model.MaintenanceCleaning, Priority: model.PriorityCritical,
			IntervalDays: 1, NextDueDate: due,
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	mk(live.ID, day(8))
	mk(live.ID, day(10))
	mk(live.ID, day(12))
	mk(retired.ID, day(5))

	overdue, err := ss.ListOverdue(today)
	if err != nil {
		t.Fatalf("list overdue: %v", err)
	}
	if len(overdue) != 1 {
		t.Fatalf("overdue = %d, want 1", len(overdue))
	}
	if overdue[0].EquipmentName != "Live" {
		t.Errorf("equipment_name = %q, want %q", overdue[0].EquipmentName, "Live")
	}
	if overdue[0].EquipmentPriority != model.PriorityCritical {
		t.Errorf("equipment_priority = %q, want critical", overdue[0].EquipmentPriority)
	}

	dueToday, err := ss.ListDueOn(today)
	if err != nil {
		t.Fatalf("list due on: %v", err)
	}
	if len(dueToday) != 1 {
		t.Errorf("due today = %d, want 1", len(dueToday))
	}

	counts, err := ss.CountActive(today, day(17))
	if err != nil {
		t.Fatalf("count active: %v", err)
	}
	want := ActiveCounts{Total: 3, Overdue: 1, DueToday: 1, Upcoming: 1}
	if counts != want {
		t.Errorf("counts = %+v, want %+v", counts, want)
	}
}

func TestScheduleFindActiveOnDate(t *testing.T) {
	db := setupTestDB(t)
	e := createEquipment(t, db, "Press", model.PriorityHigh)
	ss := NewScheduleStore(db)

	sc, _ := ss.Create(ScheduleInput{
		EquipmentID: e.ID, MaintenanceType: model.MaintenanceMaintenance, Priority: model.PriorityHigh,
		IntervalDays: 30, NextDueDate: day(30),
	})

	got, err := ss.FindActiveOnDate(e.ID, model.MaintenanceMaintenance, day(30))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got == nil || got.ID != sc.ID {
		t.Fatalf("found = %v, want schedule %d", got, sc.ID)
	}

	got, err = ss.FindActiveOnDate(e.ID, model.MaintenanceMaintenance, day(31))
	if err != nil {
		t.Fatalf("find other date: %v", err)
	}
	if got != nil {
		t.Error("expected nil for a different date")
	}
}

func TestScheduleDueQueriesSkipCorruptRows(t *testing.T) {
	db := setupTestDB(t)
	ss := NewScheduleStore(db)
	eq := createEquipment(t, db, "Rower", model.PriorityHigh)

	var ids []int64
	for _, due := range []time.Time{day(5), day(6), day(7)} {
		sc, err := ss.Create(ScheduleInput{
			EquipmentID: eq.ID, MaintenanceType: model.MaintenanceInspection, Priority: model.PriorityHigh,
			IntervalDays: 7, NextDueDate: due,
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, sc.ID)
	}
	if _, err := db.Exec(`UPDATE maintenance_schedules SET next_due_date = '2026-02-30' WHERE id = ?`, ids[1]); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	overdue, err := ss.ListOverdue(day(10))
	if err == nil || !strings.Contains(err.Error(), fmt.Sprintf("schedule %d", ids[1])) {
		t.Errorf("err = %v, want it to name schedule %d", err, ids[1])
	}
	if len(overdue) != 2 || overdue[0].ID != ids[0] || overdue[1].ID != ids[2] {
		t.Fatalf("overdue = %+v, want the two readable schedules", overdue)
	}
}
