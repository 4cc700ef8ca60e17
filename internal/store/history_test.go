package store

import (
	"testing"
	"time"

	"github.com/dukerupert/gymops/internal/model"
)

func TestHistoryCreateAndList(t *testing.T) {
	db := setupTestDB(t)
	e := createEquipment(t, db, "Squat Rack", model.PriorityMedium)
	hs := NewHistoryStore(db)

	h, err := hs.Create(HistoryInput{
		EquipmentID: e.ID, MaintenanceType: model.MaintenanceInspection,
		PerformedDate: day(2), PerformedBy: "sam", CostCents: 2500, DurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if h.Result != model.HistoryResultCompleted {
		t.Errorf("result = %q, want %q", h.Result, model.HistoryResultCompleted)
	}
	if h.ScheduleID != nil {
		t.Errorf("schedule_id = %v, want nil", *h.ScheduleID)
	}

	hs.Create(HistoryInput{EquipmentID: e.ID, MaintenanceType: model.MaintenanceCleaning, PerformedDate: day(40), CostCents: 100})

	from, to := day(0), day(10)
	list, err := hs.List(HistoryFilter{EquipmentID: e.ID, From: &from, To: &to})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != h.ID {
		t.Errorf("list = %+v, want only %d", list, h.ID)
	}
}

func TestHistoryCostByMonth(t *testing.T) {
	db := setupTestDB(t)
	e := createEquipment(t, db, "Cable", model.PriorityLow)
	hs := NewHistoryStore(db)

	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	hs.Create(HistoryInput{EquipmentID: e.ID, MaintenanceType: model.MaintenanceCleaning, PerformedDate: jan, CostCents: 1000})
	hs.Create(HistoryInput{EquipmentID: e.ID, MaintenanceType: model.MaintenanceCleaning, PerformedDate: jan, CostCents: 500})
	hs.Create(HistoryInput{EquipmentID: e.ID, MaintenanceType: model.MaintenanceMaintenance, PerformedDate: feb, CostCents: 7000})

	costs, err := hs.CostByMonth(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("cost by month: %v", err)
	}
	if len(costs) != 2 {
		t.Fatalf("months = %d, want 2", len(costs))
	}
	if costs[0].Month != "2026-01" || costs[0].Count != 2 || costs[0].CostCents != 1500 {
		t.Errorf("jan = %+v, want {2026-01 2 1500}", costs[0])
	}
	if costs[1].Month != "2026-02" || costs[1].CostCents != 7000 {
		t.Errorf("feb = %+v, want {2026-02 1 7000}", costs[1])
	}
}

func TestHistoryReliability(t *testing.T) {
	db := setupTestDB(t)
	e := createEquipment(t, db, "Elliptical", model.PriorityHigh)
	idle := createEquipment(t, db, "Yoga Mats", model.PriorityLow)
	hs := NewHistoryStore(db)
	ss := NewScheduleStore(db)

	hs.Create(HistoryInput{EquipmentID: e.ID, MaintenanceType: model.MaintenanceCleaning, PerformedDate: day(1), CostCents: 100, DurationMinutes: 10})
	hs.Create(HistoryInput{EquipmentID: e.ID, MaintenanceType: model.MaintenanceCleaning, PerformedDate: day(3), CostCents: 300, DurationMinutes: 20})

	sc, _ := ss.Create(ScheduleInput{
		EquipmentID: e.ID, MaintenanceType: model.MaintenanceInspection, Priority: model.PriorityHigh,
		IntervalDays: 7, NextDueDate: day(7),
	})
	ss.CloseByID(sc.ID, model.CloseSkipped, nil, "out of parts")

	rel, err := hs.ReliabilityByEquipment()
	if err != nil {
		t.Fatalf("reliability: %v", err)
	}
	if len(rel) != 2 {
		t.Fatalf("rows = %d, want 2", len(rel))
	}

	var got, empty model.EquipmentReliability
	for _, r := range rel {
		switch r.EquipmentID {
		case e.ID:
			got = r
		case idle.ID:
			empty = r
		}
	}
	if got.Completions != 2 || got.Skips != 1 {
		t.Errorf("completions/skips = %d/%d, want 2/1", got.Completions, got.Skips)
	}
	if got.TotalCostCents != 400 {
		t.Errorf("total cost = %d, want 400", got.TotalCostCents)
	}
	if got.AvgDurationMinutes != 15 {
		t.Errorf("avg duration = %v, want 15", got.AvgDurationMinutes)
	}
	if got.LastPerformed == nil || !got.LastPerformed.Equal(day(3)) {
		t.Errorf("last performed = %v, want %v", got.LastPerformed, day(3))
	}
	if empty.Completions != 0 || empty.LastPerformed != nil {
		t.Errorf("idle equipment = %+v, want zero values", empty)
	}
}
