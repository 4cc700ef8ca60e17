package model

import "time"

const HistoryResultCompleted = "completed"

// MaintenanceHistory is an append-only record of maintenance performed.
type MaintenanceHistory struct {
	ID              int64           `json:"id"`
	EquipmentID     int64           `json:"equipment_id"`
	ScheduleID      *int64          `json:"schedule_id"`
	MaintenanceType MaintenanceType `json:"maintenance_type"`
	PerformedDate   time.Time       `json:"performed_date"`
	PerformedBy     string          `json:"performed_by"`
	CostCents       int64           `json:"cost_cents"`
	DurationMinutes int             `json:"duration_minutes"`
	Result          string          `json:"result"`
	Notes           string          `json:"notes"`
	CreatedAt       time.Time       `json:"created_at"`
}

type MonthlyCost struct {
	Month     string `json:"month"` // YYYY-MM
	Count     int    `json:"count"`
	CostCents int64  `json:"cost_cents"`
}

type EquipmentReliability struct {
	EquipmentID        int64      `json:"equipment_id"`
	EquipmentName      string     `json:"equipment_name"`
	Completions        int        `json:"completions"`
	Skips              int        `json:"skips"`
	TotalCostCents     int64      `json:"total_cost_cents"`
	AvgDurationMinutes float64    `json:"avg_duration_minutes"`
	LastPerformed      *time.Time `json:"last_performed"`
}
