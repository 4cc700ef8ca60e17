package model

import "time"

type TaskStatus string

const (
	TaskScheduled  TaskStatus = "scheduled"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

type TaskKind string

const (
	TaskRepair      TaskKind = "repair"
	TaskReplacement TaskKind = "replacement"
	TaskOther       TaskKind = "other"
)

func ParseTaskKind(s string) (TaskKind, bool) {
	k := TaskKind(s)
	switch k {
	case TaskRepair, TaskReplacement, TaskOther:
		return k, true
	}
	return k, false
}

// MaintenanceTask is an ad-hoc work order (repair, replacement) outside the
// recurring schedules.
type MaintenanceTask struct {
	ID            int64      `json:"id"`
	EquipmentID   int64      `json:"equipment_id"`
	Kind          TaskKind   `json:"kind"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Status        TaskStatus `json:"status"`
	ScheduledDate time.Time  `json:"scheduled_date"`
	StartedAt     *time.Time `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at"`
	CostCents     int64      `json:"cost_cents"`
	Technician    string     `json:"technician"`
	Notes         string     `json:"notes"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
