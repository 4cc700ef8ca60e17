package model

import "time"

type MaintenanceType string

const (
	MaintenanceCleaning    MaintenanceType = "cleaning"
	MaintenanceInspection  MaintenanceType = "inspection"
	MaintenanceMaintenance MaintenanceType = "maintenance"
)

// MaintenanceTypes are the recurring types every piece of equipment gets a
// schedule for.
var MaintenanceTypes = []MaintenanceType{MaintenanceCleaning, MaintenanceInspection, MaintenanceMaintenance}

func ParseMaintenanceType(s string) (MaintenanceType, bool) {
	t := MaintenanceType(s)
	switch t {
	case MaintenanceCleaning, MaintenanceInspection, MaintenanceMaintenance:
		return t, true
	}
	return t, false
}

// CloseReason records why a schedule was deactivated.
type CloseReason string

const (
	CloseNone       CloseReason = ""
	CloseCompleted  CloseReason = "completed"
	CloseSkipped    CloseReason = "skipped"
	CloseDuplicate  CloseReason = "duplicate"
	CloseSuperseded CloseReason = "superseded"
	CloseRetired    CloseReason = "retired"
)

// MaintenanceSchedule is one occurrence in a forward-only chain of
// schedules for an (equipment, maintenance type) pair. Dates are calendar
// dates stored at UTC midnight.
type MaintenanceSchedule struct {
	ID                 int64           `json:"id"`
	EquipmentID        int64           `json:"equipment_id"`
	MaintenanceType    MaintenanceType `json:"maintenance_type"`
	Priority           Priority        `json:"priority"`
	IntervalDays       int             `json:"interval_days"`
	NextDueDate        time.Time       `json:"next_due_date"`
	LastCompletedDate  *time.Time      `json:"last_completed_date"`
	IsActive           bool            `json:"is_active"`
	CloseReason        CloseReason     `json:"close_reason,omitempty"`
	PreviousScheduleID *int64          `json:"previous_schedule_id"`
	Notes              string          `json:"notes"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// DueSchedule is an active schedule joined with the equipment it belongs to.
type DueSchedule struct {
	MaintenanceSchedule
	EquipmentName     string   `json:"equipment_name"`
	EquipmentPriority Priority `json:"equipment_priority"`
}
