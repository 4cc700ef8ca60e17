package websocket

import (
	"github.com/dukerupert/gymops/internal/backup"
	"github.com/dukerupert/gymops/internal/maintenance"
	"github.com/dukerupert/gymops/internal/notification"
)

// Event types sent to dashboards.
const (
	TypeScheduleCompleted   = "schedule_completed"
	TypeScheduleSkipped     = "schedule_skipped"
	TypeSchedulesGenerated  = "schedules_generated"
	TypeNotificationCreated = "notification_created"
	TypeNotificationRead    = "notification_read"
	TypeBackupStatus        = "backup_status"
)

func ScheduleCompleted(res *maintenance.CompletionResult) Message {
	return NewMessage("schedule", "completed", res.Completed.ID, map[string]any{
		"equipment_id":     res.Completed.EquipmentID,
		"maintenance_type": res.Completed.MaintenanceType,
		"next_schedule_id": res.Next.ID,
	})
}

func ScheduleSkipped(res *maintenance.SkipResult) Message {
	return NewMessage("schedule", "skipped", res.Skipped.ID, map[string]any{
		"equipment_id":     res.Skipped.EquipmentID,
		"maintenance_type": res.Skipped.MaintenanceType,
		"next_schedule_id": res.Next.ID,
	})
}

// SchedulesGenerated is keyed by equipment id.
func SchedulesGenerated(equipmentID int64, count int) Message {
	return NewMessage("schedules", "generated", equipmentID, map[string]any{"count": count})
}

// NotificationCreated is keyed by schedule id; the notification id rides
// in Extra.
func NotificationCreated(n notification.Notification) Message {
	return NewMessage("notification", "created", n.ScheduleID, map[string]any{
		"notification_id": n.ID,
		"priority":        n.Priority,
		"title":           n.Title,
	})
}

// NotificationRead carries "all" when every notification was marked read.
func NotificationRead(notificationID string) Message {
	return NewMessage("notification", "read", 0, map[string]any{"notification_id": notificationID})
}

func BackupStatus(s backup.Status) Message {
	extra := map[string]any{"state": s.State, "target": s.Target}
	if s.LastBackup != nil {
		extra["last_backup"] = s.LastBackup
	}
	if s.Error != "" {
		extra["error"] = s.Error
	}
	return NewMessage("backup", "status", 0, extra)
}
