package model

import "time"

// Notification type constants
const (
	NotifTypeOverdueMaintenance  = "overdue_maintenance"
	NotifTypeDueTodayMaintenance = "due_today_maintenance"
)

// IsNotificationType reports whether t names a notification operators can
// opt out of.
func IsNotificationType(t string) bool {
	return t == NotifTypeOverdueMaintenance || t == NotifTypeDueTodayMaintenance
}

type PushSubscription struct {
	ID         int64     `json:"id"`
	OperatorID int64     `json:"operator_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}

type NotificationPreference struct {
	ID               int64     `json:"id"`
	OperatorID       int64     `json:"operator_id"`
	NotificationType string    `json:"notification_type"`
	Enabled          bool      `json:"enabled"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
