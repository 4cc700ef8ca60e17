package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/gymops/internal/model"
)

// PushStore keeps operators' browser subscriptions, their per-type opt-outs
// and the log of pushes already sent.
type PushStore struct {
	db DBTX
}

func NewPushStore(db DBTX) *PushStore {
	return &PushStore{db: db}
}

const subscriptionCols = `s.id, s.operator_id, s.endpoint, s.p256dh_key, s.auth_key, s.device_name, s.created_at`

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := scanner.Scan(&sub.ID, &sub.OperatorID, &sub.Endpoint, &sub.P256dhKey,
		&sub.AuthKey, &sub.DeviceName, &sub.CreatedAt); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (st *PushStore) querySubscriptions(query string, args ...any) ([]model.PushSubscription, error) {
	rows, err := st.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// CreateSubscription registers a browser endpoint. An endpoint that is
// already known is handed to operatorID with its fresh keys.
func (st *PushStore) CreateSubscription(operatorID int64, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	sub, err := scanSubscription(st.db.QueryRow(
		`INSERT INTO push_subscriptions (operator_id, endpoint, p256dh_key, auth_key, device_name)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET
		     operator_id = excluded.operator_id,
		     p256dh_key  = excluded.p256dh_key,
		     auth_key    = excluded.auth_key,
		     device_name = excluded.device_name
		 RETURNING id, operator_id, endpoint, p256dh_key, auth_key, device_name, created_at`,
		operatorID, endpoint, p256dh, auth, deviceName,
	))
	if err != nil {
		return nil, fmt.Errorf("save push subscription: %w", err)
	}
	return sub, nil
}

func (st *PushStore) ListByOperator(operatorID int64) ([]model.PushSubscription, error) {
	subs, err := st.querySubscriptions(
		`SELECT `+subscriptionCols+` FROM push_subscriptions s
		 WHERE s.operator_id = ? ORDER BY s.created_at DESC, s.id DESC`, operatorID)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions for operator %d: %w", operatorID, err)
	}
	return subs, nil
}

// ListForNotification returns every device whose operator has not opted
// out of notifType. Operators without a stored preference receive it.
func (st *PushStore) ListForNotification(notifType string) ([]model.PushSubscription, error) {
	subs, err := st.querySubscriptions(
		`SELECT `+subscriptionCols+` FROM push_subscriptions s
		 LEFT JOIN notification_preferences p
		     ON p.operator_id = s.operator_id AND p.notification_type = ?
		 WHERE p.enabled IS NULL OR p.enabled = 1
		 ORDER BY s.operator_id, s.id`, notifType)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions for %s: %w", notifType, err)
	}
	return subs, nil
}

// DeleteSubscription only removes id if it belongs to operatorID.
func (st *PushStore) DeleteSubscription(id, operatorID int64) error {
	if _, err := st.db.Exec(`DELETE FROM push_subscriptions WHERE id = ? AND operator_id = ?`, id, operatorID); err != nil {
		return fmt.Errorf("delete push subscription %d: %w", id, err)
	}
	return nil
}

func (st *PushStore) DeleteByEndpoint(endpoint string) error {
	if _, err := st.db.Exec(`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint); err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

func (st *PushStore) GetPreferences(operatorID int64) ([]model.NotificationPreference, error) {
	rows, err := st.db.Query(
		`SELECT id, operator_id, notification_type, enabled, created_at, updated_at
		 FROM notification_preferences WHERE operator_id = ? ORDER BY notification_type`,
		operatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("get notification preferences: %w", err)
	}
	defer rows.Close()

	var prefs []model.NotificationPreference
	for rows.Next() {
		var p model.NotificationPreference
		if err := rows.Scan(&p.ID, &p.OperatorID, &p.NotificationType, &p.Enabled, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan notification preference: %w", err)
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

func (st *PushStore) SetPreference(operatorID int64, notifType string, enabled bool) error {
	_, err := st.db.Exec(
		`INSERT INTO notification_preferences (operator_id, notification_type, enabled)
		 VALUES (?, ?, ?)
		 ON CONFLICT(operator_id, notification_type)
		 DO UPDATE SET enabled = excluded.enabled, updated_at = CURRENT_TIMESTAMP`,
		operatorID, notifType, boolInt(enabled),
	)
	if err != nil {
		return fmt.Errorf("set %s preference for operator %d: %w", notifType, operatorID, err)
	}
	return nil
}

// RecordSent claims the push for refID on day. It reports false when
// another scan already claimed it.
func (st *PushStore) RecordSent(notifType, refID, day string) (bool, error) {
	var id int64
	err := st.db.QueryRow(
		`INSERT INTO sent_notifications (notification_type, reference_id, sent_on) VALUES (?, ?, ?)
		 ON CONFLICT DO NOTHING RETURNING id`,
		notifType, refID, day,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("record sent notification: %w", err)
	}
	return true, nil
}

// ReleaseSent drops a claim taken by RecordSent so a later scan can push
// refID again on the same day.
func (st *PushStore) ReleaseSent(notifType, refID, day string) error {
	_, err := st.db.Exec(
		`DELETE FROM sent_notifications WHERE notification_type = ? AND reference_id = ? AND sent_on = ?`,
		notifType, refID, day,
	)
	if err != nil {
		return fmt.Errorf("release sent notification: %w", err)
	}
	return nil
}

// CleanupSent forgets pushes sent before the cutoff.
func (st *PushStore) CleanupSent(before time.Time) (int64, error) {
	res, err := st.db.Exec(`DELETE FROM sent_notifications WHERE sent_at < ?`, before.UTC().Format(time.DateTime))
	if err != nil {
		return 0, fmt.Errorf("cleanup sent notifications: %w", err)
	}
	return res.RowsAffected()
}
