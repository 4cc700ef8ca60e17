package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/gymops/internal/maintenance"
	"github.com/dukerupert/gymops/internal/model"
	"github.com/dukerupert/gymops/internal/notification"
)

func quietHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// mockClient has an outbox but no connection.
func mockClient(hub *Hub, entities ...string) *Client {
	return NewClient(hub, nil, entities...)
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.outbox:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
	return Message{}
}

func TestRegisterUnregister(t *testing.T) {
	hub := quietHub()

	c1 := mockClient(hub)
	c2 := mockClient(hub)
	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)
	// Second unregister must not panic on the closed channel.
	hub.Unregister(c2)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcastScheduleCompleted(t *testing.T) {
	hub := quietHub()

	c1 := mockClient(hub)
	c2 := mockClient(hub)
	hub.Register(c1)
	hub.Register(c2)
	defer hub.Unregister(c1)
	defer hub.Unregister(c2)

	res := &maintenance.CompletionResult{
		Completed: &model.MaintenanceSchedule{ID: 42, EquipmentID: 3, MaintenanceType: model.MaintenanceCleaning},
		Next:      &model.MaintenanceSchedule{ID: 43, EquipmentID: 3, MaintenanceType: model.MaintenanceCleaning},
	}
	hub.Broadcast(ScheduleCompleted(res))

	for _, c := range []*Client{c1, c2} {
		got := receive(t, c)
		if got.Type != TypeScheduleCompleted {
			t.Errorf("type = %s, want %s", got.Type, TypeScheduleCompleted)
		}
		if got.Entity != "schedule" || got.ID != 42 {
			t.Errorf("entity/id = %s/%d", got.Entity, got.ID)
		}
		if got.Extra["next_schedule_id"] != float64(43) {
			t.Errorf("next_schedule_id = %v", got.Extra["next_schedule_id"])
		}
	}
}

func TestEventTypes(t *testing.T) {
	skip := &maintenance.SkipResult{
		Skipped: &model.MaintenanceSchedule{ID: 1},
		Next:    &model.MaintenanceSchedule{ID: 2},
	}
	n := notification.Notification{ID: "abc", ScheduleID: 9, Priority: model.PriorityCritical, Title: "Overdue"}

	tests := []struct {
		msg  Message
		want string
	}{
		{ScheduleSkipped(skip), TypeScheduleSkipped},
		{SchedulesGenerated(5, 3), TypeSchedulesGenerated},
		{NotificationCreated(n), TypeNotificationCreated},
		{NotificationRead("abc"), TypeNotificationRead},
	}
	for _, tt := range tests {
		if tt.msg.Type != tt.want {
			t.Errorf("type = %s, want %s", tt.msg.Type, tt.want)
		}
	}

	created := NotificationCreated(n)
	if created.ID != 9 || created.Extra["notification_id"] != "abc" {
		t.Errorf("notification_created = %+v", created)
	}
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := quietHub()
	hub.Broadcast(SchedulesGenerated(1, 3))
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := quietHub()

	c := mockClient(hub)
	hub.Register(c)
	defer hub.Unregister(c)

	for i := 0; i < outboxSize; i++ {
		hub.Broadcast(NewMessage("schedule", "completed", int64(i), nil))
	}
	// Dropped instead of blocking.
	if n := hub.Broadcast(NewMessage("schedule", "completed", 999, nil)); n != 0 {
		t.Errorf("queued = %d, want 0", n)
	}

	if len(c.outbox) != outboxSize {
		t.Errorf("buffered = %d, want %d", len(c.outbox), outboxSize)
	}
	if hub.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", hub.Dropped())
	}
}

func TestBroadcastEntityFilter(t *testing.T) {
	hub := quietHub()

	all := mockClient(hub)
	backups := mockClient(hub, "backup", " ")
	hub.Register(all)
	hub.Register(backups)
	defer hub.Unregister(all)
	defer hub.Unregister(backups)

	if n := hub.Broadcast(SchedulesGenerated(3, 2)); n != 1 {
		t.Errorf("schedules event queued for %d dashboards, want 1", n)
	}
	if n := hub.Broadcast(NewMessage("backup", "status", 0, nil)); n != 2 {
		t.Errorf("backup event queued for %d dashboards, want 2", n)
	}

	if got := receive(t, backups); got.Type != TypeBackupStatus {
		t.Errorf("filtered dashboard got %s", got.Type)
	}
	if len(all.outbox) != 2 {
		t.Errorf("unfiltered dashboard buffered %d, want 2", len(all.outbox))
	}
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("equipment", "updated", 5, nil)
	if msg.Type != "equipment_updated" {
		t.Errorf("expected type equipment_updated, got %s", msg.Type)
	}
	if msg.Entity != "equipment" || msg.Action != "updated" || msg.ID != 5 {
		t.Errorf("message = %+v", msg)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := quietHub()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub)
			hub.Register(c)
			hub.Broadcast(NotificationRead("all"))
			for {
				select {
				case <-c.outbox:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
