package notification

import (
	"testing"
	"time"

	"github.com/dukerupert/gymops/internal/model"
)

type fakeNow struct{ t time.Time }

func (f *fakeNow) Now() time.Time { return f.t }

func newTestFeed(max int) (*Feed, *fakeNow) {
	fn := &fakeNow{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	return NewFeed(max, WithNow(fn.Now)), fn
}

func overdue(scheduleID int64, p model.Priority) Notification {
	return Notification{
		Type:        model.NotifTypeOverdueMaintenance,
		Priority:    p,
		Title:       "Overdue cleaning: Treadmill",
		Message:     "was due",
		EquipmentID: 1,
		ScheduleID:  scheduleID,
		DaysOverdue: 1,
	}
}

func TestFeedAddDedupsUnread(t *testing.T) {
	f, _ := newTestFeed(0)

	first, created := f.Add(overdue(10, model.PriorityMedium))
	if !created {
		t.Fatal("first add should create")
	}
	if first.ID == "" || first.Category != CategoryMaintenance {
		t.Errorf("first = %+v", first)
	}

	n := overdue(10, model.PriorityHigh)
	n.Message = "4 days overdue"
	n.DaysOverdue = 4
	second, created := f.Add(n)
	if created {
		t.Fatal("duplicate unread should not create")
	}
	if second.ID != first.ID {
		t.Errorf("id = %q, want %q", second.ID, first.ID)
	}
	if second.Priority != model.PriorityHigh || second.DaysOverdue != 4 || second.Message != "4 days overdue" {
		t.Errorf("refreshed = %+v", second)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("refresh must keep creation time")
	}
	if f.UnreadCount() != 1 {
		t.Errorf("unread = %d, want 1", f.UnreadCount())
	}

	// A different schedule is a different notification.
	if _, created := f.Add(overdue(11, model.PriorityMedium)); !created {
		t.Error("different schedule should create")
	}
}

func TestFeedReadNotificationDoesNotBlockNewOne(t *testing.T) {
	f, _ := newTestFeed(0)
	first, _ := f.Add(overdue(10, model.PriorityMedium))
	if _, ok := f.MarkRead(first.ID); !ok {
		t.Fatal("mark read failed")
	}

	again, created := f.Add(overdue(10, model.PriorityMedium))
	if !created {
		t.Fatal("add after read should create a new notification")
	}
	if again.ID == first.ID {
		t.Error("expected a new id")
	}
	if f.Len() != 2 || f.UnreadCount() != 1 {
		t.Errorf("len/unread = %d/%d, want 2/1", f.Len(), f.UnreadCount())
	}
}

func TestFeedListOrdering(t *testing.T) {
	f, clk := newTestFeed(0)

	f.Add(overdue(1, model.PriorityMedium))
	clk.t = clk.t.Add(time.Minute)
	f.Add(overdue(2, model.PriorityCritical))
	clk.t = clk.t.Add(time.Minute)
	f.Add(overdue(3, model.PriorityMedium))
	f.Add(overdue(4, model.PriorityHigh))

	got := f.List(Filter{})
	want := []int64{2, 4, 3, 1}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ScheduleID != id {
			t.Errorf("position %d = schedule %d, want %d", i, got[i].ScheduleID, id)
		}
	}

	limited := f.List(Filter{Limit: 2})
	if len(limited) != 2 || limited[0].ScheduleID != 2 {
		t.Errorf("limited = %+v", limited)
	}
	high := f.List(Filter{Priority: model.PriorityHigh})
	if len(high) != 1 || high[0].ScheduleID != 4 {
		t.Errorf("high = %+v", high)
	}
	if other := f.List(Filter{Category: "billing"}); len(other) != 0 {
		t.Errorf("billing = %d, want 0", len(other))
	}
}

func TestFeedEvictsReadBeforeUnread(t *testing.T) {
	f, _ := newTestFeed(3)

	a, _ := f.Add(overdue(1, model.PriorityLow))
	b, _ := f.Add(overdue(2, model.PriorityLow))
	c, _ := f.Add(overdue(3, model.PriorityLow))
	f.MarkRead(b.ID)

	f.Add(overdue(4, model.PriorityLow))
	if _, ok := f.Get(b.ID); ok {
		t.Error("read entry should be evicted first")
	}
	if _, ok := f.Get(a.ID); !ok {
		t.Error("oldest unread should survive while a read entry exists")
	}

	f.Add(overdue(5, model.PriorityLow))
	if _, ok := f.Get(a.ID); ok {
		t.Error("oldest unread should be evicted when no read entries remain")
	}
	if _, ok := f.Get(c.ID); !ok {
		t.Error("newer unread entry should survive")
	}
	if f.Len() != 3 {
		t.Errorf("len = %d, want 3", f.Len())
	}

	// The evicted item is still unresolved; it must not be announced again.
	if _, created := f.Add(overdue(1, model.PriorityLow)); created {
		t.Error("evicted unread key was re-created")
	}

	f.forgetEvicted(map[dedupKey]struct{}{})
	if _, created := f.Add(overdue(1, model.PriorityLow)); !created {
		t.Error("forgotten key should be addable again")
	}
}

func TestFeedMarkAllReadForgetsEvicted(t *testing.T) {
	f, _ := newTestFeed(1)
	f.Add(overdue(1, model.PriorityLow))
	f.Add(overdue(2, model.PriorityLow))

	f.MarkAllRead()
	if _, created := f.Add(overdue(1, model.PriorityLow)); !created {
		t.Error("read-all should release evicted keys")
	}
}

func TestFeedEvictedKeysAreBounded(t *testing.T) {
	f, _ := newTestFeed(1)
	for i := int64(1); i <= minEvictedKeys+10; i++ {
		f.Add(overdue(i, model.PriorityLow))
	}
	if len(f.evicted) != minEvictedKeys {
		t.Errorf("remembered %d evicted keys, want %d", len(f.evicted), minEvictedKeys)
	}
	// The oldest keys were the ones let go.
	if _, created := f.Add(overdue(1, model.PriorityLow)); !created {
		t.Error("oldest evicted key should have been dropped")
	}
}

func TestFeedMarkAllReadAndPurge(t *testing.T) {
	f, clk := newTestFeed(0)
	f.Add(overdue(1, model.PriorityHigh))
	f.Add(overdue(2, model.PriorityHigh))

	if n := f.MarkAllRead(); n != 2 {
		t.Errorf("marked = %d, want 2", n)
	}
	if n := f.MarkAllRead(); n != 0 {
		t.Errorf("second mark all = %d, want 0", n)
	}

	clk.t = clk.t.Add(2 * time.Hour)
	fresh, _ := f.Add(overdue(3, model.PriorityHigh))
	f.MarkRead(fresh.ID)

	if n := f.PurgeRead(time.Hour); n != 2 {
		t.Errorf("purged = %d, want 2", n)
	}
	if _, ok := f.Get(fresh.ID); !ok {
		t.Error("recently read notification should be kept")
	}
}

func TestFeedDeleteAndSummary(t *testing.T) {
	f, _ := newTestFeed(0)
	a, _ := f.Add(overdue(1, model.PriorityCritical))
	f.Add(overdue(2, model.PriorityHigh))
	c, _ := f.Add(overdue(3, model.PriorityHigh))
	f.MarkRead(c.ID)

	s := f.Summary()
	if s.Total != 3 || s.Unread != 2 {
		t.Errorf("total/unread = %d/%d, want 3/2", s.Total, s.Unread)
	}
	if s.ByPriority[model.PriorityCritical] != 1 || s.ByPriority[model.PriorityHigh] != 1 || s.ByPriority[model.PriorityLow] != 0 {
		t.Errorf("by priority = %v", s.ByPriority)
	}
	if s.ByCategory[CategoryMaintenance] != 2 {
		t.Errorf("by category = %v", s.ByCategory)
	}

	if !f.Delete(a.ID) {
		t.Error("delete should report true")
	}
	if f.Delete(a.ID) {
		t.Error("second delete should report false")
	}
	if _, created := f.Add(overdue(1, model.PriorityCritical)); !created {
		t.Error("deleted key should be addable again")
	}
}
